package classifier

import (
	"errors"
	"fmt"
)

const (
	AlgorithmLogistic   = "logistic"
	AlgorithmGaussianNB = "gaussian_nb"
)

// TrainConfig controls Fit.
type TrainConfig struct {
	Algorithm       string  `json:"algorithm"`
	LearningRate    float64 `json:"learningRate"`
	Epochs          int     `json:"epochs"`
	L2              float64 `json:"l2"`
	Seed            uint64  `json:"seed"`
	ValidationSplit float64 `json:"validationSplit"`
	MinExamples     int     `json:"minExamples"`
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Algorithm:       AlgorithmLogistic,
		LearningRate:    0.1,
		Epochs:          500,
		L2:              0.01,
		Seed:            1,
		ValidationSplit: 0.2,
		MinExamples:     20,
	}
}

func (c TrainConfig) Valid() error {
	var errs []error

	if _, ok := algorithms[c.Algorithm]; !ok {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, c.Algorithm))
	}

	if c.Algorithm == AlgorithmLogistic {
		if c.LearningRate <= 0 {
			errs = append(errs, fmt.Errorf("%w: learning rate must be positive", ErrBadConfig))
		}
		if c.Epochs <= 0 {
			errs = append(errs, fmt.Errorf("%w: epochs must be positive", ErrBadConfig))
		}
		if c.L2 < 0 {
			errs = append(errs, fmt.Errorf("%w: l2 must not be negative", ErrBadConfig))
		}
	}

	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("%w: validation split must be in [0, 1)", ErrBadConfig))
	}

	if c.MinExamples < 1 {
		errs = append(errs, fmt.Errorf("%w: min examples must be at least 1", ErrBadConfig))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}
