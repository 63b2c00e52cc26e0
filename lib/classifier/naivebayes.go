package classifier

import "math"

// GaussianNBParams holds per class feature means and variances.
type GaussianNBParams struct {
	HumanMean  []float64 `msgpack:"humanMean"`
	HumanVar   []float64 `msgpack:"humanVar"`
	BotMean    []float64 `msgpack:"botMean"`
	BotVar     []float64 `msgpack:"botVar"`
	HumanPrior float64   `msgpack:"humanPrior"`
}

const varSmoothing = 1e-9

func (p *GaussianNBParams) predict(x []float64) float64 {
	lh := math.Log(p.HumanPrior)
	lb := math.Log(1 - p.HumanPrior)

	for i, v := range x {
		lh += logGaussian(v, p.HumanMean[i], p.HumanVar[i])
		lb += logGaussian(v, p.BotMean[i], p.BotVar[i])
	}

	return sigmoid(lh - lb)
}

func logGaussian(x, mean, variance float64) float64 {
	d := x - mean
	return -0.5*math.Log(2*math.Pi*variance) - d*d/(2*variance)
}

func fitGaussianNB(xs [][]float64, ys []float64, _ TrainConfig) *Params {
	dim := len(xs[0])
	p := &GaussianNBParams{
		HumanMean: make([]float64, dim),
		HumanVar:  make([]float64, dim),
		BotMean:   make([]float64, dim),
		BotVar:    make([]float64, dim),
	}

	var nh, nb float64
	for i, x := range xs {
		mean := p.BotMean
		if ys[i] == 1 {
			mean = p.HumanMean
			nh++
		} else {
			nb++
		}
		for j, v := range x {
			mean[j] += v
		}
	}

	for j := range dim {
		p.HumanMean[j] /= nh
		p.BotMean[j] /= nb
	}

	var maxVar float64
	for i, x := range xs {
		mean, variance := p.BotMean, p.BotVar
		if ys[i] == 1 {
			mean, variance = p.HumanMean, p.HumanVar
		}
		for j, v := range x {
			d := v - mean[j]
			variance[j] += d * d
		}
	}

	for j := range dim {
		p.HumanVar[j] /= nh
		p.BotVar[j] /= nb
		maxVar = max(maxVar, p.HumanVar[j], p.BotVar[j])
	}

	eps := varSmoothing*maxVar + 1e-12
	for j := range dim {
		p.HumanVar[j] += eps
		p.BotVar[j] += eps
	}

	p.HumanPrior = nh / (nh + nb)

	return &Params{Algorithm: AlgorithmGaussianNB, GaussianNB: p}
}
