package classifier

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/TecharoHQ/vox/lib/features"
)

// Example is one labeled feature vector.
type Example struct {
	ID     string
	Vector features.Vector
	Label  Label
}

// Dataset maps example ids to examples. All vectors share one dimension.
type Dataset struct {
	lock     sync.RWMutex
	examples map[string]Example
	dim      int
}

func NewDataset() *Dataset {
	return &Dataset{examples: map[string]Example{}}
}

// Add stores ex, replacing any example with the same id and label. An id
// already stored under the other label is refused with ErrConflictingLabel.
func (d *Dataset) Add(ex Example) error {
	if ex.ID == "" {
		return fmt.Errorf("%w: example has no id", ErrBadConfig)
	}

	if ex.Label != Human && ex.Label != Bot {
		return fmt.Errorf("%w: example %s has label %s", ErrBadConfig, ex.ID, ex.Label)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if len(d.examples) == 0 {
		d.dim = len(ex.Vector)
	} else if len(ex.Vector) != d.dim {
		return fmt.Errorf("%w: example %s has %d dimensions, dataset has %d", ErrSchemaMismatch, ex.ID, len(ex.Vector), d.dim)
	}

	if have, ok := d.examples[ex.ID]; ok && have.Label != ex.Label {
		return fmt.Errorf("%w: %s is both %s and %s", ErrConflictingLabel, ex.ID, have.Label, ex.Label)
	}

	d.examples[ex.ID] = ex
	return nil
}

// Remove drops the example with id, if any.
func (d *Dataset) Remove(id string) {
	d.lock.Lock()
	defer d.lock.Unlock()

	delete(d.examples, id)
	if len(d.examples) == 0 {
		d.dim = 0
	}
}

func (d *Dataset) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.examples)
}

// Dimension is the shared vector length, or 0 for an empty dataset.
func (d *Dataset) Dimension() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.dim
}

// Counts returns how many examples each class has.
func (d *Dataset) Counts() (human, bot int) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	for _, ex := range d.examples {
		if ex.Label == Human {
			human++
		} else {
			bot++
		}
	}
	return human, bot
}

// Balance is the share of the minority class, 0.5 being perfectly balanced.
func (d *Dataset) Balance() float64 {
	human, bot := d.Counts()
	if human+bot == 0 {
		return 0
	}
	return float64(min(human, bot)) / float64(human+bot)
}

// Examples returns every example ordered by id.
func (d *Dataset) Examples() []Example {
	d.lock.RLock()
	result := make([]Example, 0, len(d.examples))
	for _, ex := range d.examples {
		result = append(result, ex)
	}
	d.lock.RUnlock()

	slices.SortFunc(result, func(a, b Example) int { return strings.Compare(a.ID, b.ID) })
	return result
}

func (d *Dataset) LogValue() slog.Value {
	human, bot := d.Counts()
	return slog.GroupValue(
		slog.Int("examples", human+bot),
		slog.Int("human", human),
		slog.Int("bot", bot),
		slog.Int("dimension", d.Dimension()),
	)
}
