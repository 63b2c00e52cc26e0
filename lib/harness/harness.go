// Package harness drives a running Vox with generated answers and tallies
// how often they get through.
package harness

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Report tallies a probe run.
type Report struct {
	Attempts int            `json:"attempts"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Errors   int            `json:"errors"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

// BlockRate is the fraction of answered attempts that were rejected.
func (r Report) BlockRate() float64 {
	answered := r.Accepted + r.Rejected
	if answered == 0 {
		return 0
	}
	return float64(r.Rejected) / float64(answered)
}

// Probe issues a challenge, obtains a sample for it and submits it, Attempts
// times in a row.
type Probe struct {
	Client *Client
	Source Source

	Attempts int

	// Interval spaces attempts so the server's rate limit is not hit.
	Interval time.Duration
}

// Run stops early only when ctx ends. Failures of single attempts are
// logged and counted.
func (p *Probe) Run(ctx context.Context) (Report, error) {
	report := Report{Reasons: map[string]int{}}
	lg := slog.With("subsystem", "harness")

	for i := range p.Attempts {
		if i > 0 && p.Interval > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(p.Interval):
			}
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Attempts++

		res, err := p.once(ctx)
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) && rle.RetryAfter > 0 {
				lg.Debug("backing off", "retry_after", rle.RetryAfter)
				select {
				case <-ctx.Done():
					return report, ctx.Err()
				case <-time.After(rle.RetryAfter):
				}
			}

			lg.Error("attempt failed", "attempt", i, "err", err)
			report.Errors++
			continue
		}

		for _, r := range res.Reasons {
			report.Reasons[r]++
		}

		if res.Accepted {
			report.Accepted++
		} else {
			report.Rejected++
		}

		lg.Debug("attempt", "attempt", i, "accepted", res.Accepted, "reason", res.Reason)
	}

	return report, nil
}

func (p *Probe) once(ctx context.Context) (Result, error) {
	prompt, err := p.Client.Challenge(ctx)
	if err != nil {
		return Result{}, err
	}

	sample, err := p.Source.Obtain(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	return p.Client.Verify(ctx, prompt.ChallengeID, sample)
}
