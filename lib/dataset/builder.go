package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/TecharoHQ/vox/lib/classifier"
	"github.com/TecharoHQ/vox/lib/features"
	"golang.org/x/sync/errgroup"
)

// Report summarizes a build.
type Report struct {
	Extracted int            `json:"extracted"`
	Cached    int            `json:"cached"`
	Skipped   map[string]int `json:"skipped,omitempty"`
}

func (r *Report) skip(reason string) {
	if r.Skipped == nil {
		r.Skipped = map[string]int{}
	}
	r.Skipped[reason]++
}

// Builder extracts features from recordings in parallel.
type Builder struct {
	Extractor *features.Extractor

	// Cache is optional.
	Cache *Cache

	// Workers bounds parallel extraction. Zero means GOMAXPROCS.
	Workers int
}

// Build extracts every source into a dataset. Recordings that fail decoding
// or the quality gate are skipped and counted, not fatal. Examples are keyed
// by the hash of their audio so duplicate files collapse into one. Audio
// found under both labels is dropped entirely and every copy is counted as
// conflicting_label, whatever order the workers finish in.
func (b *Builder) Build(ctx context.Context, sources []Source) (*classifier.Dataset, Report, error) {
	var (
		report Report
		lock   sync.Mutex
		ds     = classifier.NewDataset()
		seen   = map[string]*[2]int{}
		cfg    = b.Extractor.Config()
	)

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, src := range sources {
		g.Go(func() error {
			vec, id, cached, err := b.one(gCtx, src, cfg)

			lock.Lock()
			defer lock.Unlock()

			switch {
			case err == nil:
			case errors.Is(err, features.ErrLowQuality):
				var qe *features.QualityError
				reason := "low_quality"
				if errors.As(err, &qe) {
					reason = qe.Reason
				}
				report.skip(reason)
				slog.Warn("skipping recording", "path", src.Path, "reason", reason)
				return nil
			case errors.Is(err, audio.ErrDecode), errors.Is(err, audio.ErrUnsupportedFormat):
				report.skip("decode_error")
				slog.Warn("skipping recording", "path", src.Path, "err", err)
				return nil
			default:
				return fmt.Errorf("dataset: %s: %w", src.Path, err)
			}

			if cached {
				report.Cached++
			} else {
				report.Extracted++
			}

			if seen[id] == nil {
				seen[id] = &[2]int{}
			}
			seen[id][src.Label]++

			err = ds.Add(classifier.Example{ID: id, Vector: vec, Label: src.Label})
			if errors.Is(err, classifier.ErrConflictingLabel) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	for id, counts := range seen {
		if counts[classifier.Human] == 0 || counts[classifier.Bot] == 0 {
			continue
		}
		ds.Remove(id)
		for range counts[classifier.Human] + counts[classifier.Bot] {
			report.skip("conflicting_label")
		}
		slog.Warn("dropping recording labeled both human and bot", "id", id, "human", counts[classifier.Human], "bot", counts[classifier.Bot])
	}

	slog.Info("built dataset", "dataset", ds, "extracted", report.Extracted, "cached", report.Cached, "skipped", report.Skipped)
	return ds, report, nil
}

func (b *Builder) one(ctx context.Context, src Source, cfg features.Config) (features.Vector, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, "", false, err
	}

	id := internal.SHA256sumBytes(data)

	if b.Cache != nil {
		vec, ok, err := b.Cache.Get(ctx, id, cfg)
		if err != nil {
			slog.Warn("feature cache read failed", "path", src.Path, "err", err)
		} else if ok {
			return vec, id, true, nil
		}
	}

	contentType, _ := ContentType(src.Path)
	vec, err := b.Extractor.ExtractBytes(contentType, data)
	if err != nil {
		return nil, "", false, err
	}

	if b.Cache != nil {
		if err := b.Cache.Put(ctx, id, cfg, vec); err != nil {
			slog.Warn("feature cache write failed", "path", src.Path, "err", err)
		}
	}

	return vec, id, false, nil
}
