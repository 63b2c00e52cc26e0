package lib

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TecharoHQ/vox/decaymap"
	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/TecharoHQ/vox/lib/audit"
	"github.com/TecharoHQ/vox/lib/challenge"
	"github.com/TecharoHQ/vox/lib/classifier"
	"github.com/TecharoHQ/vox/lib/dataset"
	"github.com/TecharoHQ/vox/lib/events"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/localization"
	"github.com/TecharoHQ/vox/lib/policy"
	"github.com/TecharoHQ/vox/lib/transcript"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vox_decision_time",
		Help:    "Time taken to reach a verdict (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(1, 60_000, 16),
	}, []string{"accepted"})

	modelReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vox_model_reloads",
		Help: "Model reload attempts by result",
	}, []string{"result"})
)

// Scorer turns a feature vector into a human likelihood.
type Scorer interface {
	Score(ctx context.Context, v features.Vector) (score float64, version string, err error)
}

// ModelSource yields the newest published model.
type ModelSource interface {
	LoadLatest(ctx context.Context) (*classifier.Artifact, error)
}

type modelScorer struct {
	active *classifier.Active
	cfg    features.Config
}

func (m *modelScorer) Score(ctx context.Context, v features.Vector) (float64, string, error) {
	art := m.active.Snapshot()
	if art == nil {
		return 0, "", classifier.ErrModelUnavailable
	}

	p, err := classifier.Score(art, m.cfg, v)
	if err != nil {
		return 0, art.Version, err
	}

	return p, art.Version, ctx.Err()
}

// Sample is an uploaded answer.
type Sample struct {
	ContentType string
	Data        []byte
	RemoteAddr  string
}

type Server struct {
	mux        *http.ServeMux
	policy     *policy.ParsedConfig
	challenges *challenge.Generator
	extractor  *features.Extractor
	matcher    *transcript.Matcher
	scorer     Scorer
	active     *classifier.Active
	attempts   *decaymap.Impl[string, struct{}]
	messages   *localization.Service
	priv       ed25519.PrivateKey
	pub        ed25519.PublicKey
	opts       Options

	issued   atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64
}

// Issue creates a challenge. r, when given, supplies audit metadata.
func (s *Server) Issue(ctx context.Context, r *http.Request) (*challenge.Challenge, error) {
	var meta map[string]string
	if r != nil {
		meta = map[string]string{
			"remote_addr": r.Header.Get("X-Real-Ip"),
			"user_agent":  r.UserAgent(),
		}
	}

	chall, err := s.challenges.Issue(ctx, meta)
	if err != nil {
		return nil, err
	}

	s.issued.Add(1)
	return chall, nil
}

// Decide judges sample as the answer to challenge id. It never fails: every
// problem becomes a rejected verdict carrying a reason.
func (s *Server) Decide(ctx context.Context, id string, sample Sample) policy.Verdict {
	start := time.Now()
	lg := slog.With("challenge_id", id, "remote_addr", sample.RemoteAddr)

	chall, v, clip := s.decide(ctx, id, sample, lg)

	kind := ""
	if chall != nil {
		kind = chall.Kind
	}

	if v.Accepted {
		s.accepted.Add(1)
	} else {
		s.rejected.Add(1)
	}

	elapsed := time.Since(start)
	policy.Record(v)
	decisionTime.WithLabelValues(fmt.Sprint(v.Accepted)).Observe(float64(elapsed.Milliseconds()))
	lg.Info("verdict", "verdict", v, "elapsed", elapsed)

	s.report(ctx, kind, v, sample, clip, elapsed, lg)

	return v
}

func (s *Server) decide(ctx context.Context, id string, sample Sample, lg *slog.Logger) (*challenge.Challenge, policy.Verdict, *audio.Clip) {
	chall, err := s.challenges.Consume(ctx, id)
	if err != nil {
		v := policy.Reject(id, policy.ReasonInvalidChallenge)
		v.Detail = err.Error()
		return nil, v, nil
	}

	clip, err := audio.Decode(sample.ContentType, sample.Data)
	if err != nil {
		v := policy.Reject(id, policy.ReasonDecodeError)
		v.Detail = err.Error()
		return chall, v, nil
	}

	if err := s.extractor.Check(clip); err != nil {
		v := policy.Reject(id, policy.ReasonLowQualityAudio)
		v.Detail = err.Error()
		return chall, v, clip
	}

	if s.policy.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.RequestTimeout)
		defer cancel()
	}

	var (
		match    transcript.Result
		matchErr error
		score    float64
		version  string
		scoreErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		match, matchErr = s.matcher.Match(ctx, clip, chall.Phrase)
	}()

	go func() {
		defer wg.Done()
		vec, err := s.extractor.Extract(clip)
		if err != nil {
			scoreErr = err
			return
		}
		score, version, scoreErr = s.scorer.Score(ctx, vec)
	}()

	wg.Wait()

	var reasons []policy.Reason
	var details []error

	if matchErr != nil {
		reasons = appendReason(reasons, matchReason(matchErr))
		details = append(details, matchErr)
	}

	if scoreErr != nil {
		r := scoreReason(scoreErr)
		reasons = appendReason(reasons, r)
		details = append(details, scoreErr)
		s.alertFor(ctx, r, scoreErr, lg)
	}

	if len(reasons) != 0 {
		if matchErr == nil && match.Score < s.policy.Fusion.Thresholds.Transcript {
			reasons = appendReason(reasons, policy.ReasonTranscriptMismatch)
		}
		if scoreErr == nil && score < s.policy.Fusion.Thresholds.Human {
			reasons = appendReason(reasons, policy.ReasonBotDetected)
		}

		v := policy.Reject(id, reasons...)
		v.TranscriptScore = match.Score
		v.BotScore = score
		v.ModelVersion = version
		v.Transcript = match.Transcript
		v.Detail = errors.Join(details...).Error()
		return chall, v, clip
	}

	ok, failures, err := s.policy.Fusion.Evaluate(ctx, policy.Scores{
		Transcript: match.Score,
		Bot:        score,
		Kind:       chall.Kind,
	})
	if err != nil {
		lg.Error("fusion expression failed", "err", err)
	}

	var v policy.Verdict
	if ok {
		v = policy.Accept(id, match.Score, score)
	} else {
		v = policy.Reject(id, failures...)
		v.TranscriptScore = match.Score
		v.BotScore = score
	}
	v.ModelVersion = version
	v.Transcript = match.Transcript

	return chall, v, clip
}

func appendReason(reasons []policy.Reason, r policy.Reason) []policy.Reason {
	for _, have := range reasons {
		if have == r {
			return reasons
		}
	}
	return append(reasons, r)
}

func matchReason(err error) policy.Reason {
	switch {
	case errors.Is(err, audio.ErrDecode):
		return policy.ReasonDecodeError
	default:
		return policy.ReasonTimeout
	}
}

func scoreReason(err error) policy.Reason {
	switch {
	case errors.Is(err, features.ErrLowQuality), errors.Is(err, classifier.ErrNonFiniteFeature):
		return policy.ReasonLowQualityAudio
	case errors.Is(err, classifier.ErrSchemaMismatch):
		return policy.ReasonFeatureSchemaMismatch
	case errors.Is(err, context.DeadlineExceeded):
		return policy.ReasonTimeout
	case errors.Is(err, audio.ErrDecode):
		return policy.ReasonDecodeError
	default:
		return policy.ReasonModelUnavailable
	}
}

func (s *Server) alertFor(ctx context.Context, r policy.Reason, err error, lg *slog.Logger) {
	var kind string
	switch r {
	case policy.ReasonFeatureSchemaMismatch:
		kind = events.AlertFeatureSchemaMismatch
		lg.Error("feature schema mismatch", "err", err)
	case policy.ReasonModelUnavailable:
		kind = events.AlertModelUnavailable
		lg.Warn("classifier unavailable", "err", err)
	default:
		return
	}

	if perr := s.opts.Events.PublishAlert(ctx, events.Alert{Kind: kind, Message: err.Error()}); perr != nil {
		lg.Error("can't publish alert", "kind", kind, "err", perr)
	}
}

// report fans the verdict out to the audit log, event bus and sample
// recorder. Failures there never change the verdict.
func (s *Server) report(ctx context.Context, kind string, v policy.Verdict, sample Sample, clip *audio.Clip, elapsed time.Duration, lg *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	if s.opts.Audit != nil {
		e := &audit.Entry{
			ChallengeID:    v.ChallengeID,
			ChallengeKind:  kind,
			Verdict:        v,
			AudioSHA256:    internal.SHA256sumBytes(sample.Data),
			RemoteAddr:     sample.RemoteAddr,
			ProcessingTime: elapsed,
		}
		if clip != nil {
			e.AudioDuration = clip.Duration()
		}
		if err := s.opts.Audit.Record(ctx, e); err != nil {
			lg.Error("can't audit verdict", "err", err)
		}
	}

	if err := s.opts.Events.PublishVerdict(ctx, kind, v); err != nil {
		lg.Error("can't publish verdict", "err", err)
	}

	if clip != nil && !v.Has(policy.ReasonInvalidChallenge) {
		if err := s.opts.Recorder.Record(ctx, dataset.Sample{Clip: clip, Kind: kind, Accepted: v.Accepted}); err != nil {
			lg.Error("can't record sample", "err", err)
		}
	}
}

// CurrentModelVersion reports the active artifact version.
func (s *Server) CurrentModelVersion() (string, bool) {
	return s.active.Version()
}

// ActivateModel installs art after checking it matches the extractor.
func (s *Server) ActivateModel(ctx context.Context, art *classifier.Artifact) error {
	if !art.Features.Equal(s.extractor.Config()) {
		err := fmt.Errorf("%w: model %s wants features %s, extractor has %s", classifier.ErrSchemaMismatch, art.Version, art.Features.Hash(), s.extractor.Config().Hash())
		s.alertFor(ctx, policy.ReasonFeatureSchemaMismatch, err, slog.Default())
		return err
	}

	s.active.Swap(art)

	if err := s.opts.Events.PublishAlert(ctx, events.Alert{
		Kind:    events.AlertModelSwapped,
		Message: "activated model " + art.Version,
		Fields:  map[string]string{"version": art.Version},
	}); err != nil {
		slog.Error("can't publish model swap", "err", err)
	}

	if s.opts.OnModelChange != nil {
		s.opts.OnModelChange(art.Version)
	}

	return nil
}

// ReloadModel fetches the latest artifact from the model source and swaps it
// in. On failure the previous model keeps serving.
func (s *Server) ReloadModel(ctx context.Context) error {
	if s.opts.Models == nil {
		modelReloads.WithLabelValues("no_source").Inc()
		return ErrNoModelSource
	}

	art, err := s.opts.Models.LoadLatest(ctx)
	if err != nil {
		modelReloads.WithLabelValues("load_failed").Inc()
		return fmt.Errorf("lib: can't load latest model: %w", err)
	}

	if current, ok := s.active.Version(); ok && current == art.Version {
		modelReloads.WithLabelValues("unchanged").Inc()
		return nil
	}

	if err := s.ActivateModel(ctx, art); err != nil {
		modelReloads.WithLabelValues("rejected").Inc()
		return err
	}

	modelReloads.WithLabelValues("ok").Inc()
	return nil
}

// CleanupDecayMap drops expired rate limit entries.
func (s *Server) CleanupDecayMap() {
	s.attempts.Cleanup()
}
