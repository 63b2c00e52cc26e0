package lib

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/data"
	"github.com/TecharoHQ/vox/decaymap"
	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/audit"
	"github.com/TecharoHQ/vox/lib/challenge"
	"github.com/TecharoHQ/vox/lib/classifier"
	"github.com/TecharoHQ/vox/lib/dataset"
	"github.com/TecharoHQ/vox/lib/events"
	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/localization"
	"github.com/TecharoHQ/vox/lib/policy"
	"github.com/TecharoHQ/vox/lib/store"
	"github.com/TecharoHQ/vox/lib/transcript"
)

var (
	ErrNoRecognizer  = errors.New("lib: no speech recognizer configured")
	ErrNoModelSource = errors.New("lib: no model source configured")
)

type Options struct {
	Policy *policy.ParsedConfig

	// Store overrides the backend named in the policy file.
	Store store.Interface

	Recognizer transcript.Recognizer
	Features   features.Config

	// Scorer overrides scoring through the active model artifact.
	Scorer Scorer

	// Models is where ReloadModel fetches artifacts from.
	Models ModelSource

	Audit    *audit.Log
	Events   events.Publisher
	Recorder dataset.Recorder

	// OnModelChange is called after every successful model swap.
	OnModelChange func(version string)

	BasePrefix          string
	CookieDomain        string
	CookieDynamicDomain bool
	CookieExpiration    time.Duration
	CookiePartitioned   bool
	CookieSecure        bool
	ED25519PrivateKey   ed25519.PrivateKey
}

func LoadPoliciesOrDefault(fname string) (*policy.ParsedConfig, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/" + data.DefaultPolicy
		fin, err = data.Policies.Open(data.DefaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't parse builtin policy file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		if err := fin.Close(); err != nil {
			slog.Error("failed to close policy file", "file", fname, "err", err)
		}
	}(fin)

	result, err := policy.ParseConfig(fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
	}

	return result, nil
}

func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}

	if opts.Recognizer == nil {
		return nil, ErrNoRecognizer
	}

	if opts.Features == (features.Config{}) {
		opts.Features = features.DefaultConfig()
	}

	if opts.ED25519PrivateKey == nil {
		slog.Debug("opts.ED25519PrivateKey not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %w", err)
		}
		opts.ED25519PrivateKey = priv
	}

	if opts.CookieExpiration == 0 {
		opts.CookieExpiration = vox.DefaultTokenExpiration
	}

	if opts.Events == nil {
		opts.Events = events.Nop{}
	}

	if opts.Recorder == nil {
		opts.Recorder = dataset.NopRecorder{}
	}

	st := opts.Store
	if st == nil {
		var err error
		st, err = opts.Policy.Store.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("lib: %w", err)
		}
	}

	gen, err := challenge.NewGenerator(st, opts.Policy.Challenge)
	if err != nil {
		return nil, fmt.Errorf("lib: can't set up challenges: %w", err)
	}

	ext, err := features.New(opts.Features, opts.Policy.Quality)
	if err != nil {
		return nil, fmt.Errorf("lib: can't set up feature extraction: %w", err)
	}

	vox.BasePrefix = opts.BasePrefix

	result := &Server{
		opts:       opts,
		policy:     opts.Policy,
		challenges: gen,
		extractor:  ext,
		matcher:    transcript.NewMatcher(opts.Recognizer, opts.Policy.RecognitionTimeout),
		active:     &classifier.Active{},
		attempts:   decaymap.New[string, struct{}](),
		messages:   localization.Default(),
		priv:       opts.ED25519PrivateKey,
		pub:        opts.ED25519PrivateKey.Public().(ed25519.PublicKey),
	}

	result.scorer = opts.Scorer
	if result.scorer == nil {
		result.scorer = &modelScorer{active: result.active, cfg: ext.Config()}
	}

	mux := http.NewServeMux()

	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " "
		}

		basePrefix := strings.TrimSuffix(vox.BasePrefix, "/")
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(method+basePrefix+pattern, internal.NoStoreCache(handler))
	}

	registerWithPrefix(vox.APIPrefix+"challenge", http.HandlerFunc(result.handleChallenge), "POST")
	registerWithPrefix(vox.APIPrefix+"verify", http.HandlerFunc(result.handleVerify), "POST")
	registerWithPrefix(vox.APIPrefix+"status", http.HandlerFunc(result.handleStatus), "GET")
	registerWithPrefix(vox.APIPrefix+"check", http.HandlerFunc(result.handleCheck), "GET")

	result.mux = mux

	return result, nil
}
