package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/data"
	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/internal/healthcheck"
	"github.com/TecharoHQ/vox/lib"
	"github.com/TecharoHQ/vox/lib/audit"
	"github.com/TecharoHQ/vox/lib/classifier/artifactstore"
	"github.com/TecharoHQ/vox/lib/dataset"
	"github.com/TecharoHQ/vox/lib/events"
	"github.com/TecharoHQ/vox/lib/transcript"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditDB                  = flag.String("audit-db", "", "if set, path to the SQLite database verdicts are audited to (use :memory: for a throwaway log)")
	auditRetention           = flag.Duration("audit-retention", 30*24*time.Hour, "how long audit entries are kept before being pruned, 0 keeps them forever")
	basePrefix               = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /myapp")
	bind                     = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	cookieDomain             = flag.String("cookie-domain", "", "if set, the top-level domain that the Vox pass cookie will be valid for")
	cookieDynamicDomain      = flag.Bool("cookie-dynamic-domain", false, "if set, automatically set the cookie Domain value based on the request domain")
	cookieExpiration         = flag.Duration("cookie-expiration-time", vox.DefaultTokenExpiration, "The amount of time the pass cookie is valid for")
	cookiePartitioned        = flag.Bool("cookie-partitioned", false, "if true, sets the partitioned flag on Vox cookies, enabling CHIPS support")
	cookieSecure             = flag.Bool("cookie-secure", true, "if true, sets the secure flag on Vox cookies")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign JWTs, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	eventsURL                = flag.String("nats-url", "", "if set, NATS server verdicts and alerts are published to")
	extractResources         = flag.String("extract-resources", "", "if set, extract the built-in policy to the specified folder")
	gzipResponses            = flag.Bool("gzip", true, "if true, compress API responses for clients that accept gzip")
	healthBind               = flag.String("health-bind", ":9091", "network address to serve the gRPC health service on, empty disables it")
	healthToken              = flag.String("health-token", "", "if set, bearer token required by the gRPC health service")
	healthcheckFlag          = flag.Bool("healthcheck", false, "run a health check against Vox and exit")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	modelReloadInterval      = flag.Duration("model-reload-interval", time.Minute, "how often to look for a newer model, 0 loads once at startup")
	modelStore               = flag.String("model-store", "", "directory or s3:// URL models are published to")
	policyFname              = flag.String("policy-fname", "", "full path to vox policy document (defaults to a sensible built-in policy)")
	recordDir                = flag.String("record-dir", "", "if set, answers are re-encoded and kept here for later labeling")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	sttAPIKey                = flag.String("stt-api-key", "", "API key for the speech to text service")
	sttLanguage              = flag.String("stt-language", "en", "language hint passed to the speech to text service")
	sttModel                 = flag.String("stt-model", "", "model name requested from the speech to text service")
	sttURL                   = flag.String("stt-url", "", "base URL of an OpenAI compatible speech to text service")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running Vox on bare metal")
	versionFlag              = flag.Bool("version", false, "print Vox version")
	whisperModel             = flag.String("whisper-model", "", "if set, path to a whisper.cpp model used for local speech recognition")
)

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("supplied key is not hex-encoded: %w", err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("supplied key is not %d bytes long, got %d bytes", ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

func loadKey() ed25519.PrivateKey {
	switch {
	case *ed25519PrivateKeyHex != "" && *ed25519PrivateKeyHexFile != "":
		log.Fatal("do not specify both ED25519_PRIVATE_KEY_HEX and ED25519_PRIVATE_KEY_HEX_FILE")
	case *ed25519PrivateKeyHex != "":
		priv, err := keyFromHex(*ed25519PrivateKeyHex)
		if err != nil {
			log.Fatalf("failed to parse and validate ED25519_PRIVATE_KEY_HEX: %v", err)
		}
		return priv
	case *ed25519PrivateKeyHexFile != "":
		hexFile, err := os.ReadFile(*ed25519PrivateKeyHexFile)
		if err != nil {
			log.Fatalf("failed to read ED25519_PRIVATE_KEY_HEX_FILE %s: %v", *ed25519PrivateKeyHexFile, err)
		}

		priv, err := keyFromHex(string(bytes.TrimSpace(hexFile)))
		if err != nil {
			log.Fatalf("failed to parse and validate content of ED25519_PRIVATE_KEY_HEX_FILE: %v", err)
		}
		return priv
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("failed to generate ed25519 key: %v", err)
	}

	slog.Warn("generating random key, pass tokens will not validate across restarts or between replicas")
	return priv
}

// recognizer picks the local whisper.cpp model when one is configured and the
// remote speech to text service otherwise.
func recognizer(ctx context.Context) (transcript.Recognizer, func() error) {
	switch {
	case *whisperModel != "" && *sttURL != "":
		log.Fatal("do not specify both WHISPER_MODEL and STT_URL")
	case *whisperModel != "":
		w, err := transcript.NewWhisper(*whisperModel)
		if err != nil {
			log.Fatalf("can't load whisper model %s: %v", *whisperModel, err)
		}
		return w, w.Close
	case *sttURL != "":
		stt, err := transcript.NewSTTClient(transcript.STTConfig{
			BaseURL:  *sttURL,
			APIKey:   *sttAPIKey,
			Model:    *sttModel,
			Language: *sttLanguage,
		})
		if err != nil {
			log.Fatalf("can't configure speech to text client: %v", err)
		}

		if err := stt.HealthCheck(ctx); err != nil {
			slog.Warn("speech to text service is not healthy yet", "url", *sttURL, "err", err)
		}
		return stt, func() error { return nil }
	}

	log.Fatal("one of WHISPER_MODEL or STT_URL must be set")
	return nil, nil
}

func doHealthCheck(ctx context.Context) error {
	if *healthBind != "" {
		_, addr := parseBindNetFromAddr(*healthBind)
		return healthcheck.Check(ctx, addr, *healthToken)
	}

	resp, err := http.Get("http://localhost" + *metricsBind + vox.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			if err := listener.Close(); err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("Vox", vox.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheckFlag {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := doHealthCheck(ctx); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *extractResources != "" {
		if err := extractEmbedFS(data.Policies, ".", *extractResources); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted embedded policy to %s\n", *extractResources)
		return
	}

	if *cookieDomain != "" && *cookieDynamicDomain {
		log.Fatalf("you can't set COOKIE_DOMAIN and COOKIE_DYNAMIC_DOMAIN at the same time")
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := lib.LoadPoliciesOrDefault(*policyFname)
	if err != nil {
		log.Fatalf("can't parse policy file: %v", err)
	}

	rec, closeRec := recognizer(ctx)
	defer closeRec()

	opts := lib.Options{
		Policy:              policy,
		Recognizer:          rec,
		BasePrefix:          *basePrefix,
		CookieDomain:        *cookieDomain,
		CookieDynamicDomain: *cookieDynamicDomain,
		CookieExpiration:    *cookieExpiration,
		CookiePartitioned:   *cookiePartitioned,
		CookieSecure:        *cookieSecure,
		ED25519PrivateKey:   loadKey(),
	}

	if *modelStore != "" {
		files, err := artifactstore.Open(*modelStore)
		if err != nil {
			log.Fatalf("can't open model store %s: %v", *modelStore, err)
		}
		opts.Models = artifactstore.New(files)
	} else {
		slog.Warn("MODEL_STORE is not set, every verdict will be rejected until a model is activated")
	}

	if *auditDB != "" {
		al, err := audit.Open(ctx, *auditDB)
		if err != nil {
			log.Fatalf("can't open audit log %s: %v", *auditDB, err)
		}
		defer al.Close()
		opts.Audit = al
	}

	if *eventsURL != "" {
		nc, err := events.Connect(*eventsURL)
		if err != nil {
			log.Fatalf("can't connect to NATS at %s: %v", *eventsURL, err)
		}
		defer nc.Close()
		opts.Events = nc
	}

	if *recordDir != "" {
		opts.Recorder = dataset.DirRecorder{Dir: *recordDir}
	}

	var hs *healthcheck.Server
	if *healthBind != "" {
		hs = healthcheck.New(*healthToken)
		opts.OnModelChange = func(version string) {
			slog.Info("model active", "version", version)
			hs.SetServing(true)
		}
	}

	s, err := lib.New(ctx, opts)
	if err != nil {
		log.Fatalf("can't construct lib.Server: %v", err)
	}

	wg := new(sync.WaitGroup)

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	if hs != nil {
		wg.Add(1)
		go healthServer(ctx, hs, wg.Done)
	}

	if opts.Models != nil {
		if err := s.ReloadModel(ctx); err != nil {
			slog.Error("can't load initial model", "err", err)
		}

		if *modelReloadInterval > 0 {
			wg.Add(1)
			go every(ctx, *modelReloadInterval, wg.Done, func() {
				if err := s.ReloadModel(ctx); err != nil {
					slog.Error("can't reload model", "err", err)
				}
			})
		}
	}

	wg.Add(1)
	go every(ctx, time.Minute, wg.Done, func() {
		s.CleanupDecayMap()

		if opts.Audit == nil || *auditRetention <= 0 {
			return
		}

		n, err := opts.Audit.Prune(ctx, time.Now().Add(-*auditRetention))
		if err != nil {
			slog.Error("can't prune audit log", "err", err)
			return
		}
		if n > 0 {
			slog.Debug("pruned audit log", "entries", n)
		}
	})

	var h http.Handler
	h = s
	if *gzipResponses {
		h = internal.GzipMiddleware(-1, h)
	}
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", vox.Version,
		"policy", *policyFname,
		"challenge-kind", policy.Challenge.Kind,
		"model-store", *modelStore,
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
		"cookie-expiration-time", *cookieExpiration,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

// every runs fn on each tick of d until ctx is done.
func every(ctx context.Context, d time.Duration, done func(), fn func()) {
	defer done()

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func healthServer(ctx context.Context, hs *healthcheck.Server, done func()) {
	defer done()

	listener, healthUrl := setupListener("", *healthBind)
	slog.Debug("listening for health checks", "url", healthUrl)

	go func() {
		<-ctx.Done()
		hs.Stop()
	}()

	if err := hs.Serve(listener); err != nil {
		log.Fatal(err)
	}
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(vox.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func extractEmbedFS(fsys embed.FS, root string, destDir string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, root, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
