package harness

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"
)

var ErrBadPageResult = errors.New("harness: synthesis page returned no audio")

// PlaywrightConfig points a PlaywrightSource at a page that can speak.
type PlaywrightConfig struct {
	// PageURL is loaded in a fresh page for every sample.
	PageURL string

	// Function is the name of a global async function on the page that takes
	// the phrase and resolves to base64 encoded audio. Defaults to
	// "voxSynthesize".
	Function string

	// ContentType describes what Function returns. Defaults to audio/wav.
	ContentType string

	// Install downloads the browser on first use.
	Install bool

	Headless bool
}

// PlaywrightSource obtains answers by asking a headless browser to speak the
// phrase. It models an attacker scripting text to speech in a real browser.
type PlaywrightSource struct {
	cfg     PlaywrightConfig
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightSource(cfg PlaywrightConfig) (*PlaywrightSource, error) {
	if cfg.PageURL == "" {
		return nil, errors.New("harness: playwright page url is required")
	}
	if cfg.Function == "" {
		cfg.Function = "voxSynthesize"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "audio/wav"
	}

	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("harness: can't install browser: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("harness: can't start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--autoplay-policy=no-user-gesture-required"},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("harness: can't launch chromium: %w", err)
	}

	return &PlaywrightSource{cfg: cfg, pw: pw, browser: browser}, nil
}

func (p *PlaywrightSource) Obtain(ctx context.Context, prompt Prompt) (Sample, error) {
	page, err := p.browser.NewPage()
	if err != nil {
		return Sample{}, fmt.Errorf("harness: can't open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("can't close page", "err", err)
		}
	}()

	if _, err := page.Goto(p.cfg.PageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return Sample{}, fmt.Errorf("harness: can't load %s: %w", p.cfg.PageURL, err)
	}

	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	out, err := page.Evaluate(`async ([fn, phrase]) => await window[fn](phrase)`, []any{p.cfg.Function, prompt.Phrase})
	if err != nil {
		return Sample{}, fmt.Errorf("harness: %s failed: %w", p.cfg.Function, err)
	}

	encoded, ok := out.(string)
	if !ok || encoded == "" {
		return Sample{}, ErrBadPageResult
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrBadPageResult, err)
	}

	return Sample{ContentType: p.cfg.ContentType, Data: data, Origin: p.cfg.PageURL}, nil
}

func (p *PlaywrightSource) Close() error {
	return errors.Join(p.browser.Close(), p.pw.Stop())
}
