// Package localization renders prompts and user-facing verdict explanations
// from an embedded message catalog.
package localization

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type Service struct {
	bundle *i18n.Bundle
}

var (
	global *Service
	once   sync.Once
)

// Default returns the process-wide catalog, loading it on first use.
func Default() *Service {
	once.Do(func() {
		global = load()
	})
	return global
}

func load() *Service {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error("can't list message catalogs", "err", err)
		return &Service{bundle: bundle}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
			slog.Error("can't load message catalog", "file", entry.Name(), "err", err)
		}
	}

	return &Service{bundle: bundle}
}

// Localizer picks messages for the given language tags, falling back to English.
func (s *Service) Localizer(langs ...string) *Localizer {
	return &Localizer{l: i18n.NewLocalizer(s.bundle, append(langs, "en")...)}
}

// FromRequest honours the Accept-Language header.
func (s *Service) FromRequest(r *http.Request) *Localizer {
	return s.Localizer(r.Header.Get("Accept-Language"))
}

// Localizer wraps i18n.Localizer with lookups that never fail.
type Localizer struct {
	l *i18n.Localizer
}

// T returns the message for id, or id itself when the catalog lacks it.
func (l *Localizer) T(id string) string {
	return l.Tf(id, nil)
}

// Tf renders message id with template data.
func (l *Localizer) Tf(id string, data map[string]any) string {
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return msg
}

// Has reports whether the catalog knows id.
func (l *Localizer) Has(id string) bool {
	_, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: id})
	return err == nil
}

// Prompt renders the spoken instruction for a challenge kind.
func (l *Localizer) Prompt(kind, phrase string) string {
	id := "prompt_" + kind
	if !l.Has(id) {
		id = "prompt_generic"
	}
	return l.Tf(id, map[string]any{"Phrase": phrase})
}
