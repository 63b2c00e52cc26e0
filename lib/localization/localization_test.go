package localization

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCatalogLoads(t *testing.T) {
	data, err := localeFS.ReadFile("locales/en.json")
	if err != nil {
		t.Fatal(err)
	}

	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		t.Fatalf("en.json is not valid: %v", err)
	}

	l := Default().Localizer("en")
	for id := range messages {
		if !l.Has(id) {
			t.Errorf("message %q did not resolve", id)
		}
	}
}

func TestPrompt(t *testing.T) {
	l := Default().Localizer()

	for _, tt := range []struct {
		kind, phrase, want string
	}{
		{kind: "digits", phrase: "seven three five", want: "Please say these digits out loud, one at a time: seven three five"},
		{kind: "phrase", phrase: "the river runs north", want: "Please read this phrase out loud: the river runs north"},
		{kind: "fixed", phrase: "hello", want: "Please read the following out loud: hello"},
	} {
		t.Run(tt.kind, func(t *testing.T) {
			if got := l.Prompt(tt.kind, tt.phrase); got != tt.want {
				t.Errorf("wanted %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUnknownMessage(t *testing.T) {
	l := Default().Localizer("en")
	if got := l.T("does_not_exist"); got != "does_not_exist" {
		t.Errorf("wanted the id back, got %q", got)
	}
	if l.Has("does_not_exist") {
		t.Error("Has reported a missing message")
	}
}

func TestFromRequestFallsBackToEnglish(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	l := Default().FromRequest(req)
	if got := l.T("reason_Timeout"); !strings.HasPrefix(got, "Verification took too long") {
		t.Errorf("wanted the English message, got %q", got)
	}
}
