package lib

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/lib/policy"
)

func postChallenge(t *testing.T, ts *httptest.Server) challengeResponse {
	t.Helper()

	resp, err := ts.Client().Post(ts.URL+vox.APIPrefix+"challenge", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wanted 200, got %d", resp.StatusCode)
	}

	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("challenge responses must not be cached, got %q", cc)
	}

	var chall challengeResponse
	if err := json.NewDecoder(resp.Body).Decode(&chall); err != nil {
		t.Fatal(err)
	}
	return chall
}

func multipartVerify(t *testing.T, id string, audioData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("challenge_id", id); err != nil {
		t.Fatal(err)
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="answer.wav"`)
	hdr.Set("Content-Type", "audio/wav")
	fw, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(audioData)

	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	return &buf, mw.FormDataContentType()
}

func decodeVerdict(t *testing.T, resp *http.Response) verdictResponse {
	t.Helper()
	defer resp.Body.Close()

	var v verdictResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHTTPFlow(t *testing.T) {
	h := spawn(t, "seven three nine", 0.9, Options{})
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	chall := postChallenge(t, ts)
	if chall.Phrase != "seven three nine" || chall.Kind != "fixed" {
		t.Errorf("unexpected challenge: %+v", chall)
	}
	if !strings.Contains(chall.Prompt, "seven three nine") {
		t.Errorf("prompt does not contain the phrase: %q", chall.Prompt)
	}

	body, ct := multipartVerify(t, chall.ChallengeID, voice(t, 2*time.Second))
	resp, err := ts.Client().Post(ts.URL+vox.APIPrefix+"verify", ct, body)
	if err != nil {
		t.Fatal(err)
	}

	var token *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == vox.TokenCookieName {
			token = c
		}
	}

	v := decodeVerdict(t, resp)
	if !v.Accepted || v.Token == "" {
		t.Fatalf("wanted acceptance with a token, got %+v", v)
	}

	if v.TranscriptScore == nil || *v.TranscriptScore != 1 {
		t.Errorf("scores should be exposed by default: %+v", v)
	}

	if token == nil || token.Value != v.Token {
		t.Fatal("pass cookie missing or different from the token in the body")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+vox.APIPrefix+"check", nil)
	req.AddCookie(token)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid pass token rejected: %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+vox.APIPrefix+"check", nil)
	req.Header.Set("Authorization", "Bearer "+v.Token+"x")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("tampered token accepted: %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + vox.APIPrefix + "status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}

	if st.ChallengesIssued != 1 || st.VerdictsAccepted != 1 || st.VerdictsRejected != 0 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestHTTPVerifyJSON(t *testing.T) {
	h := spawn(t, "seven three nine", 0.2, Options{})
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	chall := postChallenge(t, ts)

	payload, _ := json.Marshal(verifyRequest{
		ChallengeID: chall.ChallengeID,
		Audio:       base64.StdEncoding.EncodeToString(voice(t, 2*time.Second)),
		ContentType: "audio/wav",
	})

	resp, err := ts.Client().Post(ts.URL+vox.APIPrefix+"verify", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	v := decodeVerdict(t, resp)
	if v.Accepted || v.Reason != policy.ReasonBotDetected {
		t.Errorf("wanted BotDetected, got %+v", v)
	}

	if v.Token != "" {
		t.Error("rejected verdict carried a token")
	}

	if v.Message == "" || v.Message == v.Reason.MessageID() {
		t.Errorf("verdict message not localized: %q", v.Message)
	}
}

func TestHTTPHideScores(t *testing.T) {
	pc := *policy.Default()
	pc.ExposeScores = false

	h := spawn(t, "seven three nine", 0.9, Options{Policy: &pc})
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	chall := postChallenge(t, ts)
	body, ct := multipartVerify(t, chall.ChallengeID, voice(t, 2*time.Second))

	resp, err := ts.Client().Post(ts.URL+vox.APIPrefix+"verify", ct, body)
	if err != nil {
		t.Fatal(err)
	}

	v := decodeVerdict(t, resp)
	if v.TranscriptScore != nil || v.BotScore != nil || v.ModelVersion != "" {
		t.Errorf("scores leaked with expose_scores off: %+v", v)
	}
}

func TestHTTPBadRequests(t *testing.T) {
	h := spawn(t, "seven three nine", 0.9, Options{})
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	for _, tt := range []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{name: "plain text", contentType: "text/plain", body: "hi", status: http.StatusBadRequest},
		{name: "broken json", contentType: "application/json", body: "{", status: http.StatusBadRequest},
		{name: "bad base64", contentType: "application/json", body: `{"challenge_id":"x","audio":"!!!"}`, status: http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.Client().Post(ts.URL+vox.APIPrefix+"verify", tt.contentType, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("wanted %d, got %d", tt.status, resp.StatusCode)
			}

			var er errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
				t.Fatal(err)
			}
			if er.Error != "error_bad_request" {
				t.Errorf("wanted error_bad_request, got %q", er.Error)
			}
		})
	}

	resp, err := ts.Client().Get(ts.URL + vox.APIPrefix + "verify")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET verify: wanted 405, got %d", resp.StatusCode)
	}
}

func TestHTTPRateLimit(t *testing.T) {
	h := spawn(t, "seven three nine", 0.9, Options{})

	send := func() int {
		body, ct := multipartVerify(t, "doesnotexistatall", voice(t, 2*time.Second))
		req := httptest.NewRequest(http.MethodPost, vox.APIPrefix+"verify", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("X-Real-Ip", "203.0.113.9")
		rw := httptest.NewRecorder()
		h.srv.ServeHTTP(rw, req)
		return rw.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first attempt: wanted 200, got %d", code)
	}

	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second attempt inside the window: wanted 429, got %d", code)
	}
}

func TestSetCookie(t *testing.T) {
	for _, tt := range []struct {
		name    string
		options Options
		host    string
		domain  string
	}{
		{name: "basic"},
		{name: "fixed domain", options: Options{CookieDomain: "example.com"}, domain: "example.com"},
		{name: "dynamic domain", options: Options{CookieDynamicDomain: true}, host: "login.example.co.uk", domain: "example.co.uk"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := spawn(t, "x", 1, tt.options)
			rw := httptest.NewRecorder()

			h.srv.SetCookie(rw, CookieOpts{Value: "test", Host: tt.host})

			cookies := rw.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("wanted 1 cookie, got %d", len(cookies))
			}

			if cookies[0].Name != vox.TokenCookieName {
				t.Errorf("wanted cookie named %q, got %q", vox.TokenCookieName, cookies[0].Name)
			}

			if cookies[0].Domain != tt.domain {
				t.Errorf("wanted domain %q, got %q", tt.domain, cookies[0].Domain)
			}
		})
	}
}

func TestClearCookie(t *testing.T) {
	h := spawn(t, "x", 1, Options{CookieDynamicDomain: true})
	rw := httptest.NewRecorder()

	h.srv.ClearCookie(rw, CookieOpts{Host: "subdomain.example.net"})

	cookies := rw.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("wanted 1 cookie, got %d", len(cookies))
	}

	if cookies[0].MaxAge != -1 {
		t.Errorf("wanted cookie max age of -1, got: %d", cookies[0].MaxAge)
	}

	if cookies[0].Domain != "example.net" {
		t.Errorf("wanted domain example.net, got %q", cookies[0].Domain)
	}
}
