package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/TecharoHQ/vox"
)

var (
	ErrRateLimited = errors.New("harness: rate limited")
	ErrStatus      = errors.New("harness: unexpected status")
)

// Prompt is an issued challenge as the API presents it.
type Prompt struct {
	ChallengeID string    `json:"challenge_id"`
	Kind        string    `json:"kind"`
	Phrase      string    `json:"phrase"`
	Prompt      string    `json:"prompt"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Result is the verdict the API returned.
type Result struct {
	ChallengeID     string   `json:"challenge_id"`
	Accepted        bool     `json:"accepted"`
	Reason          string   `json:"reason"`
	Reasons         []string `json:"reasons"`
	Message         string   `json:"message"`
	TranscriptScore *float64 `json:"transcript_score,omitempty"`
	BotScore        *float64 `json:"bot_score,omitempty"`
	ModelVersion    string   `json:"model_version,omitempty"`
	Token           string   `json:"token,omitempty"`
}

// RateLimitError carries how long the server asked us to back off.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Client talks to a running Vox over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// RealIP is sent as X-Real-Ip when set.
	RealIP string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) url(route string) string {
	return c.BaseURL + vox.APIPrefix + route
}

func (c *Client) do(req *http.Request, into any) error {
	if c.RealIP != "" {
		req.Header.Set("X-Real-Ip", c.RealIP)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(into)
	case http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &RateLimitError{RetryAfter: time.Duration(secs) * time.Second}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w %d from %s: %s", ErrStatus, resp.StatusCode, req.URL.Path, bytes.TrimSpace(body))
	}
}

// Challenge asks for a fresh challenge.
func (c *Client) Challenge(ctx context.Context) (Prompt, error) {
	var p Prompt

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("challenge"), nil)
	if err != nil {
		return p, err
	}

	if err := c.do(req, &p); err != nil {
		return p, fmt.Errorf("harness: can't get challenge: %w", err)
	}

	return p, nil
}

// Verify uploads s as the answer to challengeID.
func (c *Client) Verify(ctx context.Context, challengeID string, s Sample) (Result, error) {
	var res Result

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("challenge_id", challengeID); err != nil {
		return res, err
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="answer"`)
	hdr.Set("Content-Type", s.ContentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return res, err
	}
	if _, err := part.Write(s.Data); err != nil {
		return res, err
	}
	if err := mw.Close(); err != nil {
		return res, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("verify"), &buf)
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := c.do(req, &res); err != nil {
		return res, fmt.Errorf("harness: can't verify %s: %w", challengeID, err)
	}

	return res, nil
}
