package transcript

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TecharoHQ/vox/lib/audio"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// STTConfig points an STTClient at an OpenAI compatible transcription API.
type STTConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string

	HTTPClient *http.Client
}

// STTClient recognizes speech through /v1/audio/transcriptions.
type STTClient struct {
	client   *openai.Client
	http     *http.Client
	baseURL  string
	model    string
	language string
}

var _ Recognizer = (*STTClient)(nil)

func NewSTTClient(cfg STTConfig) (*STTClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcript: stt base url is required")
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithBaseURL(base+"/v1/"),
		option.WithMaxRetries(0),
	)

	return &STTClient{
		client:   &client,
		http:     cfg.HTTPClient,
		baseURL:  base,
		model:    cfg.Model,
		language: cfg.Language,
	}, nil
}

// HealthCheck verifies the service is running.
func (s *STTClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: can't reach stt service at %s: %w", ErrRecognizer, s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: stt health check returned status %d", ErrRecognizer, resp.StatusCode)
	}

	return nil
}

func (s *STTClient) Decode(ctx context.Context, clip *audio.Clip) (string, error) {
	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(s.model),
		File:  openai.File(bytes.NewReader(wav), "answer.wav", "audio/wav"),
	}
	if s.language != "" {
		params.Language = openai.String(s.language)
	}

	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}

	return text, nil
}
