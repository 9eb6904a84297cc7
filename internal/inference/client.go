// Package inference talks to the Replicate prediction API that renders the
// restyled room images.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultModelVersion = "854e8727697a057c525cdb45ab037f64ecca770a1769cc52287c2e56472a247b"

type Config struct {
	APIToken     string
	BaseURL      string
	ModelVersion string
	// WebhookURL, when set, is registered on every prediction so the
	// provider reports terminal states even if polling gives up first.
	WebhookURL string
	Timeout    time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

type GenerateInput struct {
	// GenerationID is the locally minted id the provider echoes back via
	// the webhook URL.
	GenerationID string
	ImageURL     string
	Prompt       string
	NumOutputs   int
}

// Prediction is the provider-side record of one generation call.
type Prediction struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"-"`
	Error  string   `json:"-"`
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.replicate.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = defaultModelVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate creates a prediction and polls it to a terminal state. Returns
// the output image URLs; a prediction that terminates without at least one
// output is an error.
func (c *Client) Generate(ctx context.Context, in GenerateInput) ([]string, error) {
	if in.NumOutputs <= 0 {
		in.NumOutputs = 1
	}

	pred, err := c.createPrediction(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		switch pred.Status {
		case "succeeded":
			if len(pred.Output) == 0 {
				return nil, fmt.Errorf("prediction %s succeeded with no output", pred.ID)
			}
			return pred.Output, nil
		case "failed", "canceled":
			msg := pred.Error
			if msg == "" {
				msg = "prediction " + pred.Status
			}
			return nil, fmt.Errorf("%s", msg)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prediction %s timed out after %s", pred.ID, c.cfg.Timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}

		pred, err = c.GetPrediction(ctx, pred.ID)
		if err != nil {
			return nil, fmt.Errorf("poll prediction: %w", err)
		}
	}
}

func (c *Client) createPrediction(ctx context.Context, in GenerateInput) (*Prediction, error) {
	payload := map[string]any{
		"version": c.cfg.ModelVersion,
		"input": map[string]any{
			"image":       in.ImageURL,
			"prompt":      in.Prompt,
			"num_samples": fmt.Sprintf("%d", in.NumOutputs),
			"a_prompt":    "best quality, extremely detailed, photo from Pinterest, interior, cinematic photo, ultra-detailed, ultra-realistic, award-winning",
			"n_prompt":    "longbody, lowres, bad anatomy, bad hands, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality",
		},
	}
	if c.cfg.WebhookURL != "" && in.GenerationID != "" {
		payload["webhook"] = c.cfg.WebhookURL + "?id=" + url.QueryEscape(in.GenerationID)
		payload["webhook_events_filter"] = []string{"completed"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	return c.doPredictionRequest(req)
}

// GetPrediction fetches the current provider-side state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIToken)

	return c.doPredictionRequest(req)
}

func (c *Client) doPredictionRequest(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Str("body", truncate(rawBody)).Msg("replicate request failed")
		return nil, fmt.Errorf("replicate error: status=%d body=%s", resp.StatusCode, truncate(rawBody))
	}

	pred, err := ParsePrediction(rawBody)
	if err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return pred, nil
}

// ParsePrediction decodes a prediction payload. Output arrives either as a
// list of URLs or as a single URL string depending on the model; errors can
// be structured, so both fields are normalized here.
func ParsePrediction(body []byte) (*Prediction, error) {
	var raw struct {
		ID     string          `json:"id"`
		Status string          `json:"status"`
		Output json.RawMessage `json:"output"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	pred := &Prediction{ID: raw.ID, Status: raw.Status}

	if len(raw.Output) > 0 && string(raw.Output) != "null" {
		var many []string
		if err := json.Unmarshal(raw.Output, &many); err == nil {
			pred.Output = many
		} else {
			var one string
			if err := json.Unmarshal(raw.Output, &one); err == nil && one != "" {
				pred.Output = []string{one}
			}
		}
	}

	if len(raw.Error) > 0 && string(raw.Error) != "null" {
		var msg string
		if err := json.Unmarshal(raw.Error, &msg); err == nil {
			pred.Error = msg
		} else {
			pred.Error = strings.Trim(string(raw.Error), `"`)
		}
	}

	return pred, nil
}

func truncate(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
