package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/store/model"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// SourceVideo is the normalized result of scraping a social video post.
type SourceVideo struct {
	VideoURL string
	CoverURL string
	Width    int
	Height   int
}

type Image struct {
	URL string
}

type Video struct {
	URL string
}

type GenerateRequest struct {
	Prompt              string
	ReferenceImages     []string
	Count               int
	EnableUnsafeContent bool
	Width               int
	Height              int
}

type AnimateRequest struct {
	VideoURL   string
	ImageURL   string
	Resolution string
}

// VideoSource resolves a social post URL into a downloadable video asset.
type VideoSource interface {
	Resolve(ctx context.Context, link string) (*SourceVideo, error)
}

// ImageGenerator produces edited images from a prompt and reference images.
// NeedsDataURI declares whether reference images must be inlined as data
// URIs or can be passed as plain HTTP URLs.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Image, error)
	NeedsDataURI() bool
}

// VideoAnimator drives a source video with a replacement character image.
type VideoAnimator interface {
	Animate(ctx context.Context, req AnimateRequest) (*Video, error)
}

// Adapters bundles the three capabilities selected for one batch run.
type Adapters struct {
	Source   VideoSource
	Images   ImageGenerator
	Animator VideoAnimator
}

// New selects provider adapters from the operator settings. Unknown provider
// names fall back to Wavespeed. Selection is a pure function of
// configuration; no calls are made here.
func New(cfg *config.Config, settings *model.Settings) (*Adapters, error) {
	adapters := &Adapters{
		Source: NewApifyClient(cfg.Providers.ApifyAPIKey),
	}

	switch settings.Provider {
	case model.ProviderFal:
		if cfg.Providers.FalAPIKey == "" {
			return nil, errors.New("provider FAL.ai selected but FAL_API_KEY is missing")
		}
		fal := NewFalClient(cfg.Providers.FalAPIKey)
		adapters.Images = fal.ImageGenerator()
		adapters.Animator = fal.Animator()
	default:
		if cfg.Providers.WavespeedAPIKey == "" {
			return nil, errors.New("provider Wavespeed selected but WAVESPEED_API_KEY is missing")
		}
		ws := NewWavespeedClient(cfg.Providers.WavespeedAPIKey)
		adapters.Images = ws.ImageGenerator(settings.ImageModel)
		adapters.Animator = ws.Animator()
	}

	return adapters, nil
}

// postJSON performs a JSON round trip and decodes the response into out.
// Non-2xx responses become descriptive errors carrying the status code and
// a truncated response body.
func postJSON(ctx context.Context, client *http.Client, method, rawURL string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(data)), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// pollBackoff is the sleep before the n-th poll of a submitted prediction.
// Grows 5s,10s,15s,20s then stays at 30s.
func pollBackoff(attempt int) time.Duration {
	steps := []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second}
	if attempt < len(steps) {
		return steps[attempt]
	}
	return 30 * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
