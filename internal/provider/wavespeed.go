package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	wavespeedBaseURL  = "https://api.wavespeed.ai"
	wavespeedMaxPolls = 100

	// Seedream rejects outputs below roughly one megapixel; sides must be
	// divisible by 8.
	wavespeedMinPixels       = 1 << 20
	wavespeedSizeGranularity = 8

	wavespeedSeedream40 = "bytedance/seedream-v4/edit"
	wavespeedSeedream45 = "bytedance/seedream-v4.5/edit"
	wavespeedNanobanana = "google/nano-banana-pro/edit"
	wavespeedWanAnimate = "wavespeed-ai/wan-2.2/animate-move"
)

// WavespeedClient talks to the Wavespeed prediction API. Every model is
// submit+poll: the submit call returns a prediction id, the result endpoint
// is polled with increasing backoff until a terminal status.
type WavespeedClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	backoff  func(attempt int) time.Duration
	maxPolls int
}

func NewWavespeedClient(apiKey string) *WavespeedClient {
	return &WavespeedClient{
		baseURL:  wavespeedBaseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		backoff:  pollBackoff,
		maxPolls: wavespeedMaxPolls,
	}
}

// WithBaseURL overrides the API endpoint and disables poll sleeps. Used by tests.
func (c *WavespeedClient) WithBaseURL(u string) *WavespeedClient {
	c.baseURL = u
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

// ImageModelPath maps the operator-facing model name from the Configuration
// table to a Wavespeed model path. Matching is fuzzy on purpose: the table
// holds values like "Seedream 4.0" or "Nanobanana Pro".
func ImageModelPath(model string) string {
	switch {
	case strings.Contains(model, "4.0"):
		return wavespeedSeedream40
	case strings.Contains(model, "Nanobanana"):
		return wavespeedNanobanana
	default:
		return wavespeedSeedream45
	}
}

func (c *WavespeedClient) ImageGenerator(model string) ImageGenerator {
	return &wavespeedImage{client: c, modelPath: ImageModelPath(model)}
}

func (c *WavespeedClient) Animator() VideoAnimator {
	return &wavespeedAnimator{client: c}
}

type wavespeedSubmitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

type wavespeedResult struct {
	Data struct {
		Status  string   `json:"status"`
		Outputs []string `json:"outputs"`
		Error   string   `json:"error"`
	} `json:"data"`
}

// predict submits a payload to a model and polls until the prediction
// reaches a terminal status, returning the output URLs.
func (c *WavespeedClient) predict(ctx context.Context, modelPath string, payload any) ([]string, error) {
	log := zap.S().Named("wavespeed")

	var submitted wavespeedSubmitResponse
	submitURL := fmt.Sprintf("%s/api/v3/%s", c.baseURL, modelPath)
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.client, http.MethodPost, submitURL, headers, payload, &submitted); err != nil {
		return nil, fmt.Errorf("wavespeed submit failed: %w", err)
	}
	if submitted.Data.ID == "" {
		return nil, fmt.Errorf("wavespeed submit returned no prediction id: %s", submitted.Message)
	}

	resultURL := fmt.Sprintf("%s/api/v3/predictions/%s/result", c.baseURL, submitted.Data.ID)
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
			return nil, err
		}

		var result wavespeedResult
		if err := postJSON(ctx, c.client, http.MethodGet, resultURL, headers, nil, &result); err != nil {
			return nil, fmt.Errorf("wavespeed poll failed: %w", err)
		}

		switch result.Data.Status {
		case "completed":
			if len(result.Data.Outputs) == 0 {
				return nil, fmt.Errorf("wavespeed prediction %s completed with no outputs", submitted.Data.ID)
			}
			return result.Data.Outputs, nil
		case "failed":
			return nil, fmt.Errorf("wavespeed prediction %s failed: %s", submitted.Data.ID, result.Data.Error)
		case "created", "queued", "processing":
			// still running
		default:
			// Unknown statuses keep polling; the attempt cap bounds us.
			log.Warnf("prediction %s: unrecognized status %q, continuing to poll", submitted.Data.ID, result.Data.Status)
		}
	}

	return nil, fmt.Errorf("wavespeed prediction %s timed out after %d polls", submitted.Data.ID, c.maxPolls)
}

type wavespeedImage struct {
	client    *WavespeedClient
	modelPath string
}

var _ ImageGenerator = (*wavespeedImage)(nil)

// Wavespeed fetches reference images itself, so plain HTTP URLs suffice.
func (g *wavespeedImage) NeedsDataURI() bool { return false }

func (g *wavespeedImage) Generate(ctx context.Context, req GenerateRequest) ([]Image, error) {
	width, height := AdjustSize(req.Width, req.Height, wavespeedMinPixels, wavespeedSizeGranularity)

	payload := map[string]any{
		"prompt":                req.Prompt,
		"images":                req.ReferenceImages,
		"size":                  fmt.Sprintf("%d*%d", width, height),
		"max_images":            req.Count,
		"enable_safety_checker": !req.EnableUnsafeContent,
	}

	outputs, err := g.client.predict(ctx, g.modelPath, payload)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(outputs))
	for _, u := range outputs {
		images = append(images, Image{URL: u})
	}
	return images, nil
}

type wavespeedAnimator struct {
	client *WavespeedClient
}

var _ VideoAnimator = (*wavespeedAnimator)(nil)

func (a *wavespeedAnimator) Animate(ctx context.Context, req AnimateRequest) (*Video, error) {
	payload := map[string]any{
		"video":      req.VideoURL,
		"image":      req.ImageURL,
		"resolution": req.Resolution,
	}

	outputs, err := a.client.predict(ctx, wavespeedWanAnimate, payload)
	if err != nil {
		return nil, err
	}
	return &Video{URL: outputs[0]}, nil
}
