package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	falBaseURL = "https://fal.run"

	falImageModel   = "fal-ai/nano-banana/edit"
	falAnimateModel = "fal-ai/wan/v2.2-14b/animate"

	// FAL runs synchronously; a single request can take minutes.
	falRequestTimeout = 300 * time.Second
)

// FalClient talks to the FAL.ai synchronous inference endpoints. Unlike
// Wavespeed there is no submit/poll cycle: the HTTP response carries the
// outputs directly, bounded by the client timeout.
type FalClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFalClient(apiKey string) *FalClient {
	return &FalClient{
		baseURL: falBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: falRequestTimeout},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *FalClient) WithBaseURL(u string) *FalClient {
	c.baseURL = u
	return c
}

func (c *FalClient) ImageGenerator() ImageGenerator {
	return &falImage{client: c}
}

func (c *FalClient) Animator() VideoAnimator {
	return &falAnimator{client: c}
}

func (c *FalClient) run(ctx context.Context, model string, payload, out any) error {
	headers := map[string]string{"Authorization": "Key " + c.apiKey}
	url := fmt.Sprintf("%s/%s", c.baseURL, model)
	if err := postJSON(ctx, c.client, http.MethodPost, url, headers, payload, out); err != nil {
		return fmt.Errorf("fal %s failed: %w", model, err)
	}
	return nil
}

type falImage struct {
	client *FalClient
}

var _ ImageGenerator = (*falImage)(nil)

// FAL cannot fetch arbitrary reference URLs server side for this model;
// reference images are inlined as data URIs.
func (g *falImage) NeedsDataURI() bool { return true }

func (g *falImage) Generate(ctx context.Context, req GenerateRequest) ([]Image, error) {
	payload := map[string]any{
		"prompt":                req.Prompt,
		"image_urls":            req.ReferenceImages,
		"num_images":            req.Count,
		"enable_safety_checker": !req.EnableUnsafeContent,
	}

	var out struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := g.client.run(ctx, falImageModel, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("fal %s returned no images", falImageModel)
	}

	images := make([]Image, 0, len(out.Images))
	for _, img := range out.Images {
		images = append(images, Image{URL: img.URL})
	}
	return images, nil
}

type falAnimator struct {
	client *FalClient
}

var _ VideoAnimator = (*falAnimator)(nil)

func (a *falAnimator) Animate(ctx context.Context, req AnimateRequest) (*Video, error) {
	payload := map[string]any{
		"video_url":  req.VideoURL,
		"image_url":  req.ImageURL,
		"resolution": req.Resolution,
	}

	var out struct {
		Video struct {
			URL string `json:"url"`
		} `json:"video"`
	}
	if err := a.client.run(ctx, falAnimateModel, payload, &out); err != nil {
		return nil, err
	}
	if out.Video.URL == "" {
		return nil, fmt.Errorf("fal %s returned no video", falAnimateModel)
	}
	return &Video{URL: out.Video.URL}, nil
}
