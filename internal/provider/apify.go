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
	apifyBaseURL      = "https://api.apify.com"
	tiktokActorID     = "clockworks~tiktok-video-scraper"
	instagramActorID  = "apify~instagram-scraper"
	apifyPollInterval = 3 * time.Second
	apifyMaxPolls     = 60

	defaultVideoWidth  = 720
	defaultVideoHeight = 1280
)

// ApifyClient resolves TikTok and Instagram post URLs through the Apify
// actor platform. Actor runs are asynchronous: submit, poll the run status,
// then read the default dataset.
type ApifyClient struct {
	baseURL      string
	token        string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

var _ VideoSource = (*ApifyClient)(nil)

func NewApifyClient(token string) *ApifyClient {
	return &ApifyClient{
		baseURL:      apifyBaseURL,
		token:        token,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: apifyPollInterval,
		maxPolls:     apifyMaxPolls,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *ApifyClient) WithBaseURL(u string) *ApifyClient {
	c.baseURL = u
	c.pollInterval = 0
	return c
}

func (c *ApifyClient) Resolve(ctx context.Context, link string) (*SourceVideo, error) {
	switch {
	case strings.Contains(link, "tiktok.com"):
		return c.resolveTikTok(ctx, link)
	case strings.Contains(link, "instagram.com"):
		return c.resolveInstagram(ctx, link)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, link)
	}
}

type apifyRunResponse struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// runActor submits an actor run and waits for it to finish, returning the
// dataset id holding the scraped items.
func (c *ApifyClient) runActor(ctx context.Context, actorID string, input any) (string, error) {
	log := zap.S().Named("apify")

	var run apifyRunResponse
	submitURL := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", c.baseURL, actorID, c.token)
	if err := postJSON(ctx, c.client, http.MethodPost, submitURL, nil, input, &run); err != nil {
		return "", fmt.Errorf("apify run failed: %w", err)
	}

	status := run.Data.Status
	if status == "" {
		status = "RUNNING"
	}
	datasetID := run.Data.DefaultDatasetID

	for attempt := 0; status == "RUNNING" || status == "READY"; attempt++ {
		if attempt >= c.maxPolls {
			return "", fmt.Errorf("apify run %s timed out after %d polls", run.Data.ID, c.maxPolls)
		}
		if err := sleepContext(ctx, c.pollInterval); err != nil {
			return "", err
		}

		var poll apifyRunResponse
		pollURL := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", c.baseURL, run.Data.ID, c.token)
		if err := postJSON(ctx, c.client, http.MethodGet, pollURL, nil, nil, &poll); err != nil {
			return "", fmt.Errorf("apify status check failed: %w", err)
		}
		status = poll.Data.Status
		log.Debugf("run %s status %s", run.Data.ID, status)
	}

	if status != "SUCCEEDED" {
		return "", fmt.Errorf("apify run %s failed: %s", run.Data.ID, status)
	}
	return datasetID, nil
}

type tiktokItem struct {
	MediaUrls []string `json:"mediaUrls"`
	VideoMeta struct {
		DownloadAddr         string `json:"downloadAddr"`
		OriginalDownloadAddr string `json:"originalDownloadAddr"`
		PlayAddr             string `json:"playAddr"`
		CoverURL             string `json:"coverUrl"`
		OriginalCoverURL     string `json:"originalCoverUrl"`
		OriginCover          string `json:"originCover"`
		DynamicCover         string `json:"dynamicCover"`
		Width                int    `json:"width"`
		Height               int    `json:"height"`
	} `json:"videoMeta"`
	Error string `json:"error"`
}

func (c *ApifyClient) resolveTikTok(ctx context.Context, link string) (*SourceVideo, error) {
	zap.S().Named("apify").Infof("fetching tiktok post: %s", link)

	input := map[string]any{
		"postURLs":             []string{link},
		"shouldDownloadVideos": true,
		"shouldDownloadCovers": true,
	}
	datasetID, err := c.runActor(ctx, tiktokActorID, input)
	if err != nil {
		return nil, err
	}

	var items []tiktokItem
	if err := c.datasetItems(ctx, datasetID, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("tiktok scrape returned no items for %s", link)
	}
	item := items[0]
	if item.Error != "" {
		return nil, fmt.Errorf("tiktok post unavailable: %s", item.Error)
	}

	// The scraper's response schema has drifted repeatedly; try every
	// known key before giving up.
	videoURL := ""
	if len(item.MediaUrls) > 0 {
		videoURL = item.MediaUrls[0]
	}
	videoURL = firstNonEmpty(videoURL, item.VideoMeta.DownloadAddr, item.VideoMeta.OriginalDownloadAddr, item.VideoMeta.PlayAddr)
	if videoURL == "" {
		return nil, fmt.Errorf("no video URL found in tiktok response for %s", link)
	}

	source := &SourceVideo{
		VideoURL: videoURL,
		CoverURL: firstNonEmpty(item.VideoMeta.CoverURL, item.VideoMeta.OriginalCoverURL, item.VideoMeta.OriginCover, item.VideoMeta.DynamicCover),
		Width:    item.VideoMeta.Width,
		Height:   item.VideoMeta.Height,
	}
	if source.Width == 0 {
		source.Width = defaultVideoWidth
	}
	if source.Height == 0 {
		source.Height = defaultVideoHeight
	}
	return source, nil
}

type instagramItem struct {
	VideoURL         string `json:"videoUrl"`
	DisplayURL       string `json:"displayUrl"`
	DimensionsWidth  int    `json:"dimensionsWidth"`
	DimensionsHeight int    `json:"dimensionsHeight"`
	Error            string `json:"error"`
}

func (c *ApifyClient) resolveInstagram(ctx context.Context, link string) (*SourceVideo, error) {
	zap.S().Named("apify").Infof("fetching instagram post: %s", link)

	input := map[string]any{
		"directUrls":  []string{link},
		"resultsType": "posts",
	}
	datasetID, err := c.runActor(ctx, instagramActorID, input)
	if err != nil {
		return nil, err
	}

	var items []instagramItem
	if err := c.datasetItems(ctx, datasetID, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("instagram scrape returned no items for %s", link)
	}
	item := items[0]
	if item.Error != "" {
		return nil, fmt.Errorf("instagram post unavailable: %s", item.Error)
	}
	if item.VideoURL == "" {
		return nil, fmt.Errorf("no video URL found in instagram response for %s", link)
	}

	source := &SourceVideo{
		VideoURL: item.VideoURL,
		CoverURL: item.DisplayURL,
		Width:    item.DimensionsWidth,
		Height:   item.DimensionsHeight,
	}
	if source.Width == 0 {
		source.Width = defaultVideoWidth
	}
	if source.Height == 0 {
		source.Height = defaultVideoHeight
	}
	return source, nil
}

func (c *ApifyClient) datasetItems(ctx context.Context, datasetID string, out any) error {
	itemsURL := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s", c.baseURL, datasetID, c.token)
	if err := postJSON(ctx, c.client, http.MethodGet, itemsURL, nil, nil, out); err != nil {
		return fmt.Errorf("apify dataset fetch failed: %w", err)
	}
	return nil
}
