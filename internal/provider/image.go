package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// AdjustSize scales a requested output size up until its pixel count reaches
// minPixels, preserving the aspect ratio, then rounds each side up to a
// multiple of granularity. Non-positive inputs fall back to the portrait
// video default.
func AdjustSize(width, height, minPixels, granularity int) (int, int) {
	if width <= 0 || height <= 0 {
		width, height = defaultVideoWidth, defaultVideoHeight
	}
	if granularity <= 0 {
		granularity = 1
	}

	if width*height < minPixels {
		scale := math.Sqrt(float64(minPixels) / float64(width*height))
		width = int(math.Ceil(float64(width) * scale))
		height = int(math.Ceil(float64(height) * scale))
	}

	return roundUp(width, granularity), roundUp(height, granularity)
}

func roundUp(v, granularity int) int {
	if rem := v % granularity; rem != 0 {
		return v + granularity - rem
	}
	return v
}

var dataURIClient = &http.Client{Timeout: 60 * time.Second}

// URLToDataURI fetches an image and inlines it as a base64 data URI for
// providers that cannot fetch reference URLs themselves. URLs that are
// already data URIs pass through untouched.
func URLToDataURI(ctx context.Context, url string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := dataURIClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
