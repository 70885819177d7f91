package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustSizeUpscalesToMinPixels(t *testing.T) {
	cases := []struct {
		name   string
		width  int
		height int
	}{
		{"portrait tiktok", 720, 1280},
		{"landscape", 640, 360},
		{"square", 500, 500},
		{"tiny", 90, 160},
	}

	const minPixels = 1 << 20
	const granularity = 8

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := AdjustSize(tc.width, tc.height, minPixels, granularity)

			assert.GreaterOrEqual(t, w*h, minPixels, "pixel count must reach the provider minimum")
			assert.Zero(t, w%granularity, "width must be a granularity multiple")
			assert.Zero(t, h%granularity, "height must be a granularity multiple")

			// Aspect ratio preserved within rounding tolerance.
			original := float64(tc.width) / float64(tc.height)
			adjusted := float64(w) / float64(h)
			assert.InDelta(t, original, adjusted, original*0.1)

			// No excessive upscaling: one granularity step above the
			// exact scale is the worst case.
			scale := math.Sqrt(float64(minPixels) / float64(tc.width*tc.height))
			assert.LessOrEqual(t, w, roundUp(int(math.Ceil(float64(tc.width)*scale)), granularity))
		})
	}
}

func TestAdjustSizeKeepsLargeInputs(t *testing.T) {
	w, h := AdjustSize(2048, 2048, 1<<20, 8)
	assert.Equal(t, 2048, w)
	assert.Equal(t, 2048, h)
}

func TestAdjustSizeDefaultsInvalidInput(t *testing.T) {
	w, h := AdjustSize(0, 0, 1<<20, 8)
	assert.GreaterOrEqual(t, w*h, 1<<20)
	assert.Zero(t, w%8)
	assert.Zero(t, h%8)
}

func TestURLToDataURIPassthrough(t *testing.T) {
	in := "data:image/png;base64,aGVsbG8="
	out, err := URLToDataURI(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestURLToDataURIFetches(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	out, err := URLToDataURI(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(payload)), out)
}

func TestURLToDataURIFallbackContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	out, err := URLToDataURI(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "data:image/jpeg;base64,")
}

func TestURLToDataURIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := URLToDataURI(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "403")
}
