package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageModelPath(t *testing.T) {
	assert.Equal(t, wavespeedSeedream40, ImageModelPath("Seedream 4.0"))
	assert.Equal(t, wavespeedNanobanana, ImageModelPath("Nanobanana Pro"))
	assert.Equal(t, wavespeedSeedream45, ImageModelPath("Seedream 4.5"))
	assert.Equal(t, wavespeedSeedream45, ImageModelPath("anything else"))
}

func TestWavespeedGenerate(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/bytedance/seedream-v4.5/edit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "swap the person", payload["prompt"])
		assert.Equal(t, []any{"https://img/cover.jpg", "https://img/char.jpg"}, payload["images"])
		assert.Equal(t, true, payload["enable_safety_checker"])

		// The requested size must satisfy the megapixel minimum and the
		// granularity constraint.
		size, _ := payload["size"].(string)
		parts := strings.Split(size, "*")
		require.Len(t, parts, 2)
		w0, _ := strconv.Atoi(parts[0])
		h0, _ := strconv.Atoi(parts[1])
		assert.GreaterOrEqual(t, w0*h0, wavespeedMinPixels)
		assert.Zero(t, w0%wavespeedSizeGranularity)
		assert.Zero(t, h0%wavespeedSizeGranularity)

		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "pred1"}})
	})
	mux.HandleFunc("GET /api/v3/predictions/pred1/result", func(w http.ResponseWriter, r *http.Request) {
		var data map[string]any
		switch polls.Add(1) {
		case 1:
			data = map[string]any{"status": "processing"}
		case 2:
			// Unknown status must keep polling, not fail.
			data = map[string]any{"status": "warming_up"}
		default:
			data = map[string]any{
				"status":  "completed",
				"outputs": []string{"https://out/1.png", "https://out/2.png"},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := NewWavespeedClient("key").WithBaseURL(srv.URL).ImageGenerator("Seedream 4.5")
	images, err := gen.Generate(context.Background(), GenerateRequest{
		Prompt:          "swap the person",
		ReferenceImages: []string{"https://img/cover.jpg", "https://img/char.jpg"},
		Count:           2,
		Width:           720,
		Height:          1280,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://out/1.png", images[0].URL)
	assert.False(t, gen.NeedsDataURI())
}

func TestWavespeedPredictionFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/wavespeed-ai/wan-2.2/animate-move", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "pred2"}})
	})
	mux.HandleFunc("GET /api/v3/predictions/pred2/result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"status": "failed", "error": "content rejected"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	animator := NewWavespeedClient("key").WithBaseURL(srv.URL).Animator()
	_, err := animator.Animate(context.Background(), AnimateRequest{
		VideoURL:   "https://cdn/video.mp4",
		ImageURL:   "https://out/1.png",
		Resolution: "480p",
	})
	assert.ErrorContains(t, err, "content rejected")
}

func TestWavespeedPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/bytedance/seedream-v4.5/edit", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "pred3"}})
	})
	mux.HandleFunc("GET /api/v3/predictions/pred3/result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": "processing"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewWavespeedClient("key").WithBaseURL(srv.URL)
	client.maxPolls = 3

	_, err := client.ImageGenerator("").Generate(context.Background(), GenerateRequest{Width: 720, Height: 1280})
	assert.ErrorContains(t, err, "timed out")
}

func TestWavespeedSubmitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	animator := NewWavespeedClient("bad").WithBaseURL(srv.URL).Animator()
	_, err := animator.Animate(context.Background(), AnimateRequest{})
	assert.ErrorContains(t, err, "401")
	assert.ErrorContains(t, err, "invalid api key")
}

func TestWavespeedBackoffSequence(t *testing.T) {
	assert.Equal(t, "5s", pollBackoff(0).String())
	assert.Equal(t, "10s", pollBackoff(1).String())
	assert.Equal(t, "15s", pollBackoff(2).String())
	assert.Equal(t, "20s", pollBackoff(3).String())
	assert.Equal(t, "30s", pollBackoff(4).String())
	assert.Equal(t, "30s", pollBackoff(99).String())
}
