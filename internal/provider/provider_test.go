package provider

import (
	"testing"

	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsWavespeedByDefault(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Providers.ApifyAPIKey = "apify"
	cfg.Providers.WavespeedAPIKey = "ws"

	adapters, err := New(cfg, model.DefaultSettings())
	require.NoError(t, err)
	assert.IsType(t, &ApifyClient{}, adapters.Source)
	assert.IsType(t, &wavespeedImage{}, adapters.Images)
	assert.IsType(t, &wavespeedAnimator{}, adapters.Animator)
}

func TestNewUnknownProviderFallsBackToWavespeed(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Providers.WavespeedAPIKey = "ws"

	settings := model.DefaultSettings()
	settings.Provider = "Something Else"

	adapters, err := New(cfg, settings)
	require.NoError(t, err)
	assert.IsType(t, &wavespeedImage{}, adapters.Images)
}

func TestNewSelectsFal(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Providers.FalAPIKey = "fal"

	settings := model.DefaultSettings()
	settings.Provider = model.ProviderFal

	adapters, err := New(cfg, settings)
	require.NoError(t, err)
	assert.IsType(t, &falImage{}, adapters.Images)
	assert.IsType(t, &falAnimator{}, adapters.Animator)
}

func TestNewMissingProviderKey(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Providers.WavespeedAPIKey = ""

	_, err := New(cfg, model.DefaultSettings())
	assert.ErrorContains(t, err, "WAVESPEED_API_KEY")

	settings := model.DefaultSettings()
	settings.Provider = model.ProviderFal
	_, err = New(cfg, settings)
	assert.ErrorContains(t, err, "FAL_API_KEY")
}
