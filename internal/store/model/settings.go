package model

const (
	ProviderWavespeed = "Wavespeed"
	ProviderFal       = "FAL.ai"
)

// Settings holds the operator-editable job configuration read from the
// Configuration table. Defaults mirror what the pipeline assumes when the
// table is empty.
type Settings struct {
	Provider        string
	ImageModel      string
	NumImages       int
	VideoResolution string
	EnableNSFW      bool
}

func DefaultSettings() *Settings {
	return &Settings{
		Provider:        ProviderWavespeed,
		ImageModel:      "Seedream 4.5",
		NumImages:       4,
		VideoResolution: "480p",
	}
}
