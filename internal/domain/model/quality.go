package model

import "fmt"

// QualityPreset is one rendition target produced from a source video.
type QualityPreset struct {
	// Label identifies the preset (e.g., "720p") and names the catalog column.
	Label string
	// Height is the target height in pixels. Width follows the source aspect ratio.
	Height int
	// VideoBitrateKbps is the target and max video bitrate.
	VideoBitrateKbps int
	// AudioBitrateKbps is the AAC audio bitrate.
	AudioBitrateKbps int
}

// VideoBitrate returns the ffmpeg bitrate argument, e.g. "2800k".
func (p QualityPreset) VideoBitrate() string {
	return fmt.Sprintf("%dk", p.VideoBitrateKbps)
}

// BufferSize returns twice the video bitrate, as an ffmpeg -bufsize argument.
func (p QualityPreset) BufferSize() string {
	return fmt.Sprintf("%dk", p.VideoBitrateKbps*2)
}

// AudioBitrate returns the ffmpeg audio bitrate argument, e.g. "128k".
func (p QualityPreset) AudioBitrate() string {
	return fmt.Sprintf("%dk", p.AudioBitrateKbps)
}

const (
	Quality240p  = "240p"
	Quality360p  = "360p"
	Quality480p  = "480p"
	Quality720p  = "720p"
	Quality1080p = "1080p"
)

var processingOrder = []QualityPreset{
	{Label: Quality240p, Height: 240, VideoBitrateKbps: 400, AudioBitrateKbps: 64},
	{Label: Quality360p, Height: 360, VideoBitrateKbps: 800, AudioBitrateKbps: 96},
	{Label: Quality480p, Height: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 128},
	{Label: Quality720p, Height: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128},
	{Label: Quality1080p, Height: 1080, VideoBitrateKbps: 5000, AudioBitrateKbps: 192},
}

// preferenceOrder is the precedence used to pick the main filename.
// It is intentionally not sorted by resolution.
var preferenceOrder = []string{
	Quality720p,
	Quality480p,
	Quality1080p,
	Quality360p,
	Quality240p,
}

// ProcessingOrder returns the presets in encoding order, lowest resolution first.
// The returned slice is a copy.
func ProcessingOrder() []QualityPreset {
	out := make([]QualityPreset, len(processingOrder))
	copy(out, processingOrder)
	return out
}

// PreferenceOrder returns the quality labels in main-filename precedence.
func PreferenceOrder() []string {
	out := make([]string, len(preferenceOrder))
	copy(out, preferenceOrder)
	return out
}

// PresetByLabel looks up a preset by its label.
func PresetByLabel(label string) (QualityPreset, bool) {
	for _, p := range processingOrder {
		if p.Label == label {
			return p, true
		}
	}
	return QualityPreset{}, false
}

// IsKnownQuality reports whether label names one of the configured presets.
func IsKnownQuality(label string) bool {
	_, ok := PresetByLabel(label)
	return ok
}

// SelectMainFilename walks the preference order and returns the first quality
// with a produced artifact. If none succeeded it returns fallback.
func SelectMainFilename(renditions map[string]string, fallback string) string {
	for _, label := range preferenceOrder {
		if name := renditions[label]; name != "" {
			return name
		}
	}
	return fallback
}
