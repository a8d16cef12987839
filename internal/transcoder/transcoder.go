package transcoder

import (
	"context"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// MediaInfo contains the fields of a probe the pipeline cares about.
type MediaInfo struct {
	// DurationSeconds is the container duration, 0 when unknown.
	DurationSeconds float64
	// FormatName is the ffprobe container list, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
	FormatName string
	// VideoCodec is the codec of the first video stream.
	VideoCodec string
	// AudioCodec is the codec of the first audio stream, empty if silent.
	AudioCodec string
}

// ProgressFunc receives the rendition percent in [0,100].
type ProgressFunc func(percent int)

// Transcoder defines the encoder operations used by the upload path and the
// rendition workers. Every call blocks until the external process exits.
type Transcoder interface {
	// Probe reads container and codec information from a media file.
	Probe(ctx context.Context, inputPath string) (*MediaInfo, error)

	// Normalize makes sure inputPath is a playable H.264/AAC MP4.
	// It returns inputPath unchanged when it already is; otherwise it encodes
	// a new file, deletes the original and returns the new path.
	// On failure no partial output is left behind.
	Normalize(ctx context.Context, inputPath string) (string, error)

	// EncodeRendition produces one quality preset at outputPath.
	// onProgress may be nil. It is not called when durationSeconds is unknown.
	EncodeRendition(ctx context.Context, inputPath, outputPath string, preset model.QualityPreset, durationSeconds float64, onProgress ProgressFunc) error
}
