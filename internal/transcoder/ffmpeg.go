package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// FFmpegConfig holds configuration for the FFmpeg transcoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// FFprobePath is the path to the ffprobe binary.
	FFprobePath string

	// VideoCodec is the video codec to use.
	// Default: libx264
	VideoCodec string

	// VideoPreset controls the encoding speed/quality tradeoff.
	// Default: fast
	VideoPreset string

	// AudioCodec is the audio codec to use.
	// Default: aac
	AudioCodec string

	// OutputExtension is the canonical container extension.
	// Default: .mp4
	OutputExtension string

	// StderrTailLines is how many stderr lines are kept for diagnostics.
	// Default: 20
	StderrTailLines int
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		VideoCodec:      "libx264",
		VideoPreset:     "fast",
		AudioCodec:      "aac",
		OutputExtension: ".mp4",
		StderrTailLines: 20,
	}
}

// playableContainers are ffprobe format names browsers play natively.
var playableContainers = map[string]bool{
	"mp4": true,
	"mov": true,
}

var playableExtensions = map[string]bool{
	".mp4": true,
	".m4v": true,
}

// FFmpegTranscoder implements Transcoder using the FFmpeg CLI.
type FFmpegTranscoder struct {
	config FFmpegConfig
	logger *slog.Logger
}

// Compile-time verification that FFmpegTranscoder implements Transcoder.
var _ Transcoder = (*FFmpegTranscoder)(nil)

// NewFFmpegTranscoder creates a new FFmpeg-based transcoder.
func NewFFmpegTranscoder(cfg FFmpegConfig, logger *slog.Logger) *FFmpegTranscoder {
	defaults := DefaultFFmpegConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaults.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = defaults.FFprobePath
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = defaults.VideoCodec
	}
	if cfg.VideoPreset == "" {
		cfg.VideoPreset = defaults.VideoPreset
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = defaults.AudioCodec
	}
	if cfg.OutputExtension == "" {
		cfg.OutputExtension = defaults.OutputExtension
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = defaults.StderrTailLines
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegTranscoder{
		config: cfg,
		logger: logger,
	}
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// Probe runs ffprobe and extracts duration and codecs.
func (t *FFmpegTranscoder) Probe(ctx context.Context, inputPath string) (*MediaInfo, error) {
	if err := t.validateInput(inputPath); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.config.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe: %w: %s", ErrNonZeroExit, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("ffprobe: %w: %v", ErrToolUnavailable, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &MediaInfo{FormatName: out.Format.FormatName}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.DurationSeconds = d
		}
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}

	return info, nil
}

// IsPlayable reports whether a file with this info and extension can be
// served without re-encoding.
func (info *MediaInfo) IsPlayable(ext string) bool {
	if !playableExtensions[strings.ToLower(ext)] {
		return false
	}
	container := false
	for _, name := range strings.Split(info.FormatName, ",") {
		if playableContainers[strings.TrimSpace(name)] {
			container = true
			break
		}
	}
	if !container || info.VideoCodec != "h264" {
		return false
	}
	return info.AudioCodec == "" || info.AudioCodec == "aac"
}

// Normalize converts inputPath into a web-playable MP4 when needed.
func (t *FFmpegTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	if err := t.validateInput(inputPath); err != nil {
		return "", err
	}

	info, err := t.Probe(ctx, inputPath)
	if err != nil {
		// ffmpeg gets the final word on unreadable probes.
		t.logger.Warn("probe failed, re-encoding source",
			slog.String("path", inputPath),
			slog.String("error", err.Error()),
		)
	} else if info.IsPlayable(filepath.Ext(inputPath)) {
		return inputPath, nil
	}

	outputPath := t.normalizedPath(inputPath)
	args := t.buildNormalizeArgs(inputPath, outputPath)

	if err := t.run(ctx, args, nil); err != nil {
		t.removePartial(outputPath)
		return "", fmt.Errorf("normalize %s: %w", filepath.Base(inputPath), err)
	}

	if !fileExists(outputPath) {
		return "", fmt.Errorf("normalize %s: %w", filepath.Base(inputPath), ErrMissingOutput)
	}

	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("failed to remove original after normalization",
			slog.String("path", inputPath),
			slog.String("error", err.Error()),
		)
	}

	return outputPath, nil
}

// EncodeRendition encodes one quality preset and streams progress.
func (t *FFmpegTranscoder) EncodeRendition(
	ctx context.Context,
	inputPath, outputPath string,
	preset model.QualityPreset,
	durationSeconds float64,
	onProgress ProgressFunc,
) error {
	if err := t.validateInput(inputPath); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var onElapsed func(float64)
	if onProgress != nil {
		onElapsed = func(elapsed float64) {
			if percent, ok := model.ComputePercent(elapsed, durationSeconds); ok {
				onProgress(percent)
			}
		}
	}

	args := t.buildRenditionArgs(inputPath, outputPath, preset)
	if err := t.run(ctx, args, onElapsed); err != nil {
		t.removePartial(outputPath)
		return fmt.Errorf("encode %s: %w", preset.Label, err)
	}

	if !fileExists(outputPath) {
		return fmt.Errorf("encode %s: %w", preset.Label, ErrMissingOutput)
	}

	return nil
}

// run executes ffmpeg and blocks until it exits. Status lines on stderr are
// scanned by a separate goroutine; onElapsed is called for each one that
// carries an elapsed-time field.
func (t *FFmpegTranscoder) run(ctx context.Context, args []string, onElapsed func(float64)) error {
	cmd := exec.CommandContext(ctx, t.config.FFmpegPath, args...)
	cmd.Stdout = nil

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	tail := newTailBuffer(t.config.StderrTailLines)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanStatusLines)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			if onElapsed == nil {
				continue
			}
			if elapsed, ok := ParseElapsed(line); ok {
				onElapsed(elapsed)
			}
		}
		// Keep the pipe drained so ffmpeg never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, stderr)
	}()

	// StderrPipe must be fully read before Wait closes it.
	<-done
	waitErr := cmd.Wait()
	if waitErr == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("transcoding cancelled: %w", ctx.Err())
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &ExitError{
		ExitCode: exitCode,
		Tail:     tail.snapshot(),
		Err:      waitErr,
	}
}

// validateInput checks if the input file exists and is readable.
func (t *FFmpegTranscoder) validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}

// normalizedPath returns the canonical output path next to the input.
// An input that already carries the canonical extension gets a suffix so
// the encoder never reads and writes the same file.
func (t *FFmpegTranscoder) normalizedPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if strings.EqualFold(ext, t.config.OutputExtension) {
		base += "_normalized"
	}
	return base + t.config.OutputExtension
}

// buildNormalizeArgs constructs the fixed re-encode argument set.
func (t *FFmpegTranscoder) buildNormalizeArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:v", t.config.VideoCodec,
		"-preset", t.config.VideoPreset,
		"-c:a", t.config.AudioCodec,
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

// buildRenditionArgs constructs FFmpeg arguments for a quality preset.
func (t *FFmpegTranscoder) buildRenditionArgs(inputPath, outputPath string, preset model.QualityPreset) []string {
	// Scale filter: -2 keeps the aspect ratio with an even width
	scaleFilter := fmt.Sprintf("scale=-2:%d", preset.Height)

	return []string{
		"-i", inputPath,
		"-vf", scaleFilter,
		"-c:v", t.config.VideoCodec,
		"-b:v", preset.VideoBitrate(),
		"-maxrate", preset.VideoBitrate(),
		"-bufsize", preset.BufferSize(),
		"-preset", t.config.VideoPreset,
		"-c:a", t.config.AudioCodec,
		"-b:a", preset.AudioBitrate(),
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

func (t *FFmpegTranscoder) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("failed to remove partial output",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
