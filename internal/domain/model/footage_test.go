package model

import (
	"errors"
	"strings"
	"testing"
)

func TestProcessingStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status ProcessingStatus
		want   bool
	}{
		{"uploading is valid", StatusUploading, true},
		{"processing is valid", StatusProcessing, true},
		{"completed is valid", StatusCompleted, true},
		{"failed is valid", StatusFailed, true},
		{"empty string is invalid", ProcessingStatus(""), false},
		{"unknown status is invalid", ProcessingStatus("READY"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("ProcessingStatus.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewFootage(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		source   string
		duration float64
		wantErr  error
	}{
		{"valid footage", "Harbour at dusk", "abc.mp4", 124, nil},
		{"empty title is allowed", "", "abc.mp4", 0, nil},
		{"empty source", "t", "", 10, ErrEmptySourceFilename},
		{"negative duration", "t", "abc.mp4", -1, ErrNegativeDuration},
		{"title too long", strings.Repeat("a", 256), "abc.mp4", 10, ErrTitleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFootage(tt.title, tt.source, tt.duration)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewFootage() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if f.Status != StatusProcessing {
				t.Errorf("Status = %s, want %s", f.Status, StatusProcessing)
			}
			if f.Filename != tt.source {
				t.Errorf("Filename = %q, want source %q", f.Filename, tt.source)
			}
			if f.Renditions == nil {
				t.Error("Renditions should be initialized")
			}
		})
	}
}

func TestFootage_SetRendition(t *testing.T) {
	f, err := NewFootage("t", "source.mp4", 30)
	if err != nil {
		t.Fatalf("NewFootage: %v", err)
	}

	if err := f.SetRendition(Quality240p, "r/1/a_240p.mp4"); err != nil {
		t.Fatalf("SetRendition 240p: %v", err)
	}
	if f.Filename != "r/1/a_240p.mp4" {
		t.Errorf("Filename = %q, want 240p artifact", f.Filename)
	}

	if err := f.SetRendition(Quality1080p, "r/1/a_1080p.mp4"); err != nil {
		t.Fatalf("SetRendition 1080p: %v", err)
	}
	if f.Filename != "r/1/a_1080p.mp4" {
		t.Errorf("Filename = %q, want 1080p artifact", f.Filename)
	}

	if err := f.SetRendition("4k", "x.mp4"); !errors.Is(err, ErrUnknownQuality) {
		t.Errorf("SetRendition unknown quality error = %v, want ErrUnknownQuality", err)
	}

	if name, ok := f.Rendition(Quality1080p); !ok || name != "r/1/a_1080p.mp4" {
		t.Errorf("Rendition(1080p) = %q, %v", name, ok)
	}
	if _, ok := f.Rendition(Quality720p); ok {
		t.Error("Rendition(720p) should be absent")
	}
}
