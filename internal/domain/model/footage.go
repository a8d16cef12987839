package model

import (
	"errors"
	"time"
)

// ProcessingStatus represents the rendition state of a footage item.
type ProcessingStatus string

const (
	StatusUploading  ProcessingStatus = "uploading"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s ProcessingStatus) String() string {
	return string(s)
}

// Footage is the catalog record for one uploaded video and its renditions.
type Footage struct {
	ID    int64
	Title string
	// SourceFilename is the normalized source file name, used as the
	// main filename when no rendition succeeds.
	SourceFilename string
	// Filename is the best available playable file.
	Filename string
	// Renditions maps quality label to the stored artifact key.
	Renditions      map[string]string
	Status          ProcessingStatus
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	ErrEmptySourceFilename = errors.New("source filename cannot be empty")
	ErrNegativeDuration    = errors.New("duration cannot be negative")
	ErrTitleTooLong        = errors.New("title exceeds maximum length of 255 characters")
	ErrUnknownQuality      = errors.New("unknown quality label")
)

const maxTitleLength = 255

// NewFootage creates a Footage in processing state whose main filename is the
// normalized source until a rendition succeeds.
func NewFootage(title, sourceFilename string, durationSeconds float64) (*Footage, error) {
	if sourceFilename == "" {
		return nil, ErrEmptySourceFilename
	}
	if durationSeconds < 0 {
		return nil, ErrNegativeDuration
	}
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	now := time.Now()
	return &Footage{
		Title:           title,
		SourceFilename:  sourceFilename,
		Filename:        sourceFilename,
		Renditions:      make(map[string]string),
		Status:          StatusProcessing,
		DurationSeconds: durationSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SetRendition records a produced artifact and recomputes the main filename.
func (f *Footage) SetRendition(quality, filename string) error {
	if !IsKnownQuality(quality) {
		return ErrUnknownQuality
	}
	if f.Renditions == nil {
		f.Renditions = make(map[string]string)
	}
	f.Renditions[quality] = filename
	f.Filename = SelectMainFilename(f.Renditions, f.SourceFilename)
	f.UpdatedAt = time.Now()
	return nil
}

// Rendition returns the stored artifact for a quality, if any.
func (f *Footage) Rendition(quality string) (string, bool) {
	name, ok := f.Renditions[quality]
	return name, ok && name != ""
}
