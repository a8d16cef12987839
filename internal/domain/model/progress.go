package model

import (
	"math"
	"time"
)

// ProgressStatus is the state of one (footage, quality) encoding job.
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

func (s ProgressStatus) IsValid() bool {
	switch s {
	case ProgressPending, ProgressProcessing, ProgressCompleted, ProgressFailed:
		return true
	default:
		return false
	}
}

func (s ProgressStatus) String() string {
	return string(s)
}

// ProgressEntry is keyed by (FootageID, Quality); at most one exists per key.
type ProgressEntry struct {
	FootageID int64
	Quality   string
	Percent   int
	Status    ProgressStatus
	UpdatedAt time.Time
}

// ClampPercent bounds p to [0,100].
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// ComputePercent returns round(elapsed/total*100) clamped to [0,100].
// ok is false when the total duration is unknown.
func ComputePercent(elapsedSeconds, totalSeconds float64) (percent int, ok bool) {
	if totalSeconds <= 0 || math.IsNaN(totalSeconds) || math.IsNaN(elapsedSeconds) {
		return 0, false
	}
	return ClampPercent(int(math.Round(elapsedSeconds / totalSeconds * 100))), true
}
