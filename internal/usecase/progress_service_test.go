package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

func TestProgressService_GetProgress(t *testing.T) {
	store := newMockProgressStore()
	_ = store.Upsert(context.Background(), 1, model.Quality240p, 100, model.ProgressCompleted)
	_ = store.Upsert(context.Background(), 1, model.Quality360p, 37, model.ProgressProcessing)

	svc := NewProgressService(&mockFootageRepository{}, store, &mockStorage{})

	got, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}

	want := map[string]ProgressView{
		model.Quality240p: {Progress: 100, Status: "completed"},
		model.Quality360p: {Progress: 37, Status: "processing"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for label, v := range want {
		if got[label] != v {
			t.Errorf("%s = %+v, want %+v", label, got[label], v)
		}
	}
}

func TestProgressService_GetProgress_Empty(t *testing.T) {
	svc := NewProgressService(&mockFootageRepository{}, newMockProgressStore(), &mockStorage{})

	got, err := svc.GetProgress(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
}

func TestProgressService_GetProgress_StoreError(t *testing.T) {
	store := newMockProgressStore()
	store.readAllFn = func(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error) {
		return nil, errors.New("db down")
	}
	svc := NewProgressService(&mockFootageRepository{}, store, &mockStorage{})

	if _, err := svc.GetProgress(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestProgressService_GetProgress_Singleflight(t *testing.T) {
	var calls atomic.Int32
	store := newMockProgressStore()
	store.readAllFn = func(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error) {
		calls.Add(1)
		// Simulate a slow query so concurrent polls overlap.
		time.Sleep(50 * time.Millisecond)
		return map[string]model.ProgressEntry{
			model.Quality240p: {Quality: model.Quality240p, Percent: 10, Status: model.ProgressProcessing},
		}, nil
	}
	svc := NewProgressService(&mockFootageRepository{}, store, &mockStorage{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.GetProgress(context.Background(), 1)
			if err != nil {
				t.Errorf("GetProgress failed: %v", err)
				return
			}
			// Each caller owns its map.
			got["mutated"] = ProgressView{}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("store read %d times, want 1 (singleflight should coalesce)", n)
	}
}

func TestProgressService_GetFootage(t *testing.T) {
	repo := &mockFootageRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Footage, error) {
			return &model.Footage{
				ID:       id,
				Title:    "Harbour",
				Filename: "renditions/4/a_720p.mp4",
				Renditions: map[string]string{
					model.Quality720p: "renditions/4/a_720p.mp4",
					model.Quality240p: "renditions/4/a_240p.mp4",
				},
				Status: model.StatusCompleted,
			}, nil
		},
	}
	svc := NewProgressService(repo, newMockProgressStore(), &mockStorage{})

	got, err := svc.GetFootage(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetFootage() error = %v", err)
	}

	if got.URL != "http://cdn.example.com/renditions/4/a_720p.mp4" {
		t.Errorf("URL = %s", got.URL)
	}
	if r := got.Renditions[model.Quality240p]; r.URL != "http://cdn.example.com/renditions/4/a_240p.mp4" {
		t.Errorf("240p rendition = %+v", r)
	}
	if got.Status != "completed" {
		t.Errorf("Status = %s", got.Status)
	}
}

func TestProgressService_GetFootage_URL(t *testing.T) {
	tests := []struct {
		name           string
		footage        *model.Footage
		wantURL        string
		wantRenditions []string
	}{
		{
			name: "freshly uploaded",
			footage: &model.Footage{
				ID:             5,
				SourceFilename: "0f8e.mp4",
				Filename:       "0f8e.mp4",
				Renditions:     map[string]string{},
				Status:         model.StatusProcessing,
			},
			wantURL: "",
		},
		{
			name: "all renditions failed",
			footage: &model.Footage{
				ID:             5,
				SourceFilename: "0f8e.mp4",
				Filename:       "0f8e.mp4",
				Renditions:     map[string]string{model.Quality480p: ""},
				Status:         model.StatusFailed,
			},
			wantURL: "",
		},
		{
			name: "first rendition stored",
			footage: &model.Footage{
				ID:             5,
				SourceFilename: "0f8e.mp4",
				Filename:       "renditions/5/0f8e_240p.mp4",
				Renditions:     map[string]string{model.Quality240p: "renditions/5/0f8e_240p.mp4"},
				Status:         model.StatusProcessing,
			},
			wantURL:        "http://cdn.example.com/renditions/5/0f8e_240p.mp4",
			wantRenditions: []string{model.Quality240p},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockFootageRepository{
				getByIDFn: func(ctx context.Context, id int64) (*model.Footage, error) {
					return tt.footage, nil
				},
			}
			svc := NewProgressService(repo, newMockProgressStore(), &mockStorage{})

			got, err := svc.GetFootage(context.Background(), 5)
			if err != nil {
				t.Fatalf("GetFootage() error = %v", err)
			}

			if got.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tt.wantURL)
			}
			if got.Filename != tt.footage.Filename {
				t.Errorf("Filename = %q, want %q", got.Filename, tt.footage.Filename)
			}
			if len(got.Renditions) != len(tt.wantRenditions) {
				t.Fatalf("Renditions = %+v, want %v", got.Renditions, tt.wantRenditions)
			}
			for _, label := range tt.wantRenditions {
				if got.Renditions[label].URL == "" {
					t.Errorf("%s rendition has no URL", label)
				}
			}
		})
	}
}

func TestProgressService_GetFootage_NotFound(t *testing.T) {
	svc := NewProgressService(&mockFootageRepository{}, newMockProgressStore(), &mockStorage{})

	if _, err := svc.GetFootage(context.Background(), 404); !errors.Is(err, repository.ErrFootageNotFound) {
		t.Errorf("GetFootage() error = %v, want ErrFootageNotFound", err)
	}
}
