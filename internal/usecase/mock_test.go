package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/transcoder"
)

// mockFootageRepository provides a configurable mock for FootageRepository.
type mockFootageRepository struct {
	mu sync.Mutex

	createFn          func(ctx context.Context, footage *model.Footage) error
	getByIDFn         func(ctx context.Context, id int64) (*model.Footage, error)
	updateRenditionFn func(ctx context.Context, id int64, quality, filename, mainFilename string) error
	mergeFilenamesFn  func(ctx context.Context, id int64, renditions map[string]string, mainFilename string) error
	updateStatusFn    func(ctx context.Context, id int64, status model.ProcessingStatus) error
	resetFn           func(ctx context.Context, id int64, mainFilename string) error

	getByIDCount atomic.Int32
	renditions   []renditionUpdate
	statuses     []model.ProcessingStatus
	merges       int
	resets       []string
}

type renditionUpdate struct {
	quality  string
	filename string
	main     string
}

func (m *mockFootageRepository) Create(ctx context.Context, footage *model.Footage) error {
	if m.createFn != nil {
		return m.createFn(ctx, footage)
	}
	return nil
}

func (m *mockFootageRepository) GetByID(ctx context.Context, id int64) (*model.Footage, error) {
	m.getByIDCount.Add(1)
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrFootageNotFound
}

func (m *mockFootageRepository) UpdateRendition(ctx context.Context, id int64, quality, filename, mainFilename string) error {
	m.mu.Lock()
	m.renditions = append(m.renditions, renditionUpdate{quality: quality, filename: filename, main: mainFilename})
	m.mu.Unlock()
	if m.updateRenditionFn != nil {
		return m.updateRenditionFn(ctx, id, quality, filename, mainFilename)
	}
	return nil
}

func (m *mockFootageRepository) MergeFilenames(ctx context.Context, id int64, renditions map[string]string, mainFilename string) error {
	m.mu.Lock()
	m.merges++
	m.mu.Unlock()
	if m.mergeFilenamesFn != nil {
		return m.mergeFilenamesFn(ctx, id, renditions, mainFilename)
	}
	return nil
}

func (m *mockFootageRepository) ResetRenditions(ctx context.Context, id int64, mainFilename string) error {
	m.mu.Lock()
	m.resets = append(m.resets, mainFilename)
	m.mu.Unlock()
	if m.resetFn != nil {
		return m.resetFn(ctx, id, mainFilename)
	}
	return nil
}

func (m *mockFootageRepository) UpdateStatus(ctx context.Context, id int64, status model.ProcessingStatus) error {
	m.mu.Lock()
	m.statuses = append(m.statuses, status)
	m.mu.Unlock()
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockFootageRepository) lastStatus() model.ProcessingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

// mockProgressStore is an in-memory ProgressStore that also records every write.
type mockProgressStore struct {
	mu        sync.Mutex
	entries   map[string]model.ProgressEntry
	writes    []model.ProgressEntry
	cleared   int
	upsertErr error
	readAllFn func(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error)
}

func newMockProgressStore() *mockProgressStore {
	return &mockProgressStore{entries: make(map[string]model.ProgressEntry)}
}

func (m *mockProgressStore) Upsert(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := model.ProgressEntry{FootageID: footageID, Quality: quality, Percent: percent, Status: status, UpdatedAt: time.Now()}
	m.entries[quality] = e
	m.writes = append(m.writes, e)
	return nil
}

func (m *mockProgressStore) ReadAll(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error) {
	if m.readAllFn != nil {
		return m.readAllFn(ctx, footageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.ProgressEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *mockProgressStore) ClearAll(ctx context.Context, footageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.ProgressEntry)
	m.cleared++
	return nil
}

// writesFor returns the recorded writes of one quality in order.
func (m *mockProgressStore) writesFor(quality string) []model.ProgressEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ProgressEntry
	for _, w := range m.writes {
		if w.Quality == quality {
			out = append(out, w)
		}
	}
	return out
}

// mockStorage provides a configurable mock for StorageBackend.
type mockStorage struct {
	mu sync.Mutex

	putFn    func(ctx context.Context, localPath, key, contentType string) (string, error)
	openFn   func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn func(ctx context.Context, key string) error
	remote   bool

	puts         []string
	contentTypes []string
	deleted      []string
}

func (m *mockStorage) Put(ctx context.Context, localPath, key, contentType string) (string, error) {
	m.mu.Lock()
	m.puts = append(m.puts, key)
	m.contentTypes = append(m.contentTypes, contentType)
	m.mu.Unlock()
	if m.putFn != nil {
		return m.putFn(ctx, localPath, key, contentType)
	}
	return m.URLFor(key), nil
}

func (m *mockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.openFn != nil {
		return m.openFn(ctx, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockStorage) URLFor(key string) string {
	return "http://cdn.example.com/" + key
}

func (m *mockStorage) Remote() bool {
	return m.remote
}

// mockLocalStorage additionally exposes local paths under root.
type mockLocalStorage struct {
	mockStorage
	root string
}

func (m *mockLocalStorage) LocalPath(key string) (string, error) {
	return filepath.Join(m.root, filepath.FromSlash(key)), nil
}

// mockTranscoder provides a configurable mock for Transcoder.
type mockTranscoder struct {
	probeFn     func(ctx context.Context, inputPath string) (*transcoder.MediaInfo, error)
	normalizeFn func(ctx context.Context, inputPath string) (string, error)
	encodeFn    func(ctx context.Context, inputPath, outputPath string, preset model.QualityPreset, durationSeconds float64, onProgress transcoder.ProgressFunc) error

	encodeCount atomic.Int32
}

func (m *mockTranscoder) Probe(ctx context.Context, inputPath string) (*transcoder.MediaInfo, error) {
	if m.probeFn != nil {
		return m.probeFn(ctx, inputPath)
	}
	return &transcoder.MediaInfo{}, nil
}

func (m *mockTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	if m.normalizeFn != nil {
		return m.normalizeFn(ctx, inputPath)
	}
	return inputPath, nil
}

func (m *mockTranscoder) EncodeRendition(ctx context.Context, inputPath, outputPath string, preset model.QualityPreset, durationSeconds float64, onProgress transcoder.ProgressFunc) error {
	m.encodeCount.Add(1)
	if m.encodeFn != nil {
		return m.encodeFn(ctx, inputPath, outputPath, preset, durationSeconds, onProgress)
	}
	return os.WriteFile(outputPath, []byte(preset.Label), 0644)
}

// mockDispatcher provides a configurable mock for Dispatcher.
type mockDispatcher struct {
	dispatchFn func(ctx context.Context, job model.RemoteJob) error
	jobs       []model.RemoteJob
}

func (m *mockDispatcher) Dispatch(ctx context.Context, job model.RemoteJob) error {
	m.jobs = append(m.jobs, job)
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, job)
	}
	return nil
}

// mockCallbackSender records every payload it is asked to send.
type mockCallbackSender struct {
	sendErr error
	sent    []model.WebhookPayload
}

func (m *mockCallbackSender) Send(ctx context.Context, payload model.WebhookPayload) error {
	m.sent = append(m.sent, payload)
	return m.sendErr
}

// mockRenditionWorker provides a configurable mock for RenditionWorker.
type mockRenditionWorker struct {
	runFn    func(ctx context.Context, job RenditionJob) error
	runCount atomic.Int32
}

func (m *mockRenditionWorker) Run(ctx context.Context, job RenditionJob) error {
	m.runCount.Add(1)
	if m.runFn != nil {
		return m.runFn(ctx, job)
	}
	return nil
}

// mockStrategy provides a configurable mock for RenditionStrategy.
type mockStrategy struct {
	startFn func(ctx context.Context, job RenditionJob) error
	jobs    []RenditionJob
}

func (m *mockStrategy) Start(ctx context.Context, job RenditionJob) error {
	m.jobs = append(m.jobs, job)
	if m.startFn != nil {
		return m.startFn(ctx, job)
	}
	return nil
}

// mustWriteFile is a test helper that writes a file and fails the test on error.
func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}
}
