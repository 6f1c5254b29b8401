package imports

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/storage"
)

// Service implements import submission, status polling, and run history.
// Safe for concurrent use.
type Service struct {
	tasks TaskRepository
	logs  LogRepository
	files storage.FileStore
	now   func() time.Time
}

// NewService creates an imports service backed by the given repositories
// and file store.
func NewService(tasks TaskRepository, logs LogRepository, files storage.FileStore) *Service {
	return &Service{tasks: tasks, logs: logs, files: files, now: time.Now}
}

// Submit persists the uploaded file and enqueues a task for it. Returns
// the task id immediately; the caller polls Status.
func (s *Service) Submit(ctx context.Context, filename, audienceID string, file io.Reader) (string, error) {
	if strings.TrimSpace(audienceID) == "" {
		return "", ErrMissingAudience
	}
	if file == nil || strings.TrimSpace(filename) == "" {
		return "", ErrMissingFile
	}

	taskID := uuid.New().String()
	fileKey := fmt.Sprintf("imports/%s%s", taskID, sanitizeExt(filename))

	if err := s.files.Save(ctx, fileKey, file); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	task := &domain.ImportTask{
		ID:         taskID,
		AudienceID: audienceID,
		Filename:   filepath.Base(filename),
		FileKey:    fileKey,
		Status:     domain.ImportQueued,
		QueuedAt:   s.now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue import: %w", err)
	}

	log.Printf("[Imports] queued task %s: file=%s audience=%s", taskID, task.Filename, audienceID)
	return taskID, nil
}

// Status returns the current state of a task.
func (s *Service) Status(ctx context.Context, taskID string) (*domain.ImportTask, error) {
	return s.tasks.Get(ctx, taskID)
}

// Logs returns completed-run history, newest first. Page is 1-based.
func (s *Service) Logs(ctx context.Context, page, perPage int) ([]domain.ImportLog, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	return s.logs.List(ctx, perPage, (page-1)*perPage)
}

// sanitizeExt keeps the upload's extension (defaulting to .csv) so stored
// keys stay recognizable.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".tsv", ".txt":
		return ext
	default:
		return ".csv"
	}
}
