package worker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sms-portal/internal/config"
	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/ingest"
	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/storage"
)

// ImportProgress is the live snapshot of a running import, published to
// Redis so the API can answer progress queries without touching the
// worker.
type ImportProgress struct {
	TaskID        string    `json:"task_id"`
	Status        string    `json:"status"`
	ProcessedRows int       `json:"processed_rows"`
	ImportedCount int       `json:"imported_count"`
	SkippedCount  int       `json:"skipped_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// importSummary is the payload stored in the import log's summary column.
type importSummary struct {
	Imported      int                 `json:"imported"`
	Skipped       int                 `json:"skipped"`
	SkippedSample []ingest.SkippedRow `json:"skipped_sample,omitempty"`
}

// ImportWorker drains the import task queue. Each instance claims tasks
// one at a time; multiple instances can run side by side because the
// claim is atomic.
type ImportWorker struct {
	tasks    imports.TaskRepository
	logs     imports.LogRepository
	files    storage.FileStore
	contacts ingest.ContactStore
	redis    *redis.Client
	cfg      config.ImportsConfig
	workerID string
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewImportWorker creates a worker with a unique id for claim attribution.
func NewImportWorker(
	tasks imports.TaskRepository,
	logs imports.LogRepository,
	files storage.FileStore,
	contacts ingest.ContactStore,
	redisClient *redis.Client,
	cfg config.ImportsConfig,
) *ImportWorker {
	return &ImportWorker{
		tasks:    tasks,
		logs:     logs,
		files:    files,
		contacts: contacts,
		redis:    redisClient,
		cfg:      cfg,
		workerID: fmt.Sprintf("import-%s", uuid.New().String()[:8]),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the poll loop until the context is cancelled or Stop is
// called. It drains the queue on every tick, then sleeps.
func (w *ImportWorker) Start(ctx context.Context) {
	log.Printf("[ImportWorker] %s starting, poll interval %s", w.workerID, w.cfg.PollInterval())
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.PollInterval())
	defer ticker.Stop()

	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			log.Printf("[ImportWorker] %s stopping: %v", w.workerID, ctx.Err())
			return
		case <-w.stopCh:
			log.Printf("[ImportWorker] %s stopping", w.workerID)
			return
		case <-ticker.C:
		}
	}
}

// Stop signals the loop to exit and waits for it to finish.
func (w *ImportWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// drain claims and processes queued tasks until the queue is empty.
func (w *ImportWorker) drain(ctx context.Context) {
	for {
		task, err := w.tasks.Claim(ctx, w.workerID)
		if err == imports.ErrNoTaskAvailable {
			return
		}
		if err != nil {
			log.Printf("[ImportWorker] claim failed: %v", err)
			return
		}
		log.Printf("[ImportWorker] %s claimed task %s (file %s)", w.workerID, task.ID, task.FileKey)
		w.process(ctx, task.ID, task.AudienceID, task.Filename, task.FileKey)

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}
	}
}

// process runs one import end to end. Fatal problems (missing or
// unreadable file, empty file) fail the task; per-row problems are
// counted as skips and never abort the run.
func (w *ImportWorker) process(ctx context.Context, taskID, audienceID, filename, fileKey string) {
	exists, err := w.files.Exists(ctx, fileKey)
	if err != nil {
		w.fail(ctx, taskID, fmt.Sprintf("checking uploaded file %s: %v", fileKey, err))
		return
	}
	if !exists {
		w.fail(ctx, taskID, fmt.Sprintf("uploaded file %s is missing", fileKey))
		return
	}

	// First pass: sniff the delimiter and header position.
	rc, err := w.files.Open(ctx, fileKey)
	if err != nil {
		w.fail(ctx, taskID, fmt.Sprintf("opening uploaded file %s: %v", fileKey, err))
		return
	}
	format, err := ingest.DetectFormat(rc)
	rc.Close()
	if err != nil {
		w.fail(ctx, taskID, fmt.Sprintf("inspecting uploaded file %s: %v", fileKey, err))
		return
	}

	// Second pass: stream the rows.
	rc, err = w.files.Open(ctx, fileKey)
	if err != nil {
		w.fail(ctx, taskID, fmt.Sprintf("reopening uploaded file %s: %v", fileKey, err))
		return
	}
	defer rc.Close()

	reader := csv.NewReader(ingest.StripBOM(rc))
	reader.Comma = format.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := readHeader(reader)
	if err != nil {
		w.fail(ctx, taskID, fmt.Sprintf("reading header of %s: %v", fileKey, err))
		return
	}

	mapper := ingest.NewMapper(header)
	if !mapper.EmailResolved() {
		log.Printf("[ImportWorker] task %s: no recognizable email column in %q, all rows will be skipped", taskID, filename)
	}

	rec := ingest.NewReconciler(w.contacts)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if perr, ok := err.(*csv.ParseError); ok {
				rec.Skip(perr.Line, "unparseable row")
				continue
			}
			w.fail(ctx, taskID, fmt.Sprintf("reading %s: %v", fileKey, err))
			return
		}
		// Physical line of the record's first field. The csv reader
		// swallows blank lines and quoted fields can span lines, so a
		// record counter would drift from the file.
		line, _ := reader.FieldPos(0)

		if !mapper.EmailResolved() {
			if rowBlank(row) {
				continue
			}
			rec.Skip(line, "no recognizable email column")
		} else {
			record, err := mapper.MapRow(row)
			switch err {
			case nil:
				rec.Reconcile(ctx, audienceID, line, record)
			case ingest.ErrBlankRow:
				// Blank lines are dropped without counting.
			case ingest.ErrRowArity:
				rec.Skip(line, "column count mismatch")
			case ingest.ErrNoEmail:
				rec.Skip(line, "missing email")
			default:
				rec.Skip(line, err.Error())
			}
		}

		processed := rec.Imported() + rec.Skipped()
		if w.cfg.ProgressEveryRows > 0 && processed%w.cfg.ProgressEveryRows == 0 {
			w.publishProgress(ctx, taskID, "processing", processed, rec.Imported(), rec.Skipped())
		}
	}

	w.finalize(ctx, taskID, audienceID, filename, rec)
}

// finalize appends the audit log entry and marks the task completed.
// A run with skips still completes; only fatal errors fail a task.
func (w *ImportWorker) finalize(ctx context.Context, taskID, audienceID, filename string, rec *ingest.Reconciler) {
	summary, err := json.Marshal(importSummary{
		Imported:      rec.Imported(),
		Skipped:       rec.Skipped(),
		SkippedSample: rec.SkippedSample(),
	})
	if err != nil {
		summary = []byte("{}")
	}

	entry := &domain.ImportLog{
		Filename:      filename,
		AudienceID:    audienceID,
		ImportedCount: rec.Imported(),
		Summary:       string(summary),
	}
	if err := w.logs.Append(ctx, entry); err != nil {
		log.Printf("[ImportWorker] task %s: appending import log failed: %v", taskID, err)
	}

	if err := w.tasks.Complete(ctx, taskID, rec.Imported(), rec.Skipped()); err != nil {
		log.Printf("[ImportWorker] task %s: marking completed failed: %v", taskID, err)
		return
	}
	w.publishProgress(ctx, taskID, "completed", rec.Imported()+rec.Skipped(), rec.Imported(), rec.Skipped())
	log.Printf("[ImportWorker] task %s completed: %d imported, %d skipped", taskID, rec.Imported(), rec.Skipped())
}

func (w *ImportWorker) fail(ctx context.Context, taskID, message string) {
	log.Printf("[ImportWorker] task %s failed: %s", taskID, message)
	if err := w.tasks.Fail(ctx, taskID, message); err != nil {
		log.Printf("[ImportWorker] task %s: marking failed failed: %v", taskID, err)
	}
	w.publishProgress(ctx, taskID, "failed", 0, 0, 0)
}

// publishProgress writes a best-effort snapshot to Redis. A write
// failure never affects the import itself.
func (w *ImportWorker) publishProgress(ctx context.Context, taskID, status string, processed, imported, skipped int) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(ImportProgress{
		TaskID:        taskID,
		Status:        status,
		ProcessedRows: processed,
		ImportedCount: imported,
		SkippedCount:  skipped,
		UpdatedAt:     time.Now(),
	})
	if err != nil {
		return
	}
	if err := w.redis.Set(ctx, progressKey(taskID), data, w.cfg.ProgressTTL()).Err(); err != nil {
		log.Printf("[ImportWorker] task %s: progress update failed: %v", taskID, err)
	}
}

// GetProgress reads the last published snapshot for a task. Returns a
// zero-value snapshot with status "unknown" when none exists.
func GetProgress(ctx context.Context, redisClient *redis.Client, taskID string) (*ImportProgress, error) {
	data, err := redisClient.Get(ctx, progressKey(taskID)).Bytes()
	if err == redis.Nil {
		return &ImportProgress{TaskID: taskID, Status: "unknown"}, nil
	}
	if err != nil {
		return nil, err
	}
	var p ImportProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func progressKey(taskID string) string {
	return fmt.Sprintf("import_progress:%s", taskID)
}

// readHeader returns the first non-blank record. The sniffer already
// verified the file has content, but the streaming pass re-checks so the
// two passes cannot disagree fatally.
func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil, ingest.ErrEmptyFile
		}
		if err != nil {
			return nil, err
		}
		if !rowBlank(row) {
			return row, nil
		}
	}
}

func rowBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
