package worker

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sms-portal/internal/config"
	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/ingest"
	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/storage"
)

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.ImportTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[string]*domain.ImportTask{}}
}

func (r *memTaskRepo) Create(_ context.Context, t *domain.ImportTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *memTaskRepo) Get(_ context.Context, id string) (*domain.ImportTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, imports.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) Claim(_ context.Context, workerID string) (*domain.ImportTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, t := range r.tasks {
		if t.Status == domain.ImportQueued {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, imports.ErrNoTaskAvailable
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.tasks[ids[i]].QueuedAt.Before(r.tasks[ids[j]].QueuedAt)
	})
	t := r.tasks[ids[0]]
	now := time.Now()
	t.Status = domain.ImportProcessing
	t.WorkerID = workerID
	t.StartedAt = &now
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) Complete(_ context.Context, id string, imported, skipped int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[id]
	if t == nil || t.Status != domain.ImportProcessing {
		return nil
	}
	now := time.Now()
	t.Status = domain.ImportCompleted
	t.ImportedCount = imported
	t.SkippedCount = skipped
	t.CompletedAt = &now
	return nil
}

func (r *memTaskRepo) Fail(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[id]
	if t == nil || t.Status.Terminal() {
		return nil
	}
	now := time.Now()
	t.Status = domain.ImportFailed
	t.ErrorMessage = message
	t.CompletedAt = &now
	return nil
}

type memLogRepo struct {
	mu      sync.Mutex
	entries []domain.ImportLog
}

func (r *memLogRepo) Append(_ context.Context, e *domain.ImportLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memLogRepo) List(_ context.Context, limit, offset int) ([]domain.ImportLog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ImportLog(nil), r.entries...), len(r.entries), nil
}

type memContacts struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact
}

func newMemContacts() *memContacts {
	return &memContacts{contacts: map[string]*domain.Contact{}}
}

func (s *memContacts) Upsert(_ context.Context, c *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contacts[c.AudienceID+"|"+c.DedupEmail()] = &cp
	return nil
}

func (s *memContacts) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

type workerEnv struct {
	worker   *ImportWorker
	tasks    *memTaskRepo
	logs     *memLogRepo
	contacts *memContacts
	files    storage.FileStore
	redis    *redis.Client
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	files, err := storage.NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	tasks := newMemTaskRepo()
	logs := &memLogRepo{}
	contacts := newMemContacts()

	cfg := config.ImportsConfig{
		PollIntervalSeconds: 1,
		ProgressEveryRows:   1,
		ProgressTTLHours:    1,
	}
	return &workerEnv{
		worker:   NewImportWorker(tasks, logs, files, contacts, client, cfg),
		tasks:    tasks,
		logs:     logs,
		contacts: contacts,
		files:    files,
		redis:    client,
	}
}

func (e *workerEnv) queueFile(t *testing.T, taskID, audienceID, filename, content string) {
	t.Helper()
	ctx := context.Background()
	key := "imports/" + taskID + ".csv"
	require.NoError(t, e.files.Save(ctx, key, strings.NewReader(content)))
	require.NoError(t, e.tasks.Create(ctx, &domain.ImportTask{
		ID:         taskID,
		AudienceID: audienceID,
		Filename:   filename,
		FileKey:    key,
		Status:     domain.ImportQueued,
		QueuedAt:   time.Now(),
	}))
}

func TestImportWorkerProcessesMixedFile(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	env.queueFile(t, "task-1", "aud-1", "leads.csv",
		"Email,First Name,Last Name\n"+
			"jane@example.com,Jane,Doe\n"+
			"not-an-email,Bob,Smith\n")

	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, task.Status)
	assert.Equal(t, 1, task.ImportedCount)
	assert.Equal(t, 1, task.SkippedCount)
	assert.Equal(t, 1, env.contacts.size())

	require.Len(t, env.logs.entries, 1)
	entry := env.logs.entries[0]
	assert.Equal(t, "leads.csv", entry.Filename)
	assert.Equal(t, 1, entry.ImportedCount)

	var summary importSummary
	require.NoError(t, json.Unmarshal([]byte(entry.Summary), &summary))
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.SkippedSample, 1)
	assert.Equal(t, 3, summary.SkippedSample[0].Line)

	progress, err := GetProgress(ctx, env.redis, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", progress.Status)
	assert.Equal(t, 1, progress.ImportedCount)
	assert.Equal(t, 1, progress.SkippedCount)
}

func TestImportWorkerSkipSampleUsesPhysicalLines(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	// A quoted field spanning two lines plus a blank line push the bad
	// row to physical line 5; a record counter would report 3.
	env.queueFile(t, "task-lines", "aud-1", "lines.csv",
		"email,first_name\n"+
			"ok@example.com,\"Jane\nDoe\"\n"+
			"\n"+
			"bad-email,Bob\n")

	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-lines")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, task.Status)
	assert.Equal(t, 1, task.ImportedCount)
	assert.Equal(t, 1, task.SkippedCount)

	require.Len(t, env.logs.entries, 1)
	var summary importSummary
	require.NoError(t, json.Unmarshal([]byte(env.logs.entries[0].Summary), &summary))
	require.Len(t, summary.SkippedSample, 1)
	assert.Equal(t, 5, summary.SkippedSample[0].Line)
}

func TestImportWorkerFailsEmptyFile(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	env.queueFile(t, "task-empty", "aud-1", "empty.csv", "")
	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-empty")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "empty")
	assert.Empty(t, env.logs.entries, "failed runs never write a log entry")
}

func TestImportWorkerFailsMissingFile(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tasks.Create(ctx, &domain.ImportTask{
		ID:         "task-missing",
		AudienceID: "aud-1",
		Filename:   "ghost.csv",
		FileKey:    "imports/ghost.csv",
		Status:     domain.ImportQueued,
		QueuedAt:   time.Now(),
	}))
	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-missing")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "missing")
}

func TestImportWorkerReimportIsIdempotent(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	content := "email,fname\nJANE@example.com,Jane\n"
	env.queueFile(t, "task-a", "aud-1", "list.csv", content)
	env.worker.drain(ctx)

	env.queueFile(t, "task-b", "aud-1", "list.csv",
		"email,fname\njane@EXAMPLE.com,Janet\n")
	env.worker.drain(ctx)

	assert.Equal(t, 1, env.contacts.size(), "same address twice yields one contact")

	taskB, err := env.tasks.Get(ctx, "task-b")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, taskB.Status)
	assert.Equal(t, 1, taskB.ImportedCount)

	c := env.contacts.contacts["aud-1|jane@example.com"]
	require.NotNil(t, c)
	assert.Equal(t, "Janet", c.FirstName, "last write wins on re-import")
}

func TestImportWorkerDetectsSemicolonDelimiter(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	env.queueFile(t, "task-semi", "aud-2", "export.csv",
		"email;first_name;state\nmax@example.com;Max;TX\n")
	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-semi")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, task.Status)
	assert.Equal(t, 1, task.ImportedCount)

	c := env.contacts.contacts["aud-2|max@example.com"]
	require.NotNil(t, c)
	assert.Equal(t, "TX", c.State)
}

func TestImportWorkerNoEmailColumnSkipsAllRows(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	env.queueFile(t, "task-noemail", "aud-1", "odd.csv",
		"id,name\n1,Jane\n2,Bob\n")
	env.worker.drain(ctx)

	task, err := env.tasks.Get(ctx, "task-noemail")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, task.Status)
	assert.Equal(t, 0, task.ImportedCount)
	assert.Equal(t, 2, task.SkippedCount)
	assert.Equal(t, 0, env.contacts.size())
}

func TestImportWorkerStartStop(t *testing.T) {
	env := newWorkerEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.queueFile(t, "task-loop", "aud-1", "loop.csv",
		"email\nloop@example.com\n")

	go env.worker.Start(ctx)

	deadline := time.After(3 * time.Second)
	for {
		task, err := env.tasks.Get(ctx, "task-loop")
		require.NoError(t, err)
		if task.Status == domain.ImportCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("task never completed, status %s", task.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
	env.worker.Stop()
}

var _ ingest.ContactStore = (*memContacts)(nil)
var _ imports.TaskRepository = (*memTaskRepo)(nil)
var _ imports.LogRepository = (*memLogRepo)(nil)
