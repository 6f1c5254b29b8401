// Package imports implements the import task lifecycle: submission of an
// uploaded audience export, tracking of the background task processing it,
// and the append-only log of completed runs.
//
// Submission is fire-and-forget: the file is persisted, a queued task row
// is written, and the caller polls status. A task moves queued ->
// processing -> completed|failed and never leaves a terminal state. Claims
// are an atomic compare-and-swap on status so two workers can never
// double-process one task.
//
// The service layer contains pure business logic and depends on the
// repository interfaces defined in repository.go. It never imports
// net/http or database/sql directly.
package imports
