package types

import (
	"fmt"
	"time"
)

// RunOutcome summarizes how an indexing run ended.
type RunOutcome string

const (
	RunClean      RunOutcome = "clean"
	RunWithErrors RunOutcome = "completed_with_errors"
	RunAborted    RunOutcome = "aborted"
	RunPartial    RunOutcome = "partial" // Cancelled mid-run; records consistent, work incomplete
)

// FileOutcome describes what happened to a single file during a run.
type FileOutcome string

const (
	FileUnchanged FileOutcome = "unchanged"
	FileModified  FileOutcome = "modified"
	FileAdded     FileOutcome = "added"
	FileDeleted   FileOutcome = "deleted"
	FileFailed    FileOutcome = "failed"
)

// FileReport is the per-file line of a run report.
type FileReport struct {
	FilePath string
	Outcome  FileOutcome
	Error    string // Empty unless Outcome is FileFailed
}

// RunReport is the statistics contract an indexing run hands back to its
// caller. The CLI and MCP surfaces render it; it is not a wire protocol.
type RunReport struct {
	Outcome              RunOutcome
	AbortReason          string // Set when Outcome is RunAborted
	FilesScanned         int
	FilesSkippedUnchanged int
	ChunksCreated        int
	ChunksUpdated        int
	ChunksDeleted        int
	EmbeddingErrors      int
	Elapsed              time.Duration
	Files                []FileReport // Modified, added, deleted, and failed files only
	DryRun               bool
}

// ErrorCount returns the number of per-file failures recorded in the report.
func (r *RunReport) ErrorCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == FileFailed {
			n++
		}
	}
	return n
}

// Summary renders a one-line human-readable outcome.
func (r *RunReport) Summary() string {
	switch r.Outcome {
	case RunAborted:
		return fmt.Sprintf("aborted: %s", r.AbortReason)
	case RunWithErrors:
		return fmt.Sprintf("completed with %d errors", r.ErrorCount()+r.EmbeddingErrors)
	case RunPartial:
		return "partial (cancelled)"
	default:
		return "clean"
	}
}
