package state

import "io"

// RunStore handles run-level persistence.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	FinishRun(id string, status RunStatus, leavesDone int) error
	ListRuns(limit int) ([]Run, error)
}

// ExecutionStore handles leaf execution persistence.
type ExecutionStore interface {
	StartExecution(e *Execution) error
	FinishExecution(e *Execution) error
	ListExecutions(runID string) ([]Execution, error)
	RecordToolResult(executionID int64, position int, success bool, logs string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore is the full run history backend.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
	ExecutionStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore   = (*DB)(nil)
	_ RunStore       = (*DB)(nil)
	_ ExecutionStore = (*DB)(nil)
)
