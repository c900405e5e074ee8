package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/craft/pkg/models"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunStopped     RunStatus = "stopped"
	RunInterrupted RunStatus = "interrupted"
)

// RunKind says which command produced a run.
type RunKind string

const (
	RunKindTasks RunKind = "tasks"
	RunKindChat  RunKind = "chat"
)

// Run is one invocation that executed leaves or a chat prompt.
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Source      string     `json:"source"`
	RootTask    string     `json:"root_task"`
	LeavesTotal int        `json:"leaves_total"`
	LeavesDone  int        `json:"leaves_done"`
	Status      RunStatus  `json:"status"`
	PID         int        `json:"pid"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// Execution is one leaf's stream, stored with its output and tool calls.
type Execution struct {
	ID         int64             `json:"id"`
	RunID      string            `json:"run_id"`
	TaskID     string            `json:"task_id"`
	Title      string            `json:"title"`
	Status     models.TaskStatus `json:"status"`
	FinalType  string            `json:"final_type"`
	Output     string            `json:"output"`
	Error      string            `json:"error"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at"`
	ToolCalls  []ToolCallRecord  `json:"tool_calls"`
}

// ToolCallRecord is a tool call produced by an execution and, once run,
// its outcome.
type ToolCallRecord struct {
	Position int             `json:"position"`
	Call     models.ToolCall `json:"call"`
	Executed bool            `json:"executed"`
	Success  bool            `json:"success"`
	Logs     string          `json:"logs"`
}

// CreateRun creates a new run.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, kind, source, root_task, leaves_total, leaves_done, status, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), r.Source, r.RootTask, r.LeavesTotal, r.LeavesDone, string(r.Status), r.PID, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, kind, source, root_task, leaves_total, leaves_done, status, pid, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// FinishRun records the final status of a run.
func (db *DB) FinishRun(id string, status RunStatus, leavesDone int) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, leaves_done = ?, finished_at = ? WHERE id = ?
	`, string(status), leavesDone, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, kind, source, root_task, leaves_total, leaves_done, status, pid, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var kind, status, startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&r.ID, &kind, &r.Source, &r.RootTask, &r.LeavesTotal, &r.LeavesDone, &status, &r.PID, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Kind = RunKind(kind)
	r.Status = RunStatus(status)
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// StartExecution inserts a running execution and sets e.ID.
func (db *DB) StartExecution(e *Execution) error {
	if e.Status == "" {
		e.Status = models.TaskStatusRunning
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	res, err := db.Exec(`
		INSERT INTO task_executions (run_id, task_id, title, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.RunID, e.TaskID, e.Title, string(e.Status), formatTime(e.StartedAt))
	if err != nil {
		return fmt.Errorf("start execution: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("start execution: %w", err)
	}
	return nil
}

// FinishExecution stores the execution's outcome and its tool calls.
func (db *DB) FinishExecution(e *Execution) error {
	now := time.Now()
	e.FinishedAt = &now

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE task_executions
			SET status = ?, final_type = ?, output = ?, error = ?, finished_at = ?
			WHERE id = ?
		`, string(e.Status), e.FinalType, e.Output, e.Error, formatTime(now), e.ID)
		if err != nil {
			return fmt.Errorf("finish execution: %w", err)
		}

		for i := range e.ToolCalls {
			tc := &e.ToolCalls[i]
			args, err := json.Marshal(tc.Call.Arguments)
			if err != nil {
				return fmt.Errorf("marshal tool arguments: %w", err)
			}
			_, err = tx.Exec(`
				INSERT INTO tool_calls (execution_id, position, name, arguments, text, executed, success, logs)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, e.ID, tc.Position, tc.Call.Name, string(args), tc.Call.HumanText, tc.Executed, tc.Success, tc.Logs)
			if err != nil {
				return fmt.Errorf("insert tool call: %w", err)
			}
		}
		return nil
	})
}

// RecordToolResult stores the outcome of running a stored tool call.
func (db *DB) RecordToolResult(executionID int64, position int, success bool, logs string) error {
	_, err := db.Exec(`
		UPDATE tool_calls SET executed = 1, success = ?, logs = ?
		WHERE execution_id = ? AND position = ?
	`, success, logs, executionID, position)
	if err != nil {
		return fmt.Errorf("record tool result: %w", err)
	}
	return nil
}

// ListExecutions returns a run's executions in start order with their tool calls.
func (db *DB) ListExecutions(runID string) ([]Execution, error) {
	rows, err := db.Query(`
		SELECT id, run_id, task_id, title, status, final_type, output, error, started_at, finished_at
		FROM task_executions WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	var execs []Execution
	for rows.Next() {
		var e Execution
		var status, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.TaskID, &e.Title, &status, &e.FinalType, &e.Output, &e.Error, &startedAt, &finishedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		e.Status = models.TaskStatus(status)
		e.StartedAt, _ = parseTime(startedAt)
		e.FinishedAt = parseNullableTime(finishedAt)
		execs = append(execs, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range execs {
		calls, err := db.listToolCalls(execs[i].ID)
		if err != nil {
			return nil, err
		}
		execs[i].ToolCalls = calls
	}
	return execs, nil
}

func (db *DB) listToolCalls(executionID int64) ([]ToolCallRecord, error) {
	rows, err := db.Query(`
		SELECT position, name, arguments, text, executed, success, logs
		FROM tool_calls WHERE execution_id = ? ORDER BY position
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}
	defer rows.Close()

	var calls []ToolCallRecord
	for rows.Next() {
		var tc ToolCallRecord
		var args string
		if err := rows.Scan(&tc.Position, &tc.Call.Name, &args, &tc.Call.HumanText, &tc.Executed, &tc.Success, &tc.Logs); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &tc.Call.Arguments); err != nil {
			return nil, fmt.Errorf("decode tool arguments: %w", err)
		}
		calls = append(calls, tc)
	}
	return calls, rows.Err()
}
