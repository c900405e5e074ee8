package state

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// RecoverInterrupted marks runs left in the running state by a process that
// no longer exists as interrupted, together with their unfinished
// executions. It returns the runs it changed.
func (db *DB) RecoverInterrupted() ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, kind, source, root_task, leaves_total, leaves_done, status, pid, started_at, finished_at
		FROM runs WHERE status = ?
	`, string(RunRunning))
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}

	var stale []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.PID == os.Getpid() || isProcessAlive(r.PID) {
			continue
		}
		stale = append(stale, *r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range stale {
		if err := db.markInterrupted(stale[i].ID); err != nil {
			return nil, err
		}
		stale[i].Status = RunInterrupted
	}
	return stale, nil
}

func (db *DB) markInterrupted(runID string) error {
	now := formatTime(time.Now())
	if _, err := db.Exec(`
		UPDATE task_executions SET status = 'failed', error = 'interrupted', finished_at = ?
		WHERE run_id = ? AND finished_at IS NULL
	`, now, runID); err != nil {
		return fmt.Errorf("mark executions interrupted: %w", err)
	}
	if _, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(RunInterrupted), now, runID); err != nil {
		return fmt.Errorf("mark run interrupted: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without delivering anything.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
