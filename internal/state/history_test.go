package state

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)

	run := &Run{ID: "run-1", Kind: RunKindTasks, Source: "tasks.yaml", RootTask: "Build app", LeavesTotal: 3}
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil || got == nil {
		t.Fatalf("GetRun = %v, %v", got, err)
	}
	if got.Status != RunRunning || got.LeavesTotal != 3 || got.FinishedAt != nil {
		t.Errorf("run = %+v", got)
	}

	if err := db.FinishRun("run-1", RunCompleted, 3); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, _ = db.GetRun("run-1")
	if got.Status != RunCompleted || got.LeavesDone != 3 || got.FinishedAt == nil {
		t.Errorf("finished run = %+v", got)
	}

	if missing, err := db.GetRun("nope"); missing != nil || err != nil {
		t.Errorf("GetRun missing = %v, %v", missing, err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := db.CreateRun(&Run{ID: id, Kind: RunKindChat}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("runs = %+v", runs)
	}

	all, _ := db.ListRuns(0)
	if len(all) != 3 {
		t.Errorf("got %d runs, want 3", len(all))
	}
}

func TestExecutionWithToolCalls(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateRun(&Run{ID: "r", Kind: RunKindTasks}); err != nil {
		t.Fatal(err)
	}

	e := &Execution{RunID: "r", TaskID: "1-1", Title: "Install tools"}
	if err := db.StartExecution(e); err != nil {
		t.Fatalf("StartExecution failed: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("execution ID not set")
	}

	e.Status = models.TaskStatusDone
	e.FinalType = "tool_call"
	e.Output = "Installing."
	e.ToolCalls = []ToolCallRecord{
		{Position: 0, Call: models.ToolCall{Name: "install_rust", Arguments: map[string]any{"version": "1.85.0"}, HumanText: "Rust"}},
		{Position: 1, Call: models.ToolCall{Name: "install_protoc", Arguments: map[string]any{}}},
	}
	if err := db.FinishExecution(e); err != nil {
		t.Fatalf("FinishExecution failed: %v", err)
	}
	if err := db.RecordToolResult(e.ID, 1, false, "curl failed"); err != nil {
		t.Fatalf("RecordToolResult failed: %v", err)
	}

	execs, err := db.ListExecutions("r")
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d executions", len(execs))
	}
	got := execs[0]
	if got.Status != models.TaskStatusDone || got.Output != "Installing." || got.FinishedAt == nil {
		t.Errorf("execution = %+v", got)
	}
	if len(got.ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v", got.ToolCalls)
	}
	if got.ToolCalls[0].Call.StringArg("version", "") != "1.85.0" || got.ToolCalls[0].Call.HumanText != "Rust" {
		t.Errorf("first call = %+v", got.ToolCalls[0])
	}
	if got.ToolCalls[0].Executed {
		t.Error("first call should not be executed")
	}
	if !got.ToolCalls[1].Executed || got.ToolCalls[1].Success || got.ToolCalls[1].Logs != "curl failed" {
		t.Errorf("second call = %+v", got.ToolCalls[1])
	}
}

func TestRecorder(t *testing.T) {
	db := setupTestDB(t)

	root := &models.TaskNode{ID: "1", Title: "Root", Children: []*models.TaskNode{
		{ID: "1-1", Title: "A"}, {ID: "1-2", Title: "B"},
	}}
	rec, err := NewRecorder(db, RunKindTasks, "tasks.yaml", root, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	a := root.Children[0]
	rec.OnStart(a)
	rec.OnEvent(llm.TextEvent("Hello ", false))
	rec.OnEvent(llm.TextEvent("world", false))
	a.Status = models.TaskStatusDone
	calls := []models.ToolCall{{Name: "install_rust", Arguments: map[string]any{}}}
	rec.OnFinish(a, llm.ToolCallEvent(calls))
	rec.RecordToolResult(calls[0], true, "ok")

	b := root.Children[1]
	rec.OnStart(b)
	b.Status = models.TaskStatusFailed
	rec.OnFinish(b, llm.ErrorEvent(&llm.ConfigurationError{Setting: "apiToken"}))
	rec.Finish(RunFailed)

	run, _ := db.GetRun(rec.RunID())
	if run.Status != RunFailed || run.LeavesTotal != 2 || run.LeavesDone != 2 || run.PID != os.Getpid() {
		t.Errorf("run = %+v", run)
	}

	execs, err := db.ListExecutions(rec.RunID())
	if err != nil || len(execs) != 2 {
		t.Fatalf("executions = %+v, %v", execs, err)
	}
	if execs[0].Output != "Hello world" || execs[0].FinalType != "tool_call" {
		t.Errorf("first execution = %+v", execs[0])
	}
	if len(execs[0].ToolCalls) != 1 || !execs[0].ToolCalls[0].Success {
		t.Errorf("first execution tool calls = %+v", execs[0].ToolCalls)
	}
	if execs[1].Status != models.TaskStatusFailed || execs[1].Error == "" {
		t.Errorf("second execution = %+v", execs[1])
	}
}

func TestRecoverInterrupted(t *testing.T) {
	db := setupTestDB(t)

	// PID 0 never refers to a live process.
	if err := db.CreateRun(&Run{ID: "dead", Kind: RunKindTasks}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateRun(&Run{ID: "self", Kind: RunKindTasks, PID: os.Getpid()}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateRun(&Run{ID: "done", Kind: RunKindTasks, Status: RunCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := db.StartExecution(&Execution{RunID: "dead", TaskID: "1"}); err != nil {
		t.Fatal(err)
	}

	stale, err := db.RecoverInterrupted()
	if err != nil {
		t.Fatalf("RecoverInterrupted failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "dead" || stale[0].Status != RunInterrupted {
		t.Fatalf("stale = %+v", stale)
	}

	if r, _ := db.GetRun("dead"); r.Status != RunInterrupted || r.FinishedAt == nil {
		t.Errorf("dead run = %+v", r)
	}
	if r, _ := db.GetRun("self"); r.Status != RunRunning {
		t.Errorf("own run changed: %+v", r)
	}
	execs, _ := db.ListExecutions("dead")
	if len(execs) != 1 || execs[0].Status != models.TaskStatusFailed || execs[0].Error != "interrupted" {
		t.Errorf("executions = %+v", execs)
	}
}
