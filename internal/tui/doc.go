// Package tui provides the terminal view for craft task runs.
//
// The run view shows the task tree with each leaf's status, the streamed
// model output of the running leaf, and the tool calls each leaf produced.
// It copies the tree when created and is then driven entirely by messages,
// so the caller owns execution and the tree:
//
//	program, view := tui.NewRunProgram(root, tui.RunOptions{OnStop: cancel})
//	go func() {
//	    program.Send(tui.LeafStartMsg{ID: leaf.ID, Title: leaf.Title})
//	    program.Send(tui.EventMsg{Event: ev})
//	    program.Send(tui.LeafDoneMsg{ID: leaf.ID, Status: leaf.Status, Final: final})
//	    program.Send(tui.RunDoneMsg{})
//	}()
//	_, err := program.Run()
//
// With RunOptions.Interactive set, an input line is shown and each
// submitted line is handed to RunOptions.OnPrompt.
//
// Keys: q or ctrl+c quits, s requests a stop after the current leaf.
package tui
