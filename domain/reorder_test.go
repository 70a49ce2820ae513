package domain

import (
	"testing"
	"time"
)

func board(entries ...string) []Task {
	// entry format: "id:status"
	tasks := make([]Task, 0, len(entries))
	for _, e := range entries {
		var id string
		var status Status
		for i := 0; i < len(e); i++ {
			if e[i] == ':' {
				id = e[:i]
				status = Status(e[i+1:])
				break
			}
		}
		tasks = append(tasks, Task{ID: id, Title: "task " + id, Status: status, Priority: PriorityMedium})
	}
	return tasks
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func assertOrder(t *testing.T, tasks []Task, want ...string) {
	t.Helper()
	got := ids(tasks)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestApplyDropSameColumnReorder(t *testing.T) {
	// Column todo holds [A,B,C,D]; dragging B onto D yields [A,C,D,B].
	tasks := board("A:todo", "B:todo", "C:todo", "D:todo")
	out, changed := ApplyDrop(tasks, "B", DropTarget{TaskID: "D"}, time.Now())
	if !changed {
		t.Fatal("expected a change")
	}
	assertOrder(t, out, "A", "C", "D", "B")
}

func TestApplyDropSameColumnLeavesOtherColumnsAlone(t *testing.T) {
	tasks := board("X:done", "A:todo", "Y:in-progress", "B:todo", "C:todo", "Z:done", "D:todo")
	out, changed := ApplyDrop(tasks, "B", DropTarget{TaskID: "D"}, time.Now())
	if !changed {
		t.Fatal("expected a change")
	}
	assertOrder(t, ColumnTasks(out, StatusTodo), "A", "C", "D", "B")
	assertOrder(t, ColumnTasks(out, StatusDone), "X", "Z")
	assertOrder(t, ColumnTasks(out, StatusInProgress), "Y")
}

func TestApplyDropSameColumnSplicesAtFirstColumnPosition(t *testing.T) {
	tasks := board("X:done", "A:todo", "B:todo", "Y:done")
	out, changed := ApplyDrop(tasks, "B", DropTarget{TaskID: "A"}, time.Now())
	if !changed {
		t.Fatal("expected a change")
	}
	// The reordered todo column re-enters where A previously sat.
	assertOrder(t, out, "X", "B", "A", "Y")
}

func TestApplyDropCrossColumnInsertsBeforeTarget(t *testing.T) {
	// X in todo dragged onto Y, the 2nd of 3 done tasks.
	tasks := board("X:todo", "P:done", "Y:done", "Q:done")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out, changed := ApplyDrop(tasks, "X", DropTarget{TaskID: "Y"}, now)
	if !changed {
		t.Fatal("expected a change")
	}
	assertOrder(t, ColumnTasks(out, StatusDone), "P", "X", "Y", "Q")
	if len(ColumnTasks(out, StatusTodo)) != 0 {
		t.Fatalf("expected todo column to be empty, got %v", ids(ColumnTasks(out, StatusTodo)))
	}
	moved, ok := findTask(out, "X")
	if !ok {
		t.Fatal("moved task missing")
	}
	if moved.Status != StatusDone {
		t.Fatalf("expected status done, got %s", moved.Status)
	}
	if !moved.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt %v, got %v", now, moved.UpdatedAt)
	}
}

func TestApplyDropCrossColumnInterleaved(t *testing.T) {
	tasks := board("A:in-progress", "X:todo", "P:done", "B:in-progress", "Y:done")
	out, changed := ApplyDrop(tasks, "X", DropTarget{TaskID: "Y"}, time.Now())
	if !changed {
		t.Fatal("expected a change")
	}
	assertOrder(t, out, "A", "P", "B", "X", "Y")
	assertOrder(t, ColumnTasks(out, StatusInProgress), "A", "B")
}

func TestApplyDropOnColumnReassignsStatusOnly(t *testing.T) {
	tasks := board("A:todo", "B:todo", "C:done")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out, changed := ApplyDrop(tasks, "A", DropTarget{Column: StatusDone}, now)
	if !changed {
		t.Fatal("expected a change")
	}
	// Global order is untouched; only the status changes.
	assertOrder(t, out, "A", "B", "C")
	if out[0].Status != StatusDone {
		t.Fatalf("expected done, got %s", out[0].Status)
	}
	if !out[0].UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt refresh, got %v", out[0].UpdatedAt)
	}
}

func TestApplyDropOnOwnColumnIsNoop(t *testing.T) {
	stamp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := board("A:todo", "B:todo")
	tasks[0].UpdatedAt = stamp
	out, changed := ApplyDrop(tasks, "A", DropTarget{Column: StatusTodo}, time.Now())
	if changed {
		t.Fatal("expected a no-op")
	}
	if !out[0].UpdatedAt.Equal(stamp) {
		t.Fatalf("updatedAt must not change on a same-column drop, got %v", out[0].UpdatedAt)
	}
}

func TestApplyDropOnSelfIsNoop(t *testing.T) {
	tasks := board("A:todo", "B:todo")
	if _, changed := ApplyDrop(tasks, "A", DropTarget{TaskID: "A"}, time.Now()); changed {
		t.Fatal("expected a no-op")
	}
}

func TestApplyDropMissingActiveIsIgnored(t *testing.T) {
	tasks := board("A:todo")
	out, changed := ApplyDrop(tasks, "ghost", DropTarget{TaskID: "A"}, time.Now())
	if changed {
		t.Fatal("expected drop to be silently ignored")
	}
	assertOrder(t, out, "A")
}

func TestApplyDropMissingTargetIsIgnored(t *testing.T) {
	tasks := board("A:todo")
	if _, changed := ApplyDrop(tasks, "A", DropTarget{TaskID: "ghost"}, time.Now()); changed {
		t.Fatal("expected drop to be silently ignored")
	}
}

func TestApplyDropDoesNotMutateInput(t *testing.T) {
	tasks := board("A:todo", "B:todo", "C:todo")
	before := ids(tasks)
	ApplyDrop(tasks, "A", DropTarget{TaskID: "C"}, time.Now())
	assertOrder(t, tasks, before...)
	if tasks[0].Status != StatusTodo {
		t.Fatal("input slice was mutated")
	}
}

func TestVisibleTasks(t *testing.T) {
	tasks := board("A:todo", "B:done", "C:todo")
	tasks[0].Priority = PriorityHigh

	all := VisibleTasks(tasks, KanbanFilters{Status: "all", Priority: "all"})
	if len(all) != 3 {
		t.Fatalf("expected 3 visible tasks, got %d", len(all))
	}
	todos := VisibleTasks(tasks, KanbanFilters{Status: "todo", Priority: "all"})
	assertOrder(t, todos, "A", "C")
	high := VisibleTasks(tasks, KanbanFilters{Status: "todo", Priority: "high"})
	assertOrder(t, high, "A")
}
