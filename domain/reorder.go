package domain

import "time"

// DropTarget identifies where a drag gesture ended: either on another task
// card (TaskID set) or on a column surface (Column set). Exactly one of the
// two should be set.
type DropTarget struct {
	TaskID string
	Column Status
}

// ApplyDrop reconciles a finished drag gesture against the global task list
// and returns the new list. The second return value reports whether anything
// changed; when false the input slice is returned untouched.
//
// The list is never mutated in place: every change produces a fresh slice so
// callers can keep the previous snapshot for rollback.
//
// Drops fall into three cases:
//   - onto a column: reassign the task's status, keep global order;
//   - onto a task in the same column: reorder within that column only;
//   - onto a task in another column: reassign status and insert immediately
//     before the target among that column's tasks.
//
// A drop whose active task no longer exists (deleted mid-drag) is ignored.
func ApplyDrop(tasks []Task, activeID string, target DropTarget, now time.Time) ([]Task, bool) {
	active, ok := findTask(tasks, activeID)
	if !ok {
		return tasks, false
	}

	if target.Column != "" {
		return dropOnColumn(tasks, active, target.Column, now)
	}

	if target.TaskID == "" || target.TaskID == activeID {
		return tasks, false
	}
	over, ok := findTask(tasks, target.TaskID)
	if !ok {
		return tasks, false
	}
	if active.Status == over.Status {
		return reorderWithinColumn(tasks, active, over)
	}
	return moveBeforeTask(tasks, active, over, now)
}

func findTask(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

func indexOf(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// dropOnColumn reassigns the task's status without touching relative order.
// Dropping a task onto its own column is a no-op, so updatedAt is untouched.
func dropOnColumn(tasks []Task, active Task, column Status, now time.Time) ([]Task, bool) {
	if active.Status == column {
		return tasks, false
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	i := indexOf(out, active.ID)
	out[i].Status = column
	out[i].UpdatedAt = now
	return out, true
}

// reorderWithinColumn moves the active task to the over task's index inside
// their shared column, then splices the reordered column back into the global
// list at the position where the column's first task previously sat. Tasks in
// other columns keep their relative positions.
func reorderWithinColumn(tasks []Task, active, over Task) ([]Task, bool) {
	column := ColumnTasks(tasks, active.Status)
	oldIndex := indexOf(column, active.ID)
	newIndex := indexOf(column, over.ID)
	if oldIndex == newIndex {
		return tasks, false
	}
	column = arrayMove(column, oldIndex, newIndex)

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != active.Status {
			out = append(out, t)
		}
	}
	// The column re-enters the global list where its first task previously
	// sat. Everything before that point belongs to other columns, so the
	// global index doubles as the splice position.
	insertAt := len(out)
	for i, t := range tasks {
		if t.Status == active.Status {
			insertAt = i
			break
		}
	}
	out = append(out[:insertAt], append(column, out[insertAt:]...)...)
	return out, true
}

// moveBeforeTask removes the active task, reassigns it to the over task's
// column and re-walks the list once, inserting it where the running count of
// destination-column tasks reaches the over task's index, i.e. immediately
// before the over task in the merged stream. When the target is not found the
// moved task is appended at the end.
func moveBeforeTask(tasks []Task, active, over Task, now time.Time) ([]Task, bool) {
	filtered := make([]Task, 0, len(tasks)-1)
	for _, t := range tasks {
		if t.ID != active.ID {
			filtered = append(filtered, t)
		}
	}
	destIndex := indexOf(ColumnTasks(filtered, over.Status), over.ID)

	moved := active
	moved.Status = over.Status
	moved.UpdatedAt = now

	out := make([]Task, 0, len(tasks))
	inserted := false
	count := 0
	for _, t := range filtered {
		if t.Status == over.Status && count == destIndex && !inserted {
			out = append(out, moved)
			inserted = true
		}
		out = append(out, t)
		if t.Status == over.Status {
			count++
		}
	}
	if !inserted {
		out = append(out, moved)
	}
	return out, true
}

// arrayMove returns a copy of tasks with the element at from moved to to,
// shifting the elements in between by one slot.
func arrayMove(tasks []Task, from, to int) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	t := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Task{t}, out[to:]...)...)
	return out
}
