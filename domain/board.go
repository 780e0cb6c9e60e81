package domain

import (
	"errors"
	"time"
)

var ErrDuplicateTaskID = errors.New("task id already exists")

// Columns maps each status to its ordered task list. It is the persisted
// snapshot format of a board.
type Columns map[Status][]Task

// Board holds tasks grouped by status column. A task lives in exactly one
// column and its Status always names that column. Board is not safe for
// concurrent use.
type Board struct {
	columns map[Status][]Task
	index   map[string]Status
}

// NewBoard builds a board from a snapshot. Tasks are repaired so their status
// matches the column holding them; unknown columns are dropped and duplicate
// ids keep their first occurrence in column order.
func NewBoard(cols Columns) *Board {
	b := &Board{
		columns: make(map[Status][]Task, len(Statuses)),
		index:   make(map[string]Status),
	}
	for _, st := range Statuses {
		tasks := make([]Task, 0, len(cols[st]))
		for _, t := range cols[st] {
			if t.ID == "" {
				continue
			}
			if _, dup := b.index[t.ID]; dup {
				continue
			}
			t = t.clone()
			t.Status = st
			tasks = append(tasks, t)
			b.index[t.ID] = st
		}
		b.columns[st] = tasks
	}
	return b
}

// Columns returns a deep copy of the board state with every status present.
func (b *Board) Columns() Columns {
	out := make(Columns, len(Statuses))
	for _, st := range Statuses {
		src := b.columns[st]
		dst := make([]Task, len(src))
		for i, t := range src {
			dst[i] = t.clone()
		}
		out[st] = dst
	}
	return out
}

// Column returns a copy of the tasks in a single column.
func (b *Board) Column(st Status) []Task {
	src := b.columns[st]
	dst := make([]Task, len(src))
	for i, t := range src {
		dst[i] = t.clone()
	}
	return dst
}

// Tasks flattens the board in column order.
func (b *Board) Tasks() []Task {
	out := make([]Task, 0, len(b.index))
	for _, st := range Statuses {
		for _, t := range b.columns[st] {
			out = append(out, t.clone())
		}
	}
	return out
}

func (b *Board) Len() int { return len(b.index) }

// Get looks a task up by id.
func (b *Board) Get(id string) (Task, bool) {
	st, ok := b.index[id]
	if !ok {
		return Task{}, false
	}
	i := b.position(st, id)
	if i < 0 {
		return Task{}, false
	}
	return b.columns[st][i].clone(), true
}

// Create prepends a new task to the column named by f.Status.
func (b *Board) Create(f TaskFields, id string, now time.Time) (Task, error) {
	if err := f.Validate(); err != nil {
		return Task{}, err
	}
	if _, exists := b.index[id]; exists || id == "" {
		return Task{}, ErrDuplicateTaskID
	}
	t := Task{
		ID:          id,
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		AssignedTo:  f.AssignedTo,
		DueDate:     f.DueDate,
		Tags:        f.Tags,
		Status:      f.Status,
		CreatedAt:   now.UTC(),
	}
	b.insert(t.Status, 0, t)
	return t.clone(), nil
}

// Update replaces the editable fields of a task. The task keeps its position
// when the status is unchanged; otherwise it moves to the front of the new
// column. An empty status or priority keeps the current one. Id and creation
// time never change.
func (b *Board) Update(id string, f TaskFields) (Task, error) {
	st, ok := b.index[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	i := b.position(st, id)
	cur := b.columns[st][i]
	if f.Status == "" {
		f.Status = st
	}
	if f.Priority == "" {
		f.Priority = cur.Priority
	}
	if err := f.Validate(); err != nil {
		return Task{}, err
	}
	cur.Title = f.Title
	cur.Description = f.Description
	cur.Priority = f.Priority
	cur.AssignedTo = f.AssignedTo
	cur.DueDate = f.DueDate
	cur.Tags = f.Tags

	if f.Status == st {
		b.columns[st][i] = cur
		return cur.clone(), nil
	}
	b.remove(st, i)
	cur.Status = f.Status
	b.insert(f.Status, 0, cur)
	return cur.clone(), nil
}

// Delete removes a task after confirm approves it. A nil confirm approves.
// A declined confirmation returns ErrConfirmationRequired and leaves the
// board untouched.
func (b *Board) Delete(id string, confirm func(Task) bool) (Task, error) {
	st, ok := b.index[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	i := b.position(st, id)
	t := b.columns[st][i]
	if confirm != nil && !confirm(t.clone()) {
		return Task{}, ErrConfirmationRequired
	}
	b.remove(st, i)
	return t, nil
}

// Move relocates the task at src[srcIdx] to dst[dstIdx]. Moving a task onto
// its own position is a no-op.
func (b *Board) Move(taskID string, src Status, srcIdx int, dst Status, dstIdx int) error {
	if !src.Valid() || !dst.Valid() {
		return ErrInvalidStatus
	}
	if src == dst && srcIdx == dstIdx {
		return nil
	}
	from := b.columns[src]
	if srcIdx < 0 || srcIdx >= len(from) {
		return ErrIndexOutOfRange
	}
	if taskID != "" && from[srcIdx].ID != taskID {
		return ErrTaskMismatch
	}
	limit := len(b.columns[dst])
	if src == dst {
		limit--
	}
	if dstIdx < 0 || dstIdx > limit {
		return ErrIndexOutOfRange
	}

	t := from[srcIdx]
	b.remove(src, srcIdx)
	t.Status = dst
	b.insert(dst, dstIdx, t)
	return nil
}

func (b *Board) position(st Status, id string) int {
	for i, t := range b.columns[st] {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) insert(st Status, at int, t Task) {
	col := b.columns[st]
	col = append(col, Task{})
	copy(col[at+1:], col[at:])
	col[at] = t
	b.columns[st] = col
	b.index[t.ID] = st
}

func (b *Board) remove(st Status, at int) {
	col := b.columns[st]
	id := col[at].ID
	b.columns[st] = append(col[:at:at], col[at+1:]...)
	delete(b.index, id)
}
