package domain

import (
	"sort"
	"time"
)

// Overdue returns tasks with a due date strictly before the date of now that
// are not done, in board order.
func (b *Board) Overdue(now time.Time) []Task {
	var out []Task
	for _, t := range b.Tasks() {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	return out
}

// DueGroup is the set of tasks sharing a due date.
type DueGroup struct {
	Date  Date   `json:"date"`
	Tasks []Task `json:"tasks"`
}

// ByDueDate groups tasks that have a due date, earliest date first.
func (b *Board) ByDueDate() []DueGroup {
	groups := map[Date][]Task{}
	for _, t := range b.Tasks() {
		if t.DueDate.IsZero() {
			continue
		}
		groups[t.DueDate] = append(groups[t.DueDate], t)
	}
	out := make([]DueGroup, 0, len(groups))
	for d, tasks := range groups {
		out = append(out, DueGroup{Date: d, Tasks: tasks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Recent returns up to n tasks, newest creation time first.
func (b *Board) Recent(n int) []Task {
	tasks := b.Tasks()
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if n >= 0 && len(tasks) > n {
		tasks = tasks[:n]
	}
	return tasks
}

// CompletionPercent is the share of done tasks, rounded to a whole percent.
// An empty board is 0% complete.
func (b *Board) CompletionPercent() int {
	total := b.Len()
	if total == 0 {
		return 0
	}
	done := len(b.columns[StatusDone])
	return int(float64(done)*100/float64(total) + 0.5)
}

func (b *Board) CountByPriority() map[Priority]int {
	out := make(map[Priority]int, len(Priorities))
	for _, p := range Priorities {
		out[p] = 0
	}
	for _, st := range Statuses {
		for _, t := range b.columns[st] {
			out[t.Priority]++
		}
	}
	return out
}

// CountByAssignee counts tasks per assignee. Unassigned tasks are not counted.
func (b *Board) CountByAssignee() map[string]int {
	out := map[string]int{}
	for _, st := range Statuses {
		for _, t := range b.columns[st] {
			if t.AssignedTo == "" {
				continue
			}
			out[t.AssignedTo]++
		}
	}
	return out
}

// Summary bundles the derived board views.
type Summary struct {
	Total             int              `json:"total"`
	CountByStatus     map[Status]int   `json:"countByStatus"`
	CountByPriority   map[Priority]int `json:"countByPriority"`
	CountByAssignee   map[string]int   `json:"countByAssignee"`
	CompletionPercent int              `json:"completionPercent"`
	Overdue           []Task           `json:"overdue"`
	Calendar          []DueGroup       `json:"calendar"`
	Recent            []Task           `json:"recent"`
}

const recentTaskCount = 5

func (b *Board) Summarize(now time.Time) Summary {
	byStatus := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		byStatus[st] = len(b.columns[st])
	}
	overdue := b.Overdue(now)
	if overdue == nil {
		overdue = []Task{}
	}
	return Summary{
		Total:             b.Len(),
		CountByStatus:     byStatus,
		CountByPriority:   b.CountByPriority(),
		CountByAssignee:   b.CountByAssignee(),
		CompletionPercent: b.CompletionPercent(),
		Overdue:           overdue,
		Calendar:          b.ByDueDate(),
		Recent:            b.Recent(recentTaskCount),
	}
}
