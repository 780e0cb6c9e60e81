package domain

import "time"

// RosterMember is a person tasks can be assigned to.
type RosterMember struct {
	Initials string `json:"initials"`
	Name     string `json:"name"`
}

var DefaultRoster = []RosterMember{
	{Initials: "AK", Name: "Abhinav"},
	{Initials: "BS", Name: "Brent"},
}

// SampleColumns returns the board shown to a user with no saved board.
func SampleColumns() Columns {
	ts := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}
	return Columns{
		StatusTodo: {
			{
				ID:          "2",
				Title:       "Fix mobile responsive header",
				Description: "Header overlaps content on small screens",
				Priority:    PriorityHigh,
				AssignedTo:  "Sarah Johnson",
				DueDate:     NewDate(2025, time.November, 19),
				Tags:        []string{"bug", "ui"},
				Status:      StatusTodo,
				CreatedAt:   ts("2025-11-10T12:00:00Z"),
			},
			{
				ID:          "5",
				Title:       "Add dark mode toggle",
				Description: "User-requested feature",
				Priority:    PriorityLow,
				AssignedTo:  "Emma Brown",
				DueDate:     NewDate(2025, time.December, 1),
				Tags:        []string{"ui", "feature"},
				Status:      StatusTodo,
				CreatedAt:   ts("2025-11-16T15:00:00Z"),
			},
		},
		StatusInProgress: {
			{
				ID:          "1",
				Title:       "Implement user authentication",
				Description: "Set up JWT with refresh tokens",
				Priority:    PriorityUrgent,
				AssignedTo:  "John Smith",
				DueDate:     NewDate(2025, time.November, 18),
				Tags:        []string{"backend", "security"},
				Status:      StatusInProgress,
				CreatedAt:   ts("2025-11-01T10:00:00Z"),
			},
		},
		StatusReview: {
			{
				ID:          "3",
				Title:       "Update API documentation",
				Description: "Add new endpoints to Swagger",
				Priority:    PriorityMedium,
				AssignedTo:  "Mike Davis",
				Tags:        []string{"docs"},
				Status:      StatusReview,
				CreatedAt:   ts("2025-11-05T09:00:00Z"),
			},
		},
		StatusDone: {
			{
				ID:          "4",
				Title:       "Deploy v2.1 to production",
				Description: "Final deployment after QA sign-off",
				Priority:    PriorityHigh,
				AssignedTo:  "Alex Wilson",
				DueDate:     NewDate(2025, time.November, 15),
				Tags:        []string{"devops"},
				Status:      StatusDone,
				CreatedAt:   ts("2025-11-12T14:00:00Z"),
			},
		},
	}
}
