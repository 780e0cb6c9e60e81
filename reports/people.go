package reports

import (
	"sort"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

var (
	UsersSources = []Source{Profiles, Wallets}
	HRSources    = []Source{Members}
)

// UserRow is a profile with its wallet, when one exists.
type UserRow struct {
	domain.Profile
	Active bool           `json:"active"`
	Wallet *domain.Wallet `json:"wallet,omitempty"`
}

// Users lists players matching query, newest first.
type Users struct {
	Total  int       `json:"total"`
	Active int       `json:"active"`
	Users  []UserRow `json:"users"`
}

func BuildUsers(d Dataset, query string) Users {
	wallets := make(map[string]domain.Wallet, len(d.Wallets))
	for _, w := range d.Wallets {
		wallets[w.UserID] = w
	}
	out := Users{Total: len(d.Profiles), Users: make([]UserRow, 0, len(d.Profiles))}
	for _, p := range d.Profiles {
		if p.Active() {
			out.Active++
		}
		if !matchesAny(query, p.Username, p.Email, p.ID) {
			continue
		}
		row := UserRow{Profile: p, Active: p.Active()}
		if w, ok := wallets[p.ID]; ok {
			row.Wallet = &w
		}
		out.Users = append(out.Users, row)
	}
	sort.SliceStable(out.Users, func(i, j int) bool { return out.Users[i].CreatedAt.After(out.Users[j].CreatedAt) })
	return out
}

// HRFilter narrows the member list.
type HRFilter struct {
	Query      string
	Department string
}

// HR is the staff overview.
type HR struct {
	Total       int                 `json:"total"`
	Active      int                 `json:"active"`
	NewHires    int                 `json:"newHires"`
	Departments int                 `json:"departments"`
	Members     []domain.TeamMember `json:"members"`
}

// BuildHR counts staff and lists members matching f, newest hires first.
func BuildHR(d Dataset, f HRFilter, now time.Time) HR {
	out := HR{Total: len(d.Members), Members: make([]domain.TeamMember, 0, len(d.Members))}
	departments := make(map[string]struct{})
	for _, m := range d.Members {
		if m.Status == "active" {
			out.Active++
		}
		if !m.HireDate.IsZero() && m.HireDate.Time().Year() == now.Year() && m.HireDate.Time().Month() == now.Month() {
			out.NewHires++
		}
		if m.Department != "" {
			departments[m.Department] = struct{}{}
		}
		if f.Department != "" && f.Department != "all" && m.Department != f.Department {
			continue
		}
		if !matchesAny(f.Query, m.FirstName, m.LastName, m.Email, m.Position) {
			continue
		}
		out.Members = append(out.Members, m)
	}
	out.Departments = len(departments)
	sort.SliceStable(out.Members, func(i, j int) bool { return out.Members[i].HireDate.After(out.Members[j].HireDate) })
	return out
}
