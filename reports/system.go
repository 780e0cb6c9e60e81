package reports

import (
	"sort"
	"time"
)

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	LatencyMS float64 `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

// TableRows is the row count of one table.
type TableRows struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// SystemStatus backs the admin tools page.
type SystemStatus struct {
	Healthy    bool              `json:"healthy"`
	Uptime     string            `json:"uptime"`
	CheckedAt  time.Time         `json:"checkedAt"`
	Components []ComponentStatus `json:"components"`
	Tables     []TableRows       `json:"tables"`
}

// Check measures one dependency probe.
func Check(name string, probe func() error) ComponentStatus {
	start := time.Now()
	err := probe()
	st := ComponentStatus{
		Name:      name,
		Healthy:   err == nil,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

// BuildSystemStatus combines probe results with per-table row counts.
func BuildSystemStatus(started, now time.Time, rows map[string]int, components ...ComponentStatus) SystemStatus {
	out := SystemStatus{
		Healthy:    true,
		Uptime:     now.Sub(started).Truncate(time.Second).String(),
		CheckedAt:  now.UTC(),
		Components: components,
		Tables:     make([]TableRows, 0, len(rows)),
	}
	if out.Components == nil {
		out.Components = []ComponentStatus{}
	}
	for _, c := range components {
		if !c.Healthy {
			out.Healthy = false
		}
	}
	for t, n := range rows {
		out.Tables = append(out.Tables, TableRows{Table: t, Rows: n})
	}
	sort.Slice(out.Tables, func(i, j int) bool { return out.Tables[i].Table < out.Tables[j].Table })
	return out
}
