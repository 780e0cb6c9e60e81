package reports

import (
	"fmt"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

// ReportKind selects one of the reporting views.
type ReportKind string

const (
	ReportOverview        ReportKind = "overview"
	ReportUserActivity    ReportKind = "user-activity"
	ReportFinancial       ReportKind = "financial"
	ReportGamePerformance ReportKind = "game-performance"
)

var reportNames = map[ReportKind]string{
	ReportOverview:        "Overview",
	ReportUserActivity:    "User Activity",
	ReportFinancial:       "Financial",
	ReportGamePerformance: "Game Performance",
}

func ParseReportKind(s string) (ReportKind, error) {
	if s == "" {
		return ReportOverview, nil
	}
	k := ReportKind(s)
	if _, ok := reportNames[k]; !ok {
		return "", fmt.Errorf("unknown report %q", s)
	}
	return k, nil
}

func (k ReportKind) Name() string { return reportNames[k] }

// Range is a trailing window of whole days.
type Range struct {
	Key  string
	Days int
}

var ranges = map[string]int{
	"7days":   7,
	"30days":  30,
	"90days":  90,
	"365days": 365,
	"1year":   365,
}

// ParseRange accepts 7days, 30days, 90days, 365days and 1year. Empty means 30days.
func ParseRange(s string) (Range, error) {
	if s == "" {
		s = "30days"
	}
	days, ok := ranges[s]
	if !ok {
		return Range{}, fmt.Errorf("unknown range %q", s)
	}
	return Range{Key: s, Days: days}, nil
}

// Cutoff is the earliest instant inside the range.
func (r Range) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(r.Days) * 24 * time.Hour)
}

// ReportingSources lists the tables every report reads.
var ReportingSources = []Source{Profiles, Games, Purchases}

// Metric is one figure of a report.
type Metric struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Report is the computed result of a report kind over a range.
type Report struct {
	Kind    ReportKind `json:"report"`
	Range   string     `json:"range"`
	Metrics []Metric   `json:"metrics"`
}

type window struct {
	profiles  []domain.Profile
	games     []domain.GameResult
	purchases []domain.Purchase
}

func inWindow(d Dataset, cutoff time.Time) window {
	var w window
	for _, p := range d.Profiles {
		if !p.CreatedAt.Before(cutoff) {
			w.profiles = append(w.profiles, p)
		}
	}
	for _, g := range d.Games {
		if !g.CreatedAt.Before(cutoff) {
			w.games = append(w.games, g)
		}
	}
	for _, p := range d.Purchases {
		if !p.CreatedAt.Before(cutoff) {
			w.purchases = append(w.purchases, p)
		}
	}
	return w
}

// BuildReport computes kind over the trailing range ending at now.
func BuildReport(d Dataset, kind ReportKind, r Range, now time.Time) Report {
	cutoff := r.Cutoff(now)
	w := inWindow(d, cutoff)
	rep := Report{Kind: kind, Range: r.Key}

	switch kind {
	case ReportUserActivity:
		active := make(map[string]struct{})
		var minutes float64
		for _, g := range w.games {
			active[g.UserID] = struct{}{}
			minutes += g.GameDurationMinutes
		}
		var avgSession float64
		if len(w.games) > 0 {
			avgSession = round1(minutes / float64(len(w.games)))
		}
		rep.Metrics = []Metric{
			{Key: "activeUsers", Label: "Active Users", Value: float64(len(active))},
			{Key: "avgSessionTime", Label: "Avg Session Time", Value: avgSession, Unit: "min"},
			{Key: "retention", Label: "Retention", Value: retention(d.Profiles, active, cutoff), Unit: "%"},
			{Key: "newUsers", Label: "New Users", Value: float64(len(w.profiles))},
		}
	case ReportFinancial:
		var revenue float64
		var chips int64
		for _, p := range w.purchases {
			revenue += p.PricePaid
			chips += p.ChipsAwarded
		}
		var avg float64
		if len(w.purchases) > 0 {
			avg = round2(revenue / float64(len(w.purchases)))
		}
		rep.Metrics = []Metric{
			{Key: "totalRevenue", Label: "Total Revenue", Value: round2(revenue), Unit: "$"},
			{Key: "avgTransaction", Label: "Avg Transaction", Value: avg, Unit: "$"},
			{Key: "chipsAwarded", Label: "Chips Awarded", Value: float64(chips)},
			{Key: "transactions", Label: "Transactions", Value: float64(len(w.purchases))},
		}
	case ReportGamePerformance:
		var wins, bet, won int64
		for _, g := range w.games {
			if g.ResultType == "win" {
				wins++
			}
			bet += g.ChipsBet
			won += g.ChipsWon
		}
		var avgBet float64
		if len(w.games) > 0 {
			avgBet = round1(float64(bet) / float64(len(w.games)))
		}
		rep.Metrics = []Metric{
			{Key: "totalGames", Label: "Total Games", Value: float64(len(w.games))},
			{Key: "winRate", Label: "Win Rate", Value: round1(percent(float64(wins), float64(len(w.games)))), Unit: "%"},
			{Key: "avgBet", Label: "Avg Bet", Value: avgBet},
			{Key: "totalWinnings", Label: "Total Winnings", Value: float64(won)},
		}
	default:
		rep.Kind = ReportOverview
		var revenue float64
		for _, p := range w.purchases {
			revenue += p.PricePaid
		}
		rep.Metrics = []Metric{
			{Key: "users", Label: "Total Users", Value: float64(len(d.Profiles))},
			{Key: "games", Label: "Games Played", Value: float64(len(w.games))},
			{Key: "revenue", Label: "Revenue", Value: round2(revenue), Unit: "$"},
			{Key: "conversion", Label: "Conversion", Value: round1(percent(float64(len(w.purchases)), float64(len(d.Profiles)))), Unit: "%"},
		}
	}
	return rep
}

// retention is the share of players registered before cutoff who played
// inside the window.
func retention(profiles []domain.Profile, active map[string]struct{}, cutoff time.Time) float64 {
	var existing, returned int
	for _, p := range profiles {
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		existing++
		if _, ok := active[p.ID]; ok {
			returned++
		}
	}
	return round1(percent(float64(returned), float64(existing)))
}

// Export is the downloadable form of a report.
type Export struct {
	Report      string    `json:"report"`
	DateRange   string    `json:"dateRange"`
	GeneratedAt time.Time `json:"generatedAt"`
	Metrics     []Metric  `json:"metrics"`
	RawData     any       `json:"rawData"`
}

type overviewRaw struct {
	Games     []domain.GameResult `json:"games"`
	Purchases []domain.Purchase   `json:"purchases"`
	Users     []domain.Profile    `json:"users"`
}

// BuildExport wraps the report with the rows it was computed from.
func BuildExport(d Dataset, kind ReportKind, r Range, now time.Time) Export {
	rep := BuildReport(d, kind, r, now)
	w := inWindow(d, r.Cutoff(now))
	exp := Export{
		Report:      rep.Kind.Name(),
		DateRange:   r.Key,
		GeneratedAt: now.UTC(),
		Metrics:     rep.Metrics,
	}
	switch rep.Kind {
	case ReportFinancial:
		exp.RawData = nonNil(w.purchases)
	case ReportGamePerformance:
		exp.RawData = nonNil(w.games)
	case ReportUserActivity:
		exp.RawData = nonNil(w.profiles)
	default:
		exp.RawData = overviewRaw{Games: nonNil(w.games), Purchases: nonNil(w.purchases), Users: nonNil(w.profiles)}
	}
	return exp
}

// ExportFilename names the download, e.g. financial-report-30days-2025-11-17.json.
func ExportFilename(kind ReportKind, r Range, now time.Time) string {
	return fmt.Sprintf("%s-report-%s-%s.json", kind, r.Key, now.Format("2006-01-02"))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
