package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

var (
	StatisticsSources = []Source{Games, Purchases, Profiles, ActiveUsers, Wallets, Violations}
	ActivitySources   = []Source{Games, Purchases, Violations}
)

// TypeCount is the number of games of one type.
type TypeCount struct {
	GameType string  `json:"gameType"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
}

// DayRevenue is the purchase revenue of one day.
type DayRevenue struct {
	Date    domain.Date `json:"date"`
	Weekday string      `json:"weekday"`
	Revenue float64     `json:"revenue"`
}

// Statistics is the range-filtered analytics page.
type Statistics struct {
	Range             string       `json:"range"`
	TotalGames        int          `json:"totalGames"`
	TotalWins         int          `json:"totalWins"`
	Revenue           float64      `json:"revenue"`
	NewUsers          int          `json:"newUsers"`
	ActiveUsers       int          `json:"activeUsers"`
	PendingViolations int          `json:"pendingViolations"`
	GameTypes         []TypeCount  `json:"gameTypes"`
	TopPlayers        []TopPlayer  `json:"topPlayers"`
	RevenueByDay      []DayRevenue `json:"revenueByDay"`
}

func BuildStatistics(d Dataset, r Range, now time.Time) Statistics {
	w := inWindow(d, r.Cutoff(now))
	out := Statistics{Range: r.Key, TotalGames: len(w.games), NewUsers: len(w.profiles)}

	types := make(map[string]int)
	for _, g := range w.games {
		if g.ResultType == "win" {
			out.TotalWins++
		}
		types[g.GameType]++
	}
	out.GameTypes = make([]TypeCount, 0, len(types))
	for t, n := range types {
		out.GameTypes = append(out.GameTypes, TypeCount{
			GameType: t,
			Count:    n,
			Percent:  round1(percent(float64(n), float64(len(w.games)))),
		})
	}
	sort.Slice(out.GameTypes, func(i, j int) bool {
		if out.GameTypes[i].Count != out.GameTypes[j].Count {
			return out.GameTypes[i].Count > out.GameTypes[j].Count
		}
		return out.GameTypes[i].GameType < out.GameTypes[j].GameType
	})

	for _, p := range w.purchases {
		out.Revenue += p.PricePaid
	}
	out.Revenue = round2(out.Revenue)
	for _, u := range d.ActiveUsers {
		if u.IsActive {
			out.ActiveUsers++
		}
	}
	for _, v := range d.Violations {
		if v.Status == "pending" {
			out.PendingViolations++
		}
	}

	wallets := append([]domain.Wallet(nil), d.Wallets...)
	sort.SliceStable(wallets, func(i, j int) bool { return wallets[i].ChipsWonTotal > wallets[j].ChipsWonTotal })
	out.TopPlayers = topPlayers(limit(wallets, topPlayerCount), d.usernames())
	out.RevenueByDay = revenueByDay(d.Purchases, now, 7)
	return out
}

func revenueByDay(purchases []domain.Purchase, now time.Time, n int) []DayRevenue {
	today := startOfDay(now)
	out := make([]DayRevenue, n)
	index := make(map[domain.Date]int, n)
	for i := 0; i < n; i++ {
		day := today.AddDate(0, 0, i-n+1)
		out[i] = DayRevenue{Date: domain.DateOf(day), Weekday: day.Weekday().String()[:3]}
		index[out[i].Date] = i
	}
	for _, p := range purchases {
		if i, ok := index[dateIn(p.CreatedAt, now.Location())]; ok {
			out[i].Revenue += p.PricePaid
		}
	}
	for i := range out {
		out[i].Revenue = round2(out[i].Revenue)
	}
	return out
}

const (
	recentGames      = 5
	recentPurchases  = 5
	recentViolations = 3
	recentFeedSize   = 10
)

// ActivityItem is one entry of the recent activity feed.
type ActivityItem struct {
	Kind     string    `json:"kind"`
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Summary  string    `json:"summary"`
	At       time.Time `json:"at"`
}

// BuildActivity merges the newest games, purchases and violations into one
// feed, newest first.
func BuildActivity(d Dataset) []ActivityItem {
	games := append([]domain.GameResult(nil), d.Games...)
	sort.SliceStable(games, func(i, j int) bool { return games[i].CreatedAt.After(games[j].CreatedAt) })
	purchases := append([]domain.Purchase(nil), d.Purchases...)
	sort.SliceStable(purchases, func(i, j int) bool { return purchases[i].CreatedAt.After(purchases[j].CreatedAt) })
	violations := append([]domain.Violation(nil), d.Violations...)
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].CreatedAt.After(violations[j].CreatedAt) })

	feed := make([]ActivityItem, 0, recentGames+recentPurchases+recentViolations)
	for _, g := range limit(games, recentGames) {
		feed = append(feed, ActivityItem{
			Kind:     "game",
			ID:       g.ID,
			UserID:   g.UserID,
			Username: refName(g.Profile),
			Summary:  fmt.Sprintf("%s %s (%d chips)", g.GameType, g.ResultType, g.ChipsWon),
			At:       g.CreatedAt,
		})
	}
	for _, p := range limit(purchases, recentPurchases) {
		feed = append(feed, ActivityItem{
			Kind:     "purchase",
			ID:       p.ID,
			UserID:   p.UserID,
			Username: refName(p.Profile),
			Summary:  fmt.Sprintf("%d chips for $%.2f", p.ChipsAwarded, p.PricePaid),
			At:       p.CreatedAt,
		})
	}
	for _, v := range limit(violations, recentViolations) {
		feed = append(feed, ActivityItem{
			Kind:     "violation",
			ID:       v.ID,
			UserID:   v.UserID,
			Username: refName(v.Profile),
			Summary:  fmt.Sprintf("%s (%s)", v.Type, v.Severity),
			At:       v.CreatedAt,
		})
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].At.After(feed[j].At) })
	return limit(feed, recentFeedSize)
}

func refName(p *domain.ProfileRef) string {
	if p == nil || p.Username == "" {
		return "Unknown"
	}
	return p.Username
}
