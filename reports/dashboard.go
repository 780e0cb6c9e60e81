package reports

import (
	"math"
	"sort"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

const (
	trendDays      = 30
	topPlayerCount = 5
)

// DashboardSources lists the tables Dashboard reads.
var DashboardSources = []Source{Profiles, Wallets}

// DayCount is a count for one calendar day.
type DayCount struct {
	Date  domain.Date `json:"date"`
	Count int         `json:"count"`
}

// WeekComparison compares the last seven days with the seven before.
type WeekComparison struct {
	ThisWeek int     `json:"thisWeek"`
	LastWeek int     `json:"lastWeek"`
	Change   float64 `json:"change"`
}

// TopPlayer is a ranked wallet with its owner's name.
type TopPlayer struct {
	UserID        string  `json:"userId"`
	Username      string  `json:"username"`
	Level         int     `json:"level"`
	Experience    int64   `json:"experience"`
	Chips         int64   `json:"chips"`
	ChipsWonTotal int64   `json:"chipsWonTotal"`
	GamesPlayed   int64   `json:"gamesPlayed"`
	GamesWon      int64   `json:"gamesWon"`
	WinRate       float64 `json:"winRate"`
}

// Dashboard is the landing page overview.
type Dashboard struct {
	TotalUsers          int            `json:"totalUsers"`
	RecentUsers         int            `json:"recentUsers"`
	TodayUsers          int            `json:"todayUsers"`
	TotalChips          int64          `json:"totalChips"`
	TotalChipsWon       int64          `json:"totalChipsWon"`
	TotalGames          int64          `json:"totalGames"`
	TotalWins           int64          `json:"totalWins"`
	AverageLevel        int            `json:"averageLevel"`
	WinRate             float64        `json:"winRate"`
	RegistrationTrend   []DayCount     `json:"registrationTrend"`
	Weekly              WeekComparison `json:"weekly"`
	TopPlayers          []TopPlayer    `json:"topPlayers"`
	ProfilesWithWallets int            `json:"profilesWithWallets"`
	OrphanedWallets     int            `json:"orphanedWallets"`
}

// BuildDashboard aggregates profiles and wallets as of now.
func BuildDashboard(d Dataset, now time.Time) Dashboard {
	out := Dashboard{TotalUsers: len(d.Profiles), AverageLevel: 1}

	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	for _, p := range d.Profiles {
		if p.CreatedAt.After(weekAgo) {
			out.RecentUsers++
		}
		if sameDay(p.CreatedAt, now) {
			out.TodayUsers++
		}
		switch {
		case !p.CreatedAt.Before(weekAgo):
			out.Weekly.ThisWeek++
		case !p.CreatedAt.Before(twoWeeksAgo):
			out.Weekly.LastWeek++
		}
	}
	if out.Weekly.LastWeek > 0 {
		out.Weekly.Change = round1(percent(float64(out.Weekly.ThisWeek-out.Weekly.LastWeek), float64(out.Weekly.LastWeek)))
	}
	out.RegistrationTrend = registrationTrend(d.Profiles, now, trendDays)

	var levels int
	for _, w := range d.Wallets {
		out.TotalChips += w.Chips
		out.TotalChipsWon += w.ChipsWonTotal
		out.TotalGames += w.GamesPlayed
		out.TotalWins += w.GamesWon
		if w.Level > 0 {
			levels += w.Level
		} else {
			levels++
		}
	}
	if len(d.Wallets) > 0 {
		out.AverageLevel = int(math.Round(float64(levels) / float64(len(d.Wallets))))
	}
	out.WinRate = round1(percent(float64(out.TotalWins), float64(out.TotalGames)))

	names := d.usernames()
	withWallet := make(map[string]bool, len(d.Wallets))
	ranked := make([]domain.Wallet, 0, len(d.Wallets))
	for _, w := range d.Wallets {
		if _, ok := names[w.UserID]; !ok {
			out.OrphanedWallets++
			continue
		}
		withWallet[w.UserID] = true
		if w.Experience > 0 {
			ranked = append(ranked, w)
		}
	}
	out.ProfilesWithWallets = len(withWallet)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Experience > ranked[j].Experience })
	out.TopPlayers = topPlayers(limit(ranked, topPlayerCount), names)
	return out
}

// registrationTrend counts sign-ups per day for the last n days, oldest first.
func registrationTrend(profiles []domain.Profile, now time.Time, n int) []DayCount {
	today := startOfDay(now)
	trend := make([]DayCount, n)
	index := make(map[domain.Date]int, n)
	for i := 0; i < n; i++ {
		day := today.AddDate(0, 0, i-n+1)
		trend[i] = DayCount{Date: domain.DateOf(day)}
		index[trend[i].Date] = i
	}
	for _, p := range profiles {
		if i, ok := index[dateIn(p.CreatedAt, now.Location())]; ok {
			trend[i].Count++
		}
	}
	return trend
}

func topPlayers(wallets []domain.Wallet, names map[string]string) []TopPlayer {
	out := make([]TopPlayer, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, TopPlayer{
			UserID:        w.UserID,
			Username:      names[w.UserID],
			Level:         w.Level,
			Experience:    w.Experience,
			Chips:         w.Chips,
			ChipsWonTotal: w.ChipsWonTotal,
			GamesPlayed:   w.GamesPlayed,
			GamesWon:      w.GamesWon,
			WinRate:       round1(percent(float64(w.GamesWon), float64(w.GamesPlayed))),
		})
	}
	return out
}
