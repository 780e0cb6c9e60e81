package reports

import (
	"sort"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

var (
	GamesSources     = []Source{Wallets, Profiles}
	MarketingSources = []Source{Campaigns}
)

// GamesOverview aggregates play statistics from wallets.
type GamesOverview struct {
	TotalGames         int64       `json:"totalGames"`
	TotalWins          int64       `json:"totalWins"`
	TotalHours         float64     `json:"totalHours"`
	WinRate            float64     `json:"winRate"`
	ActivePlayers      int         `json:"activePlayers"`
	AvgDurationMinutes float64     `json:"avgDurationMinutes"`
	TopPlayers         []TopPlayer `json:"topPlayers"`
}

func BuildGames(d Dataset) GamesOverview {
	var out GamesOverview
	played := make([]domain.Wallet, 0, len(d.Wallets))
	for _, w := range d.Wallets {
		out.TotalGames += w.GamesPlayed
		out.TotalWins += w.GamesWon
		out.TotalHours += w.TotalHoursPlayed
		if w.GamesPlayed > 0 {
			out.ActivePlayers++
			played = append(played, w)
		}
	}
	out.WinRate = round1(percent(float64(out.TotalWins), float64(out.TotalGames)))
	if out.TotalGames > 0 {
		out.AvgDurationMinutes = round1(out.TotalHours * 60 / float64(out.TotalGames))
	}
	out.TotalHours = round1(out.TotalHours)

	sort.SliceStable(played, func(i, j int) bool { return played[i].GamesPlayed > played[j].GamesPlayed })
	out.TopPlayers = topPlayers(limit(played, topPlayerCount), d.usernames())
	return out
}

// CampaignStats is a campaign with its funnel rates in percent.
type CampaignStats struct {
	domain.Campaign
	OpenRate       float64 `json:"openRate"`
	ClickRate      float64 `json:"clickRate"`
	ConversionRate float64 `json:"conversionRate"`
}

// Marketing summarises every campaign and the overall funnel.
type Marketing struct {
	Active         int             `json:"active"`
	Sent           int64           `json:"sent"`
	Opened         int64           `json:"opened"`
	Clicked        int64           `json:"clicked"`
	Converted      int64           `json:"converted"`
	OpenRate       float64         `json:"openRate"`
	ConversionRate float64         `json:"conversionRate"`
	Campaigns      []CampaignStats `json:"campaigns"`
}

func BuildMarketing(d Dataset) Marketing {
	out := Marketing{Campaigns: make([]CampaignStats, 0, len(d.Campaigns))}
	for _, c := range d.Campaigns {
		if c.Status == "active" {
			out.Active++
		}
		out.Sent += c.Sent
		out.Opened += c.Opened
		out.Clicked += c.Clicked
		out.Converted += c.Converted
		out.Campaigns = append(out.Campaigns, campaignStats(c))
	}
	out.OpenRate = round1(percent(float64(out.Opened), float64(out.Sent)))
	out.ConversionRate = round1(percent(float64(out.Converted), float64(out.Sent)))
	sort.SliceStable(out.Campaigns, func(i, j int) bool {
		return out.Campaigns[i].CreatedAt.After(out.Campaigns[j].CreatedAt)
	})
	return out
}

func campaignStats(c domain.Campaign) CampaignStats {
	return CampaignStats{
		Campaign:       c,
		OpenRate:       round1(percent(float64(c.Opened), float64(c.Sent))),
		ClickRate:      round1(percent(float64(c.Clicked), float64(c.Opened))),
		ConversionRate: round1(percent(float64(c.Converted), float64(c.Sent))),
	}
}
