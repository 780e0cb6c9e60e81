package reports

import (
	"sort"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

const (
	chipsPageSize   = 20
	revenuePageSize = 15
	bonusPageSize   = 10
)

var (
	ChipsSources   = []Source{Wallets, Transactions}
	RevenueSources = []Source{Transactions}
	BonusSources   = []Source{Purchases}
)

// ChipsFilter narrows the transaction list of the chips view.
type ChipsFilter struct {
	Query  string
	Status string
}

// Chips is the chip economy overview.
type Chips struct {
	Circulation           int64                `json:"circulation"`
	CompletedTransactions int                  `json:"completedTransactions"`
	DailyTransactions     int                  `json:"dailyTransactions"`
	TotalValue            float64              `json:"totalValue"`
	Transactions          []domain.Transaction `json:"transactions"`
}

// BuildChips aggregates wallets and transactions and lists the newest
// transactions matching f.
func BuildChips(d Dataset, f ChipsFilter, now time.Time) Chips {
	var out Chips
	for _, w := range d.Wallets {
		out.Circulation += w.Chips
	}
	for _, tx := range d.Transactions {
		if sameDay(tx.CreatedAt, now) {
			out.DailyTransactions++
		}
		if tx.Status == domain.TransactionCompleted {
			out.CompletedTransactions++
			out.TotalValue += tx.AmountPaid
		}
	}
	out.TotalValue = round2(out.TotalValue)

	listed := make([]domain.Transaction, 0, len(d.Transactions))
	for _, tx := range d.Transactions {
		if f.Status != "" && f.Status != "all" && tx.Status != f.Status {
			continue
		}
		var username, email string
		if tx.Profile != nil {
			username, email = tx.Profile.Username, tx.Profile.Email
		}
		if !matchesAny(f.Query, username, email, tx.ItemName, tx.ID) {
			continue
		}
		listed = append(listed, tx)
	}
	sortTransactions(listed)
	out.Transactions = limit(listed, chipsPageSize)
	return out
}

// Revenue summarises completed transactions.
type Revenue struct {
	Total        float64              `json:"total"`
	Monthly      float64              `json:"monthly"`
	Daily        float64              `json:"daily"`
	Average      float64              `json:"average"`
	Count        int                  `json:"count"`
	Transactions []domain.Transaction `json:"transactions"`
}

// BuildRevenue sums completed transactions for all time, the current month
// and the current day.
func BuildRevenue(d Dataset, now time.Time) Revenue {
	var out Revenue
	completed := make([]domain.Transaction, 0, len(d.Transactions))
	for _, tx := range d.Transactions {
		if tx.Status != domain.TransactionCompleted {
			continue
		}
		completed = append(completed, tx)
		out.Total += tx.AmountPaid
		if sameMonth(tx.CreatedAt, now) {
			out.Monthly += tx.AmountPaid
		}
		if sameDay(tx.CreatedAt, now) {
			out.Daily += tx.AmountPaid
		}
	}
	out.Count = len(completed)
	if out.Count > 0 {
		out.Average = round2(out.Total / float64(out.Count))
	}
	out.Total, out.Monthly, out.Daily = round2(out.Total), round2(out.Monthly), round2(out.Daily)
	sortTransactions(completed)
	out.Transactions = limit(completed, revenuePageSize)
	return out
}

// Bonuses summarises bonus grants from the purchase history.
type Bonuses struct {
	Count      int               `json:"count"`
	TotalValue int64             `json:"totalValue"`
	ThisMonth  int               `json:"thisMonth"`
	Bonuses    []domain.Purchase `json:"bonuses"`
}

func BuildBonuses(d Dataset, now time.Time) Bonuses {
	var out Bonuses
	bonuses := make([]domain.Purchase, 0)
	for _, p := range d.Purchases {
		if !p.Bonus() {
			continue
		}
		bonuses = append(bonuses, p)
		out.TotalValue += p.BonusAmount
		if sameMonth(p.CreatedAt, now) {
			out.ThisMonth++
		}
	}
	out.Count = len(bonuses)
	sort.SliceStable(bonuses, func(i, j int) bool { return bonuses[i].CreatedAt.After(bonuses[j].CreatedAt) })
	out.Bonuses = limit(bonuses, bonusPageSize)
	return out
}

func sortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
}
