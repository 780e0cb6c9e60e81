package domain

import "time"

// Table names of the hosted data store.
const (
	TableProfiles        = "profiles"
	TableWallets         = "user_wallet"
	TableTransactions    = "transactions"
	TablePurchaseHistory = "purchase_history"
	TableGameResults     = "game_results"
	TableViolations      = "user_violations"
	TableLeaderboards    = "leaderboards"
	TableActiveUsers     = "active_users"
	TableTeamMembers     = "team_members"
	TableCampaigns       = "campaigns"
	TableAdminActivity   = "admin_activity"
)

// KnownTables lists every table the dashboard reads or writes.
var KnownTables = []string{
	TableProfiles,
	TableWallets,
	TableTransactions,
	TablePurchaseHistory,
	TableGameResults,
	TableViolations,
	TableLeaderboards,
	TableActiveUsers,
	TableTeamMembers,
	TableCampaigns,
	TableAdminActivity,
}

// ProfileRef is the embedded profile of a relation expansion.
type ProfileRef struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Profile is a registered player.
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	IsActive     *bool     `json:"is_active,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastSignInAt string    `json:"last_sign_in_at,omitempty"`
}

// Active treats a missing flag as active.
func (p Profile) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// Wallet holds a player's chip balance and play statistics.
type Wallet struct {
	ID               string    `json:"id,omitempty"`
	UserID           string    `json:"user_id"`
	Chips            int64     `json:"chips"`
	ChipsWonTotal    int64     `json:"chips_won_total"`
	Level            int       `json:"level"`
	Experience       int64     `json:"experience"`
	GamesPlayed      int64     `json:"games_played"`
	GamesWon         int64     `json:"games_won"`
	TotalHoursPlayed float64   `json:"total_hours_played"`
	CreatedAt        time.Time `json:"created_at"`
}

const TransactionCompleted = "completed"

// Transaction is a chip purchase.
type Transaction struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ItemID          string      `json:"item_id,omitempty"`
	ItemName        string      `json:"item_name"`
	ChipsPurchased  int64       `json:"chips_purchased"`
	AmountPaid      float64     `json:"amount_paid"`
	PaymentMethod   string      `json:"payment_method"`
	StripePaymentID string      `json:"stripe_payment_id"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	Profile         *ProfileRef `json:"profiles,omitempty"`
}

// Purchase is an entry of the purchase history, including bonus grants.
type Purchase struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ChipsAwarded    int64       `json:"chips_awarded"`
	PricePaid       float64     `json:"price_paid"`
	PackageName     string      `json:"package_name,omitempty"`
	IsBonus         bool        `json:"is_bonus"`
	BonusAmount     int64       `json:"bonus_amount"`
	TransactionType string      `json:"transaction_type"`
	CreatedAt       time.Time   `json:"created_at"`
	Profile         *ProfileRef `json:"profiles,omitempty"`
}

// Bonus reports whether the purchase was a bonus grant.
func (p Purchase) Bonus() bool {
	return p.IsBonus || p.TransactionType == "bonus"
}

// GameResult is the outcome of a single played game.
type GameResult struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	GameType            string      `json:"game_type"`
	ChipsWon            int64       `json:"chips_won"`
	ChipsBet            int64       `json:"chips_bet"`
	GameDurationMinutes float64     `json:"game_duration_minutes"`
	ResultType          string      `json:"result_type"`
	CreatedAt           time.Time   `json:"created_at"`
	Profile             *ProfileRef `json:"profiles,omitempty"`
}

// Violation is a reported policy violation.
type Violation struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Type        string      `json:"violation_type"`
	Description string      `json:"violation_description"`
	Severity    string      `json:"severity"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Profile     *ProfileRef `json:"profiles,omitempty"`
}

// Campaign is a marketing campaign with its funnel counters.
type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Audience  string    `json:"audience,omitempty"`
	Sent      int64     `json:"sent"`
	Opened    int64     `json:"opened"`
	Clicked   int64     `json:"clicked"`
	Converted int64     `json:"converted"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember is a staff member managed by HR.
type TeamMember struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	HireDate   Date      `json:"hire_date"`
	Salary     float64   `json:"salary,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m TeamMember) FullName() string {
	return m.FirstName + " " + m.LastName
}

var memberStatuses = map[string]bool{"active": true, "inactive": true, "on_leave": true}

func ValidMemberStatus(s string) bool { return memberStatuses[s] }

// ActiveUser marks a player currently in a game.
type ActiveUser struct {
	UserID   string    `json:"user_id"`
	GameType string    `json:"game_type,omitempty"`
	IsActive bool      `json:"is_active"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}
