package reports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrUserRequired     = errors.New("user id is required")
	ErrInvalidAmount    = errors.New("chip amount must be positive")
	ErrMemberName       = errors.New("first and last name are required")
	ErrInvalidMember    = errors.New("invalid member status")
	ErrCampaignName     = errors.New("campaign name is required")
)

// NewUser is the add-user form.
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Record validates the form and returns the profile row to insert.
func (u NewUser) Record(now time.Time) (tables.Record, error) {
	username := strings.TrimSpace(u.Username)
	email := strings.TrimSpace(u.Email)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	return tables.Record{
		"username":   username,
		"email":      email,
		"is_active":  true,
		"created_at": now.UTC().Format(time.RFC3339),
	}, nil
}

// ChipGrant is a manual chip credit issued by an admin.
type ChipGrant struct {
	UserID     string  `json:"userId"`
	ItemID     string  `json:"itemId"`
	ItemName   string  `json:"itemName"`
	Chips      int64   `json:"chipsAmount"`
	AmountPaid float64 `json:"amountPaid"`
}

// Transaction returns the completed transaction recording the grant.
func (g ChipGrant) Transaction(now time.Time) (tables.Record, error) {
	if strings.TrimSpace(g.UserID) == "" {
		return nil, ErrUserRequired
	}
	if g.Chips <= 0 {
		return nil, ErrInvalidAmount
	}
	itemID := g.ItemID
	if itemID == "" {
		itemID = "manual_admin"
	}
	itemName := g.ItemName
	if itemName == "" {
		itemName = "Admin Bonus"
	}
	return tables.Record{
		"user_id":           g.UserID,
		"item_id":           itemID,
		"item_name":         itemName,
		"chips_purchased":   g.Chips,
		"amount_paid":       g.AmountPaid,
		"payment_method":    "admin_manual",
		"status":            domain.TransactionCompleted,
		"stripe_payment_id": "admin_" + strconv.FormatInt(now.UnixMilli(), 10),
		"created_at":        now.UTC().Format(time.RFC3339),
	}, nil
}

// WalletPatch credits the grant to the user's current balance.
func (g ChipGrant) WalletPatch(current int64) tables.Record {
	return tables.Record{"chips": current + g.Chips}
}

// NewMember is the add-member form of the HR view.
type NewMember struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Position   string  `json:"position"`
	Department string  `json:"department"`
	HireDate   string  `json:"hireDate"`
	Salary     float64 `json:"salary"`
	Status     string  `json:"status"`
}

func (m NewMember) Record(now time.Time) (tables.Record, error) {
	first, last := strings.TrimSpace(m.FirstName), strings.TrimSpace(m.LastName)
	if first == "" || last == "" {
		return nil, ErrMemberName
	}
	if strings.TrimSpace(m.Email) == "" {
		return nil, ErrEmailRequired
	}
	status := m.Status
	if status == "" {
		status = "active"
	}
	if !domain.ValidMemberStatus(status) {
		return nil, ErrInvalidMember
	}
	hire := domain.DateOf(now)
	if m.HireDate != "" {
		d, err := domain.ParseDate(m.HireDate)
		if err != nil {
			return nil, fmt.Errorf("invalid hire date: %w", err)
		}
		hire = d
	}
	return tables.Record{
		"first_name": first,
		"last_name":  last,
		"email":      strings.TrimSpace(m.Email),
		"phone":      m.Phone,
		"position":   m.Position,
		"department": m.Department,
		"hire_date":  hire.String(),
		"salary":     m.Salary,
		"status":     status,
		"created_at": now.UTC().Format(time.RFC3339),
	}, nil
}

// NewCampaign is the create-campaign form.
type NewCampaign struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Audience string `json:"audience"`
}

func (c NewCampaign) Record(now time.Time) (tables.Record, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, ErrCampaignName
	}
	typ := c.Type
	if typ == "" {
		typ = "email"
	}
	return tables.Record{
		"name":       name,
		"type":       typ,
		"status":     "draft",
		"audience":   c.Audience,
		"sent":       int64(0),
		"opened":     int64(0),
		"clicked":    int64(0),
		"converted":  int64(0),
		"created_at": now.UTC().Format(time.RFC3339),
	}, nil
}
