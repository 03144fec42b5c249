package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Unique    ExpenseType = "unique"
	Permanent ExpenseType = "permanent"

	SourceManual        Source = "manual"
	SourceSharedPayment Source = "shared_payment"
)

type (
	ExpenseType string
	Source      string

	Money struct {
		Cents int64
	}

	User struct {
		ID           string
		Username     string
		Email        string
		PasswordHash string
		HouseholdID  string // current household, empty when the user belongs to none
		CreatedAt    time.Time
	}

	Household struct {
		ID        string
		Name      string
		Code      string // 6-character uppercase join code
		CreatedBy string
		CreatedAt time.Time
	}

	Expense struct {
		ID          string
		HouseholdID string
		CreatedBy   string
		Title       string
		Description string
		Total       Money
		Unit        Money // per-member share, fixed at create and edit time
		Type        ExpenseType
		Remaining   Money
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	ExpensePayment struct {
		ID        string
		ExpenseID string
		UserID    string
		Amount    Money // unit cost captured at payment time
		PaidAt    time.Time
	}

	PersonalExpense struct {
		ID              string
		UserID          string
		HouseholdID     string
		Title           string
		Description     string
		Cost            Money
		Source          Source
		SharedPaymentID string // weak reference, may dangle once the shared expense is gone
		Month           int    // 1-12
		Year            int
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidType   = errors.New("invalid expense type")
	ErrInvalidSource = errors.New("invalid personal expense source")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
	ErrEmptyUsername = errors.New("empty username")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrNoMembers     = errors.New("household has no members")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t ExpenseType) Validate() error {
	switch t {
	case Unique, Permanent:
		return nil
	}
	return ErrInvalidType
}

func (s Source) Validate() error {
	switch s {
	case SourceManual, SourceSharedPayment:
		return nil
	}
	return ErrInvalidSource
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Username)) == 0 {
		return ErrEmptyUsername
	}
	if len(u.Username) > 100 {
		return errors.New("username too long (max 100 characters)")
	}
	if !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (h Household) Validate() error {
	if len(strings.TrimSpace(h.Name)) == 0 {
		return ErrEmptyName
	}
	if len(h.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if err := e.Type.Validate(); err != nil {
		return err
	}
	return nil
}

// IsFullyPaid reports whether every share has been collected.
func (e Expense) IsFullyPaid() bool {
	return e.Remaining.Cents <= 0
}

func (p PersonalExpense) Validate() error {
	if len(strings.TrimSpace(p.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(p.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := p.Cost.Validate(); err != nil {
		return err
	}
	if err := p.Source.Validate(); err != nil {
		return err
	}
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1970 {
		return ErrInvalidYear
	}
	return nil
}

// PreviousMonth returns the calendar month before the one containing now,
// wrapping January back to December of the prior year.
func PreviousMonth(now time.Time) (year, month int) {
	year = now.Year()
	month = int(now.Month()) - 1
	if month < 1 {
		month = 12
		year--
	}
	return year, month
}
