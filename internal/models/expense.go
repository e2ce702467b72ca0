package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for Expense.Date.
const DateLayout = "2006-01-02"

// Expense represents a financial expense record owned by a single user.
type Expense struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

// NewExpense holds the caller-supplied fields of an expense. ID and UserID
// are assigned by the expense store.
type NewExpense struct {
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        string
}

// ExpensePatch is a partial update. Nil fields are left unchanged.
type ExpensePatch struct {
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Date        *string
}

// Apply returns e with the non-nil fields of p applied. ID and UserID never change.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

// Time parses the expense date. Unparseable dates yield the zero time.
func (e Expense) Time() time.Time {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// User represents a registered account.
//
// Password holds whatever the configured credential scheme produced: the
// verbatim password for the plaintext scheme, a bcrypt hash otherwise.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
