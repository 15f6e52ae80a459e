package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// CashAccount is the account reference of transactions paid in cash.
// Such transactions never touch a bank account balance.
const CashAccount = "cash"

type (
	// Kind is the direction of a transaction.
	Kind string

	Date struct {
		time.Time
	}

	// AccountRef points a transaction at a bank account, or at cash when empty.
	AccountRef struct {
		id AccountID
	}

	Account struct {
		ID          AccountID `json:"id"`
		Name        string    `json:"name"`
		Bank        string    `json:"bank"`
		CPF         string    `json:"cpf,omitempty"`
		DateOfBirth Date      `json:"dateOfBirth"`
		Balance     Money     `json:"balance"`
	}

	Transaction struct {
		ID          TransactionID `json:"id"`
		Description string        `json:"description"`
		Amount      Money         `json:"amount"`
		Kind        Kind          `json:"type"`
		Category    CategoryID    `json:"category"`
		Date        Date          `json:"date"`
		Account     AccountRef    `json:"accountId"`
	}

	Category struct {
		ID   CategoryID `json:"id"`
		Name string     `json:"name"`
	}

	TransactionType struct {
		ID   TransactionTypeID `json:"id"`
		Name string            `json:"name"`
	}

	User struct {
		ID    UserID `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	Session struct {
		Token string `json:"-"`
		User  User   `json:"user"`
	}

	// Movement is a deposit or withdrawal recorded against an account.
	Movement struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Amount Money  `json:"amount"`
		Date   Date   `json:"date"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrEmptyDate          = errors.New("date cannot be zero")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidKind        = errors.New("invalid transaction type")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyBank          = errors.New("empty bank")
	ErrInvalidCPF         = errors.New("invalid CPF")
	ErrUnderage           = errors.New("account holder must be at least 18 years old")
)

// ParseKind accepts the frontend names, the backend's uppercase names and the
// Portuguese labels, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "receita", "entrada":
		return Income, nil
	case "expense", "despesa", "saida", "saída":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool { return k == Income || k == Expense }

// Label is the Portuguese display name.
func (k Kind) Label() string {
	switch k {
	case Income:
		return "Receita"
	case Expense:
		return "Despesa"
	}
	return string(k)
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidKind, b)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current local calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts "2006-01-02" and the backend's LocalDateTime forms.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrEmptyDate
	}
	return nil
}

// MonthKey returns "YYYY-MM".
func (d Date) MonthKey() string { return d.Format("2006-01") }

func (d Date) String() string { return d.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date: %s", b)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AgeAt returns the age in whole years of someone born on d at the given time.
func (d Date) AgeAt(now time.Time) int {
	years := now.Year() - d.Year()
	if now.Month() < d.Month() || (now.Month() == d.Month() && now.Day() < d.Day()) {
		years--
	}
	return years
}

// Cash is the reference of a cash transaction.
var Cash = AccountRef{}

// RefTo references a bank account. An empty or "cash" id yields Cash.
func RefTo(id AccountID) AccountRef {
	if id == CashAccount {
		return Cash
	}
	return AccountRef{id: id}
}

func (r AccountRef) IsCash() bool { return r.id == "" }

// ID returns the referenced account and false for cash.
func (r AccountRef) ID() (AccountID, bool) { return r.id, r.id != "" }

func (r AccountRef) String() string {
	if r.IsCash() {
		return CashAccount
	}
	return string(r.id)
}

// MarshalJSON writes the sentinel "cash" for cash transactions.
func (r AccountRef) MarshalJSON() ([]byte, error) {
	if r.IsCash() {
		return json.Marshal(CashAccount)
	}
	return marshalID(string(r.id))
}

// UnmarshalJSON decodes null, "" and "cash" to Cash.
func (r *AccountRef) UnmarshalJSON(b []byte) error {
	var id AccountID
	if bytes.Equal(bytes.TrimSpace(b), []byte(`""`)) {
		*r = Cash
		return nil
	}
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	*r = RefTo(id)
	return nil
}

// SignedAmount is the effect of the transaction on its account balance.
func (t Transaction) SignedAmount() Money {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	var errs ValidationErrors
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		errs = errs.Add("description", ErrEmptyDescription)
	} else if len(t.Description) > 200 {
		errs = errs.Add("description", ErrDescriptionTooLong)
	}
	if err := t.Amount.Validate(); err != nil {
		errs = errs.Add("amount", err)
	}
	if !t.Kind.Valid() {
		errs = errs.Add("type", ErrInvalidKind)
	}
	if strings.TrimSpace(string(t.Category)) == "" {
		errs = errs.Add("category", ErrEmptyCategory)
	}
	if err := t.Date.Validate(); err != nil {
		errs = errs.Add("date", err)
	}
	return errs.Err()
}

// Validate checks an account as submitted from the account form, using the current time.
func (a Account) Validate() error {
	return a.ValidateAt(time.Now())
}

func (a Account) ValidateAt(now time.Time) error {
	var errs ValidationErrors
	if strings.TrimSpace(a.Name) == "" {
		errs = errs.Add("name", ErrEmptyName)
	}
	if strings.TrimSpace(a.Bank) == "" {
		errs = errs.Add("bank", ErrEmptyBank)
	}
	if !ValidCPF(a.CPF) {
		errs = errs.Add("cpf", ErrInvalidCPF)
	}
	if err := a.DateOfBirth.Validate(); err != nil {
		errs = errs.Add("dateOfBirth", err)
	} else if a.DateOfBirth.AgeAt(now) < 18 {
		errs = errs.Add("dateOfBirth", ErrUnderage)
	}
	if a.Balance.IsNegative() {
		errs = errs.Add("balance", ErrInvalidAmount)
	}
	return errs.Err()
}

// Kind infers the transaction kind from the backend's type name.
func (tt TransactionType) Kind() (Kind, bool) {
	k, err := ParseKind(tt.Name)
	return k, err == nil
}
