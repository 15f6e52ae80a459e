package core

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category CategoryID `json:"category"`
	Name     string     `json:"name"`
	Amount   Money      `json:"amount"`
}

// MonthAmount holds the income and expense of one "YYYY-MM" month.
type MonthAmount struct {
	Month   string `json:"month"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// Totals is the income/expense pair shown on the dashboard cards.
type Totals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Net     Money `json:"net"`
}
