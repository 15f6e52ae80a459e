// Package sheets exports confirmed transactions to a spreadsheet.
package sheets

import (
	"context"

	"github.com/GMosna/ContabilApp/internal/core"
)

// Row is one exported transaction. Category and Account hold display names.
type Row struct {
	TransactionID core.TransactionID
	Date          core.Date
	Description   string
	Amount        core.Money
	Kind          core.Kind
	Category      string
	Account       string
}

// NewRow builds the exported row of tx.
func NewRow(tx core.Transaction, category, account string) Row {
	return Row{
		TransactionID: tx.ID,
		Date:          tx.Date,
		Description:   tx.Description,
		Amount:        tx.Amount,
		Kind:          tx.Kind,
		Category:      category,
		Account:       account,
	}
}

// Values is the row as written to the sheet: date, description, amount,
// type, category, account, transaction id.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.Description,
		r.Amount.InexactFloat64(),
		r.Kind.Label(),
		r.Category,
		r.Account,
		r.TransactionID.String(),
	}
}

// Ports for outbound adapters.
type (
	TransactionExporter interface {
		Export(ctx context.Context, row Row) (rowRef string, err error)
	}

	// ExportReader lists rows previously exported for a month.
	ExportReader interface {
		ListExported(ctx context.Context, year int, month int) ([]Row, error)
	}
)
