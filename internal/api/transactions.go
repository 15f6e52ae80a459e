package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
)

// TransactionInput is what the backend needs to store a transaction besides
// the transaction itself: the id of its type row and the owning user.
type TransactionInput struct {
	Transaction core.Transaction
	TypeID      core.TransactionTypeID
	UserID      core.UserID
}

type transactionRequest struct {
	Description       string                 `json:"description"`
	Amount            core.Money             `json:"amount"`
	Date              string                 `json:"date"`
	CategoryID        core.CategoryID        `json:"categoryId"`
	TransactionTypeID core.TransactionTypeID `json:"transactionTypeId"`
	AccountID         *core.AccountID        `json:"accountId"`
	UserID            core.UserID            `json:"userId"`
}

func newTransactionRequest(in TransactionInput) transactionRequest {
	tx := in.Transaction
	req := transactionRequest{
		Description:       tx.Description,
		Amount:            tx.Amount,
		Date:              tx.Date.Format("2006-01-02T15:04:05"),
		CategoryID:        tx.Category,
		TransactionTypeID: in.TypeID,
		UserID:            in.UserID,
	}
	if id, ok := tx.Account.ID(); ok {
		req.AccountID = &id
	}
	return req
}

// wireTransaction accepts both the flat shape (type, category, accountId)
// and the backend DTO with nested category, transactionType and account.
type wireTransaction struct {
	ID                core.TransactionID     `json:"id"`
	Description       string                 `json:"description"`
	Amount            core.Money             `json:"amount"`
	Date              core.Date              `json:"date"`
	Type              string                 `json:"type"`
	TransactionType   json.RawMessage        `json:"transactionType"`
	TransactionTypeID core.TransactionTypeID `json:"transactionTypeId"`
	Category          json.RawMessage        `json:"category"`
	CategoryID        core.CategoryID        `json:"categoryId"`
	AccountID         core.AccountRef        `json:"accountId"`
	Account           *struct {
		ID core.AccountID `json:"id"`
	} `json:"account"`
}

type nested struct {
	ID              json.RawMessage `json:"id"`
	TransactionType string          `json:"transactionType"`
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isSet(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// kind resolves the transaction kind from a name when present, otherwise
// through the type id and the known transaction types.
func (w wireTransaction) kind(kinds map[core.TransactionTypeID]core.Kind) (core.Kind, error) {
	if w.Type != "" {
		return core.ParseKind(w.Type)
	}
	typeID := w.TransactionTypeID
	if isSet(w.TransactionType) {
		if isObject(w.TransactionType) {
			var n nested
			if err := json.Unmarshal(w.TransactionType, &n); err != nil {
				return "", fmt.Errorf("transactionType: %w", err)
			}
			if n.TransactionType != "" {
				return core.ParseKind(n.TransactionType)
			}
			if err := typeID.UnmarshalJSON(n.ID); err != nil {
				return "", fmt.Errorf("transactionType.id: %w", err)
			}
		} else {
			var name string
			if json.Unmarshal(w.TransactionType, &name) == nil {
				if k, err := core.ParseKind(name); err == nil {
					return k, nil
				}
			}
			if err := typeID.UnmarshalJSON(w.TransactionType); err != nil {
				return "", fmt.Errorf("transactionType: %w", err)
			}
		}
	}
	if k, ok := kinds[typeID]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown transaction type id %q", core.ErrInvalidKind, typeID)
}

func (w wireTransaction) category() (core.CategoryID, error) {
	if !isSet(w.Category) {
		return w.CategoryID, nil
	}
	raw := w.Category
	if isObject(raw) {
		var n nested
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("category: %w", err)
		}
		raw = n.ID
	}
	var id core.CategoryID
	if err := id.UnmarshalJSON(raw); err != nil {
		return "", fmt.Errorf("category: %w", err)
	}
	return id, nil
}

func (w wireTransaction) toCore(kinds map[core.TransactionTypeID]core.Kind) (core.Transaction, error) {
	if w.Amount.IsNegative() {
		return core.Transaction{}, fmt.Errorf("amount %s: %w", w.Amount.StringFixed(2), core.ErrInvalidAmount)
	}
	kind, err := w.kind(kinds)
	if err != nil {
		return core.Transaction{}, err
	}
	cat, err := w.category()
	if err != nil {
		return core.Transaction{}, err
	}
	ref := w.AccountID
	if w.Account != nil && w.Account.ID != "" {
		ref = core.RefTo(w.Account.ID)
	}
	return core.Transaction{
		ID:          w.ID,
		Description: w.Description,
		Amount:      w.Amount,
		Kind:        kind,
		Category:    cat,
		Date:        w.Date,
		Account:     ref,
	}, nil
}

// KindIndex maps transaction type ids to kinds.
func KindIndex(types []core.TransactionType) map[core.TransactionTypeID]core.Kind {
	out := make(map[core.TransactionTypeID]core.Kind, len(types))
	for _, t := range types {
		if k, ok := t.Kind(); ok {
			out[t.ID] = k
		}
	}
	return out
}

// Transactions lists every transaction of the user. types resolves kinds when
// the backend only sends a type id; it may be nil otherwise. Rows that cannot
// be decoded are logged and left out.
func (c *Client) Transactions(ctx context.Context, types []core.TransactionType) ([]core.Transaction, error) {
	var wire []wireTransaction
	if err := c.do(ctx, request{method: http.MethodGet, path: "/transactions", out: &wire}); err != nil {
		return nil, err
	}
	kinds := KindIndex(types)
	out := make([]core.Transaction, 0, len(wire))
	for _, w := range wire {
		tx, err := w.toCore(kinds)
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable transaction", "transaction_id", w.ID, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// CreateTransaction stores a transaction. The backend applies its balance
// effect; the returned transaction carries the backend id.
func (c *Client) CreateTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	var out wireTransaction
	err := c.do(ctx, request{method: http.MethodPost, path: "/transactions", body: newTransactionRequest(in), out: &out})
	if err != nil {
		return core.Transaction{}, err
	}
	tx := in.Transaction
	tx.ID = out.ID
	return tx, nil
}

// UpdateTransaction replaces a transaction. The backend reverts the old effect
// and applies the new one.
func (c *Client) UpdateTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   pathID("/transactions", in.Transaction.ID, ""),
		body:   newTransactionRequest(in),
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return in.Transaction, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id core.TransactionID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathID("/transactions", id, "")})
}

// ClearTransactions deletes every transaction of the user.
func (c *Client) ClearTransactions(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/transactions/clear-all"})
}
