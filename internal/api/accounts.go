package api

import (
	"context"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
)

type accountRequest struct {
	Name        string     `json:"name"`
	CPF         string     `json:"cpf"`
	DateOfBirth core.Date  `json:"dateOfBirth"`
	Bank        string     `json:"bank"`
	Balance     core.Money `json:"balance"`
}

func newAccountRequest(a core.Account) accountRequest {
	return accountRequest{
		Name:        a.Name,
		CPF:         core.NormalizeCPF(a.CPF),
		DateOfBirth: a.DateOfBirth,
		Bank:        a.Bank,
		Balance:     a.Balance,
	}
}

type valueRequest struct {
	Value core.Money `json:"value"`
}

// Accounts lists the user's accounts with their stored balances.
func (c *Client) Accounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	if err := c.do(ctx, request{method: http.MethodGet, path: "/account", out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Account fetches one account with its holder details. The backend omits the
// id in this view, so it is filled from the request.
func (c *Client) Account(ctx context.Context, id core.AccountID) (core.Account, error) {
	var out core.Account
	if err := c.do(ctx, request{method: http.MethodGet, path: pathID("/account", id, ""), out: &out}); err != nil {
		return core.Account{}, err
	}
	out.ID = id
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	var out core.Account
	if err := c.do(ctx, request{method: http.MethodPost, path: "/account", body: newAccountRequest(a), out: &out}); err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (c *Client) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	var out core.Account
	if err := c.do(ctx, request{method: http.MethodPut, path: pathID("/account", a.ID, ""), body: newAccountRequest(a), out: &out}); err != nil {
		return core.Account{}, err
	}
	if out.ID == "" {
		out.ID = a.ID
	}
	return out, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id core.AccountID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathID("/account", id, "")})
}

// Deposit credits amount and returns the account with its new balance.
func (c *Client) Deposit(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return c.move(ctx, id, "/deposito", amount)
}

// Withdraw debits amount. Insufficient funds come back as a *BusinessError.
func (c *Client) Withdraw(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return c.move(ctx, id, "/saque", amount)
}

func (c *Client) move(ctx context.Context, id core.AccountID, suffix string, amount core.Money) (core.Account, error) {
	var out core.Account
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   pathID("/account", id, suffix),
		body:   valueRequest{Value: amount},
		out:    &out,
	})
	if err != nil {
		return core.Account{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

type wireMovement struct {
	ID           core.TransactionID `json:"id"`
	Type         string             `json:"type"`
	Amount       core.Money         `json:"amount"`
	MovementDate core.Date          `json:"movementDate"`
	Date         core.Date          `json:"date"`
}

// Movements lists deposits and withdrawals of an account.
func (c *Client) Movements(ctx context.Context, id core.AccountID) ([]core.Movement, error) {
	var wire []wireMovement
	if err := c.do(ctx, request{method: http.MethodGet, path: pathID("/movements", id, ""), out: &wire}); err != nil {
		return nil, err
	}
	out := make([]core.Movement, 0, len(wire))
	for _, w := range wire {
		d := w.MovementDate
		if d.IsZero() {
			d = w.Date
		}
		out = append(out, core.Movement{ID: w.ID.String(), Type: w.Type, Amount: w.Amount, Date: d})
	}
	return out, nil
}
