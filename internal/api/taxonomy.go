package api

import (
	"context"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
)

type wireCategory struct {
	ID           core.CategoryID `json:"id"`
	CategoryName string          `json:"categoryName"`
	Name         string          `json:"name"`
}

type wireTransactionType struct {
	ID              core.TransactionTypeID `json:"id"`
	TransactionType string                 `json:"transactionType"`
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var wire []wireCategory
	if err := c.do(ctx, request{method: http.MethodGet, path: "/categories", out: &wire}); err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(wire))
	for _, w := range wire {
		name := w.CategoryName
		if name == "" {
			name = w.Name
		}
		out = append(out, core.Category{ID: w.ID, Name: name})
	}
	return out, nil
}

func (c *Client) TransactionTypes(ctx context.Context) ([]core.TransactionType, error) {
	var wire []wireTransactionType
	if err := c.do(ctx, request{method: http.MethodGet, path: "/transaction-types", out: &wire}); err != nil {
		return nil, err
	}
	out := make([]core.TransactionType, 0, len(wire))
	for _, w := range wire {
		out = append(out, core.TransactionType{ID: w.ID, Name: w.TransactionType})
	}
	return out, nil
}

func (c *Client) UpdateTransactionType(ctx context.Context, tt core.TransactionType) (core.TransactionType, error) {
	var out wireTransactionType
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   pathID("/transaction-types", tt.ID, ""),
		body:   wireTransactionType{ID: tt.ID, TransactionType: tt.Name},
		out:    &out,
	})
	if err != nil {
		return core.TransactionType{}, err
	}
	if out.ID == "" {
		return tt, nil
	}
	return core.TransactionType{ID: out.ID, Name: out.TransactionType}, nil
}

func (c *Client) DeleteTransactionType(ctx context.Context, id core.TransactionTypeID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: pathID("/transaction-types", id, "")})
}
