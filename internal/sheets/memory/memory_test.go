package memory

import (
	"context"
	"testing"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/sheets"
)

func TestMemoryStoreExportAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	march := core.Transaction{ID: "1", Description: "Feira", Amount: core.Cents(3550), Kind: core.Expense, Category: "food", Date: core.NewDate(2024, 3, 2)}
	april := core.Transaction{ID: "2", Description: "Salário", Amount: core.Cents(500000), Kind: core.Income, Category: "salary", Date: core.NewDate(2024, 4, 5)}

	ref, err := s.Export(ctx, sheets.NewRow(march, "Alimentação", "Dinheiro em Espécie"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	if _, err := s.Export(ctx, sheets.NewRow(april, "Salário", "Nubank")); err != nil {
		t.Fatal(err)
	}

	rows, err := s.ListExported(ctx, 2024, 3)
	if err != nil || len(rows) != 1 || rows[0].TransactionID != "1" {
		t.Fatalf("unexpected rows: %+v err=%v", rows, err)
	}
	if len(s.Rows()) != 2 {
		t.Errorf("expected 2 rows in total, got %d", len(s.Rows()))
	}
}

func TestMemoryStoreRejectsIncompleteRow(t *testing.T) {
	s := New()
	if _, err := s.Export(context.Background(), sheets.Row{Description: "no date"}); err == nil {
		t.Fatal("expected error")
	}
}
