package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want AccountID
		err  bool
	}{
		{`7`, "7", false},
		{`"7"`, "7", false},
		{`" abc "`, "abc", false},
		{`null`, "", false},
		{`""`, "", true},
		{`1.5`, "", true},
		{`-3`, "", true},
		{`true`, "", true},
	}
	for _, tc := range cases {
		var id AccountID
		err := json.Unmarshal([]byte(tc.in), &id)
		if tc.err {
			assert.ErrorIs(t, err, ErrInvalidID, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, id, tc.in)
	}
}

func TestIDMarshal(t *testing.T) {
	out, _ := json.Marshal(CategoryID("12"))
	assert.Equal(t, `12`, string(out))
	out, _ = json.Marshal(CategoryID("food"))
	assert.Equal(t, `"food"`, string(out))
	out, _ = json.Marshal(TransactionID(""))
	assert.Equal(t, `null`, string(out))
}

func TestAccountRefJSON(t *testing.T) {
	cases := map[string]AccountRef{
		`null`:   Cash,
		`""`:     Cash,
		`"cash"`: Cash,
		`3`:      RefTo("3"),
		`"3"`:    RefTo("3"),
	}
	for in, want := range cases {
		var r AccountRef
		require.NoError(t, json.Unmarshal([]byte(in), &r), in)
		assert.Equal(t, want, r, in)
	}

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"amount":5}`), &tx))
	assert.True(t, tx.Account.IsCash(), "missing accountId means cash")

	out, _ := json.Marshal(Cash)
	assert.Equal(t, `"cash"`, string(out))
	out, _ = json.Marshal(RefTo("42"))
	assert.Equal(t, `42`, string(out))
	assert.Equal(t, Cash, RefTo(CashAccount))
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"income", "INCOME", "Receita"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Income, k)
	}
	for _, s := range []string{"expense", "EXPENSE", "despesa"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Expense, k)
	}
	_, err := ParseKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidKind)

	k, ok := TransactionType{ID: "1", Name: "INCOME"}.Kind()
	assert.True(t, ok)
	assert.Equal(t, Income, k)
}

func TestTransactionJSON(t *testing.T) {
	in := `{"id":"10","description":"Mercado","amount":"120.40","type":"EXPENSE","category":"food","date":"2025-03-14T00:00:00","accountId":"2"}`
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(in), &tx))
	assert.Equal(t, TransactionID("10"), tx.ID)
	assert.Equal(t, Expense, tx.Kind)
	assert.Equal(t, NewDate(2025, 3, 14), tx.Date)
	assert.Equal(t, "2025-03", tx.Date.MonthKey())
	id, ok := tx.Account.ID()
	assert.True(t, ok)
	assert.Equal(t, AccountID("2"), id)
	assert.True(t, tx.SignedAmount().Equal(MustParseMoney("-120.40")))
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "Salário",
		Amount:      MustParseMoney("3000"),
		Kind:        Income,
		Category:    "salary",
		Date:        NewDate(2025, 1, 5),
	}
	require.NoError(t, good.Validate())

	bad := Transaction{Description: "  ", Kind: "other"}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDescription)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.ErrorIs(t, err, ErrEmptyCategory)
	assert.ErrorIs(t, err, ErrEmptyDate)

	v, ok := AsValidation(err)
	require.True(t, ok)
	fields := v.Fields()
	assert.Len(t, fields, 5)
	assert.Equal(t, "empty description", fields["description"])
}

func TestAccountValidate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	acc := Account{
		Name:        "Conta corrente",
		Bank:        "nubank",
		CPF:         "529.982.247-25",
		DateOfBirth: NewDate(2007, 6, 10),
	}
	require.NoError(t, acc.ValidateAt(now))

	acc.DateOfBirth = NewDate(2007, 6, 11)
	err := acc.ValidateAt(now)
	assert.True(t, errors.Is(err, ErrUnderage))

	acc.DateOfBirth = NewDate(1990, 1, 1)
	acc.CPF = "123.456.789-00"
	assert.ErrorIs(t, acc.ValidateAt(now), ErrInvalidCPF)

	acc.CPF = "529.982.247-25"
	acc.Balance = Cents(-1)
	assert.ErrorIs(t, acc.ValidateAt(now), ErrInvalidAmount)
}

func TestCPF(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeCPF("529.982.247-25"))
	assert.Equal(t, "529.982.247-25", FormatCPF("52998224725"))
	assert.Equal(t, "529.98", FormatCPF("52998"))
	assert.Equal(t, "529.982.247-25", FormatCPF("5299822472599"))

	assert.True(t, ValidCPF("529.982.247-25"))
	assert.True(t, ValidCPF("11144477735"))
	assert.False(t, ValidCPF("529.982.247-26"))
	assert.False(t, ValidCPF("111.111.111-11"))
	assert.False(t, ValidCPF("529982.247-25"))
	assert.False(t, ValidCPF("1234"))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Caixa Econômica Federal", BankLabel("caixa"))
	assert.Equal(t, "desconhecido", BankLabel("desconhecido"))
	assert.Equal(t, "Alimentação", CategoryLabel("food"))

	accounts := []Account{{ID: "1", Name: "Principal", Bank: "itau"}}
	assert.Equal(t, "Principal - Itaú", AccountLabel(RefTo("1"), accounts))
	assert.Equal(t, "Dinheiro em Espécie", AccountLabel(Cash, accounts))
	assert.Equal(t, "Conta desconhecida", AccountLabel(RefTo("9"), accounts))
}
