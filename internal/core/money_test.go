package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.234.567", "1234567", true},
		{"R$ 10,00", "10", true},
		{"0.005", "0.01", true},
		{"12.344", "12.34", true},
		{"12.345", "12.35", true},
		{"", "", false},
		{"0", "", false},
		{"0,00", "", false},
		{"-5", "", false},
		{"+5", "", false},
		{"1,2,3", "", false},
		{"abc", "", false},
		{"12a", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(MustParseMoney(tc.want)), "got %s want %s", got.Decimal(), tc.want)
		})
	}
}

func TestMoneyFormat(t *testing.T) {
	assert.Equal(t, "R$1.234,56", MustParseMoney("1234.56").String())
	assert.Equal(t, "R$0,50", MustParseMoney("0.5").String())
	assert.Equal(t, "-R$10,00", MustParseMoney("-10").String())
	assert.Equal(t, "R$1.000.000,00", Cents(100000000).String())
	assert.Equal(t, "$1,234.56", MustParseMoney("1234.56").Format("USD"))
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	a := MustParseMoney("0.1")
	b := MustParseMoney("0.2")
	assert.True(t, a.Add(b).Equal(MustParseMoney("0.3")))
	assert.True(t, Sum(a, b, a.Neg()).Equal(b))
	assert.True(t, Money{}.IsZero())
	assert.ErrorIs(t, Money{}.Validate(), ErrInvalidAmount)
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`1500.5`), &m))
	assert.True(t, m.Equal(MustParseMoney("1500.50")))

	require.NoError(t, json.Unmarshal([]byte(`"99.90"`), &m))
	assert.True(t, m.Equal(MustParseMoney("99.9")))

	require.NoError(t, json.Unmarshal([]byte(`"1.234,50"`), &m))
	assert.True(t, m.Equal(MustParseMoney("1234.5")))

	err := json.Unmarshal([]byte(`true`), &m)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	out, err := json.Marshal(MustParseMoney("10.456"))
	require.NoError(t, err)
	assert.Equal(t, "10.46", string(out))
}
