package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/GMosna/ContabilApp/internal/core"
)

func newRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := NewRequestBodyParser(newRequest(`{"description":" Aluguel\u0007 ","amount":12.5,"account":{"id":3},"paid":true,"note":null}`, "application/json"))
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.IsJSON() {
		t.Error("IsJSON() = false, want true")
	}

	tests := map[string]string{
		"description": "Aluguel",
		"amount":      "12.5",
		"account":     "3",
		"paid":        "true",
		"note":        "",
		"missing":     "",
	}
	for key, want := range tests {
		if got := p.Get(key); got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
	if !p.Has("note") || p.Has("missing") {
		t.Error("Has() does not distinguish sent from missing keys")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	p := NewRequestBodyParser(newRequest("description=Mercado&amount=1.234%2C56", "application/x-www-form-urlencoded"))
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsJSON() {
		t.Error("IsJSON() = true, want false")
	}
	if got := p.Get("amount"); got != "1.234,56" {
		t.Errorf("Get(amount) = %q", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	p := NewRequestBodyParser(newRequest("", ""))
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.Get("anything"); got != "" {
		t.Errorf("Get() = %q, want empty", got)
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	w := httptest.NewRecorder()
	if _, ok := parseBody(w, newRequest(body, "application/json")); ok {
		t.Fatal("parseBody accepted an oversized body")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestFieldReader(t *testing.T) {
	p := NewRequestBodyParser(newRequest(`{"amount":"0","date":"2024-02-30","type":"despesa","accountId":"cash","other":"12"}`, "application/json"))
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	f := p.Fields()

	_ = f.Amount("amount")
	_ = f.Date("date")
	if kind := f.Kind("type"); kind != core.Expense {
		t.Errorf("Kind() = %q, want expense", kind)
	}
	if ref := f.AccountRef("accountId"); !ref.IsCash() {
		t.Errorf("AccountRef(cash) = %v, want cash", ref)
	}
	if ref := f.AccountRef("other"); ref.String() != "12" {
		t.Errorf("AccountRef(12) = %v", ref)
	}
	if ref := f.AccountRef("absent"); !ref.IsCash() {
		t.Errorf("AccountRef(absent) = %v, want cash", ref)
	}

	v, ok := core.AsValidation(f.Err())
	if !ok {
		t.Fatalf("Err() = %v, want validation errors", f.Err())
	}
	fields := v.Fields()
	for _, key := range []string{"amount", "date"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing error for %q in %v", key, fields)
		}
	}
	if _, ok := fields["type"]; ok {
		t.Errorf("unexpected error for type: %v", fields)
	}
}

func TestFieldReader_Balance(t *testing.T) {
	tests := []struct {
		body    string
		want    core.Money
		wantErr bool
	}{
		{body: `{}`, want: core.Money{}},
		{body: `{"balance":""}`, want: core.Money{}},
		{body: `{"balance":"0,00"}`, want: core.Money{}},
		{body: `{"balance":0}`, want: core.Money{}},
		{body: `{"balance":"R$ 1.234,56"}`, want: core.Cents(123456)},
		{body: `{"balance":250.5}`, want: core.Cents(25050)},
		{body: `{"balance":"-10"}`, wantErr: true},
		{body: `{"balance":"dez"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			p := NewRequestBodyParser(newRequest(tt.body, "application/json"))
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			f := p.Fields()
			got := f.Balance("balance")
			if (f.Err() != nil) != tt.wantErr {
				t.Fatalf("Err() = %v, wantErr %v", f.Err(), tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("Balance() = %s, want %s", got.StringFixed(2), tt.want.StringFixed(2))
			}
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      string
		wantField string
	}{
		{name: "empty", query: "", want: "||"},
		{name: "all", query: "type=all&category=all", want: "||"},
		{name: "full", query: "q=mercado&type=income&category=salary&month=2024-03", want: "income|salary|2024-03"},
		{name: "bad type", query: "type=gift", wantField: "type"},
		{name: "bad month", query: "month=2024-3", wantField: "month"},
		{name: "month 13", query: "month=2024-13", wantField: "month"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			f, err := ParseTransactionFilter(values)
			if tt.wantField != "" {
				v, ok := core.AsValidation(err)
				if !ok {
					t.Fatalf("err = %v, want validation error", err)
				}
				if _, ok := v.Fields()[tt.wantField]; !ok {
					t.Errorf("fields = %v, want %q", v.Fields(), tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := string(f.Kind) + "|" + string(f.Category) + "|" + f.Month
			if got != tt.want {
				t.Errorf("filter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
