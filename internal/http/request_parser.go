// Package http serves the JSON API used by the ContabilApp pages.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded; handlers read them by key and get typed
// values with one validation error per bad field.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Has reports whether key was sent at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string. Nested objects are
// read through their "id", so {"account": {"id": 3}} reads as "3".
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		return stringValue(val["id"])
	default:
		return ""
	}
}

// FieldReader reads typed values and collects one error per bad field.
type FieldReader struct {
	p    *RequestBodyParser
	errs core.ValidationErrors
}

func (p *RequestBodyParser) Fields() *FieldReader {
	return &FieldReader{p: p}
}

func (f *FieldReader) String(key string) string {
	return f.p.Get(key)
}

// Amount parses a positive amount in either decimal notation.
func (f *FieldReader) Amount(key string) core.Money {
	m, err := core.ParseAmount(f.p.Get(key))
	if err != nil {
		f.errs = f.errs.Add(key, err)
	}
	return m
}

// Balance parses an optional opening balance. Missing and zero values read as
// zero; anything else must be a valid amount.
func (f *FieldReader) Balance(key string) core.Money {
	v := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(f.p.Get(key)), "R$"))
	if strings.Trim(v, "0.,") == "" {
		return core.Money{}
	}
	m, err := core.ParseAmount(v)
	if err != nil {
		f.errs = f.errs.Add(key, err)
	}
	return m
}

// Date parses a YYYY-MM-DD date. Missing dates are left to domain validation.
func (f *FieldReader) Date(key string) core.Date {
	v := f.p.Get(key)
	if v == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(v)
	if err != nil {
		f.errs = f.errs.Add(key, err)
	}
	return d
}

func (f *FieldReader) Kind(key string) core.Kind {
	k, err := core.ParseKind(f.p.Get(key))
	if err != nil {
		f.errs = f.errs.Add(key, core.ErrInvalidKind)
	}
	return k
}

// AccountRef reads an account id; empty, "cash" and null mean cash.
func (f *FieldReader) AccountRef(key string) core.AccountRef {
	v := f.p.Get(key)
	if v == "" || strings.EqualFold(v, core.CashAccount) {
		return core.Cash
	}
	return core.RefTo(core.AccountID(v))
}

// Err returns the collected errors as core.ValidationErrors, or nil.
func (f *FieldReader) Err() error {
	return f.errs.Err()
}

// parseBody reads and parses the request body, answering 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Requisição muito grande.").Write(w)
			return nil, false
		}
		BadRequestError("Formato de requisição inválido.").Write(w)
		return nil, false
	}
	return p, true
}

// ParseTransactionFilter reads the filters of the transactions page:
// q (search), type, category and month (YYYY-MM).
func ParseTransactionFilter(query url.Values) (ledger.TransactionFilter, error) {
	var errs core.ValidationErrors
	f := ledger.TransactionFilter{
		Search:   sanitizeInput(query.Get("q")),
		Category: core.CategoryID(strings.TrimSpace(query.Get("category"))),
		Month:    strings.TrimSpace(query.Get("month")),
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" && v != "all" {
		kind, err := core.ParseKind(v)
		if err != nil {
			errs = errs.Add("type", core.ErrInvalidKind)
		}
		f.Kind = kind
	}
	if f.Category == "all" {
		f.Category = ""
	}
	if f.Month != "" && !validMonth(f.Month) {
		errs = errs.Add("month", core.ErrInvalidMonth)
	}
	return f, errs.Err()
}

// validMonth accepts "YYYY-MM".
func validMonth(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1900 {
		return false
	}
	month, err := strconv.Atoi(s[5:])
	return err == nil && month >= 1 && month <= 12
}
