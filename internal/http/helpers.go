package http

import (
	"net/http"
	"strings"

	"github.com/GMosna/ContabilApp/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func accountIDParam(r *http.Request) core.AccountID {
	return core.AccountID(strings.TrimSpace(r.PathValue("id")))
}

func transactionIDParam(r *http.Request) core.TransactionID {
	return core.TransactionID(strings.TrimSpace(r.PathValue("id")))
}

func transactionTypeIDParam(r *http.Request) core.TransactionTypeID {
	return core.TransactionTypeID(strings.TrimSpace(r.PathValue("id")))
}

// mutating reports whether r changes data; only those are rate limited.
func mutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
