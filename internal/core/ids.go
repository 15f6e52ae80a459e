package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when an identifier on the wire is neither a
// non-empty string nor a non-negative integer.
var ErrInvalidID = errors.New("invalid identifier")

type (
	AccountID         string
	TransactionID     string
	CategoryID        string
	TransactionTypeID string
	UserID            string
)

func (id AccountID) String() string         { return string(id) }
func (id TransactionID) String() string     { return string(id) }
func (id CategoryID) String() string        { return string(id) }
func (id TransactionTypeID) String() string { return string(id) }
func (id UserID) String() string            { return string(id) }

// IsLocal reports whether the transaction was created offline and has not
// been assigned a backend identifier yet.
func (id TransactionID) IsLocal() bool { return strings.HasPrefix(string(id), LocalIDPrefix) }

// LocalIDPrefix marks identifiers generated on this side before the backend confirmed the entity.
const LocalIDPrefix = "local-"

func (id AccountID) MarshalJSON() ([]byte, error)         { return marshalID(string(id)) }
func (id TransactionID) MarshalJSON() ([]byte, error)     { return marshalID(string(id)) }
func (id CategoryID) MarshalJSON() ([]byte, error)        { return marshalID(string(id)) }
func (id TransactionTypeID) MarshalJSON() ([]byte, error) { return marshalID(string(id)) }
func (id UserID) MarshalJSON() ([]byte, error)            { return marshalID(string(id)) }

func (id *AccountID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	*id = AccountID(s)
	return err
}

func (id *TransactionID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	*id = TransactionID(s)
	return err
}

func (id *CategoryID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	*id = CategoryID(s)
	return err
}

func (id *TransactionTypeID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	*id = TransactionTypeID(s)
	return err
}

func (id *UserID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalID(b)
	*id = UserID(s)
	return err
}

// marshalID writes numeric identifiers as JSON numbers, which is what the
// backend's Long columns expect, and everything else as strings.
func marshalID(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// unmarshalID normalizes a JSON string or integer to its string form.
func unmarshalID(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("%w: empty string", ErrInvalidID)
		}
		return s, nil
	}
	if _, err := strconv.ParseUint(string(b), 10, 64); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	return string(b), nil
}
