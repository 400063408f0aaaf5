package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bft-labs/obsrelay/internal/domain"
)

// Args are the positional arguments of a call, kept as raw JSON until an
// operation asks for a typed value.
type Args []json.RawMessage

// ArgsOf marshals plain Go values into Args. Handy for in-process callers.
func ArgsOf(values ...any) (Args, error) {
	out := make(Args, 0, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d: %w", domain.ErrInvalidArgument, i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Present reports whether argument i exists and is not JSON null.
func (a Args) Present(i int) bool {
	return i < len(a) && len(a[i]) > 0 && !bytes.Equal(bytes.TrimSpace(a[i]), []byte("null"))
}

// Decode unmarshals argument i into v.
func (a Args) Decode(i int, v any) error {
	if i >= len(a) {
		return fmt.Errorf("%w: argument %d missing", domain.ErrInvalidArgument, i)
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("%w: argument %d: %w", domain.ErrInvalidArgument, i, err)
	}
	return nil
}

// String returns argument i as a non-empty string. Numbers are accepted and
// formatted, since browser clients often send ids as numbers.
func (a Args) String(i int) (string, error) {
	if !a.Present(i) {
		return "", fmt.Errorf("%w: argument %d missing", domain.ErrInvalidArgument, i)
	}
	var s string
	if err := json.Unmarshal(a[i], &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: argument %d is empty", domain.ErrInvalidArgument, i)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(a[i], &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: argument %d is not a string", domain.ErrInvalidArgument, i)
}

// Float returns argument i as a number. Numeric strings are accepted.
func (a Args) Float(i int) (float64, error) {
	if !a.Present(i) {
		return 0, fmt.Errorf("%w: argument %d missing", domain.ErrInvalidArgument, i)
	}
	var f float64
	if err := json.Unmarshal(a[i], &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(a[i], &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: argument %d is not a number", domain.ErrInvalidArgument, i)
}

// Int returns argument i as an integer.
func (a Args) Int(i int) (int, error) {
	f, err := a.Float(i)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: argument %d is not an integer", domain.ErrInvalidArgument, i)
	}
	return int(f), nil
}

// Bool returns argument i as a boolean. "true"/"false" strings are accepted.
func (a Args) Bool(i int) (bool, error) {
	if !a.Present(i) {
		return false, fmt.Errorf("%w: argument %d missing", domain.ErrInvalidArgument, i)
	}
	var b bool
	if err := json.Unmarshal(a[i], &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(a[i], &s); err == nil {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: argument %d is not a boolean", domain.ErrInvalidArgument, i)
}

// IntOr returns argument i as an integer, or def when it is absent.
func (a Args) IntOr(i, def int) (int, error) {
	if !a.Present(i) {
		return def, nil
	}
	return a.Int(i)
}
