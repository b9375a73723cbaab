package entity

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Flag is a boolean stored and transmitted as 0/1.
type Flag bool

// MarshalJSON encodes the flag as 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1, true/false, their quoted forms and null.
// Any other number is an error.
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	s = strings.Trim(s, `"`)
	v, err := parseFlag(s)
	if err != nil {
		return fmt.Errorf("flag %s: %w", string(b), err)
	}
	*f = v
	return nil
}

// Value implements driver.Valuer.
func (f Flag) Value() (driver.Value, error) {
	if f {
		return int64(1), nil
	}
	return int64(0), nil
}

// Scan implements sql.Scanner.
func (f *Flag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case int64:
		*f = v != 0
	case bool:
		*f = Flag(v)
	case []byte:
		return f.scanString(string(v))
	case string:
		return f.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Flag", src)
	}
	return nil
}

func (f *Flag) scanString(s string) error {
	v, err := parseFlag(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func parseFlag(s string) (Flag, error) {
	switch strings.ToLower(s) {
	case "", "null", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	}
	// numeric spellings such as 1.0 or 0e0 are fine as long as they are 0 or 1
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || (n != 0 && n != 1) {
		return false, fmt.Errorf("not a boolean: %q", s)
	}
	return n == 1, nil
}
