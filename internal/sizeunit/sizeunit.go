package sizeunit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Unit is a power-of-1024 multiplier identified by its suffix letter.
type Unit int

const (
	Bytes Unit = iota
	KiB
	MiB
	GiB
)

// ErrInvalidSize reports a size string that cannot be interpreted.
var ErrInvalidSize = errors.New("invalid size")

var suffixes = [...]string{"b", "k", "m", "g"}

// Suffix returns the single-letter suffix for the unit.
func (u Unit) Suffix() string {
	if u < Bytes || u > GiB {
		return "b"
	}
	return suffixes[u]
}

// Multiplier returns the number of bytes in one unit.
func (u Unit) Multiplier() int64 {
	if u < Bytes || u > GiB {
		return 1
	}
	return int64(1) << (10 * uint(u))
}

func (u Unit) String() string {
	return strings.ToUpper(u.Suffix())
}

// UnitFromSuffix maps a suffix letter (case insensitive) to its unit.
func UnitFromSuffix(s string) (Unit, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for i, suffix := range suffixes {
		if lower == suffix {
			return Unit(i), true
		}
	}
	return Bytes, false
}

// Size is a parsed byte count that remembers the unit it was written in so
// logs can echo values back the way the operator configured them.
type Size struct {
	Bytes int64
	Unit  Unit
}

// Parse interprets values such as "100G", "8192m", "1.5k" or "512".
// A missing suffix means bytes. Fractional values are truncated to whole bytes.
func Parse(value string) (Size, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Size{}, fmt.Errorf("%w: empty value", ErrInvalidSize)
	}

	unit := Bytes
	number := trimmed
	last := trimmed[len(trimmed)-1:]
	if u, ok := UnitFromSuffix(last); ok {
		unit = u
		number = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}
	if number == "" {
		return Size{}, fmt.Errorf("%w: %q has no number", ErrInvalidSize, value)
	}

	n, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return Size{}, fmt.Errorf("%w: %q must be a non-negative number", ErrInvalidSize, value)
	}
	bytes := n * float64(unit.Multiplier())
	if bytes >= math.MaxInt64 {
		return Size{}, fmt.Errorf("%w: %q overflows", ErrInvalidSize, value)
	}
	return Size{Bytes: int64(bytes), Unit: unit}, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(value string) Size {
	size, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return size
}

// String renders the size in its own unit, e.g. "100G".
func (s Size) String() string {
	return Format(s.Bytes, s.Unit)
}

// Convert expresses bytes as a (possibly fractional) count of unit.
func Convert(bytes int64, unit Unit) float64 {
	return float64(bytes) / float64(unit.Multiplier())
}

// Format renders bytes in the given unit with at most two decimals and the
// unit suffix, dropping trailing zeros ("1.5G", "3000B").
func Format(bytes int64, unit Unit) string {
	value := strconv.FormatFloat(Convert(bytes, unit), 'f', 2, 64)
	value = strings.TrimRight(strings.TrimRight(value, "0"), ".")
	return value + unit.String()
}

// Human renders bytes using IEC units for display ("1.5 GiB").
func Human(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}
