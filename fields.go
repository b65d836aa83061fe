package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// This file holds the cell-level converters between textual GTFS values
// and typed domain values. Each converter has a parse and a format half;
// the schema registry wires them to columns.

// Decimal is a fixed-point value that remembers exactly how it was
// written in the feed, so that a price of "1.25" exports as "1.25" and
// not "1.2500". Comparison is numeric.
type Decimal struct {
	Raw   string
	Value float64
}

func ParseDecimal(raw string) (Decimal, error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q", raw)
	}
	return Decimal{Raw: raw, Value: v}, nil
}

func (d Decimal) String() string {
	return d.Raw
}

func (d Decimal) Equal(other Decimal) bool {
	return d.Value == other.Value
}

const dateLayout = "20060102"

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func parseBool(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "1":
		return true, nil
	case "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}

func parseOptionalInt(raw string) (*int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := parseInt(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatOptionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func parseOptionalFloat(raw string) (*float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// parseCoordinate parses one half of a (lon, lat) pair. Real-world feeds
// sometimes write coordinates with a leading '+'.
func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "+")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q", raw)
	}
	return f, nil
}

func parseOptionalTime(raw string) (*Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := ParseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalTime(t *Time) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// naturalKey normalises a reference cell. A string containing only
// whitespace is treated as empty, which real-world feeds require.
func naturalKey(raw string) string {
	return strings.TrimSpace(raw)
}
