package gtfs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Time is a GTFS clock value: a non-negative number of seconds measured
// from notional midnight. Because GTFS times describe a service day
// rather than a wall clock, values past 24:00:00 are legal; a trip that
// leaves before midnight may arrive at 25:30:00.
type Time int32

// ParseTime parses the three textual forms GTFS feeds use for clock
// values: HH:MM:SS, HH:MM, or a bare number of seconds. The hour may
// exceed 23. Negative values are rejected.
func ParseTime(raw string) (Time, error) {
	parts := strings.Split(raw, ":")
	var multipliers []int64
	switch len(parts) {
	case 1:
		multipliers = []int64{1}
	case 2:
		multipliers = []int64{3600, 60}
	case 3:
		multipliers = []int64{3600, 60, 1}
	default:
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	var total int64
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative time %q", raw)
		}
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("time %q out of range", raw)
		}
		total += n * multipliers[i]
	}
	if total > math.MaxInt32 {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return Time(total), nil
}

// String formats the time as zero-padded HH:MM:SS. Hours past 23 are
// preserved, so 25:30:00 round-trips.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t/3600, (t/60)%60, t%60)
}
