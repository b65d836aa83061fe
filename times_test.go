package gtfs

import "testing"

func TestParseTime(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want Time
	}{
		{"00:00:00", 0},
		{"04:05:06", 4*3600 + 5*60 + 6},
		{"4:05:06", 4*3600 + 5*60 + 6},
		{"25:30:00", 25*3600 + 30*60},
		{"04:05", 4*3600 + 5*60},
		{"3661", 3661},
		{"107:10:00", 107*3600 + 10*60},
	} {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseTime(tc.raw)
			if err != nil {
				t.Fatalf("ParseTime(%q) returned error %s", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("ParseTime(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseTimeErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"abc",
		"1:2:3:4",
		"-01:00:00",
		"01:-02:00",
		"01:xx:00",
		"9999999:00:00",
		"99999999999",
		"99999999999999999999:00:00",
	} {
		t.Run(raw, func(t *testing.T) {
			if _, err := ParseTime(raw); err == nil {
				t.Errorf("ParseTime(%q) returned no error", raw)
			}
		})
	}
}

func TestTimeString(t *testing.T) {
	for _, tc := range []struct {
		time Time
		want string
	}{
		{0, "00:00:00"},
		{4*3600 + 5*60 + 6, "04:05:06"},
		{25*3600 + 30*60, "25:30:00"},
		{107 * 3600, "107:00:00"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got := tc.time.String(); got != tc.want {
				t.Errorf("Time(%d).String() = %q, want %q", tc.time, got, tc.want)
			}
		})
	}
}

func TestTimeRoundTrip(t *testing.T) {
	for _, raw := range []string{"00:00:00", "09:30:15", "24:00:00", "25:30:00"} {
		parsed, err := ParseTime(raw)
		if err != nil {
			t.Fatalf("ParseTime(%q) returned error %s", raw, err)
		}
		if got := parsed.String(); got != raw {
			t.Errorf("ParseTime(%q).String() = %q", raw, got)
		}
	}
}
