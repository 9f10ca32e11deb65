package api

import (
	"testing"
	"time"
)

func TestFormatDateTimeIn(t *testing.T) {
	t.Parallel()

	seoul := time.FixedZone("KST", 9*3600)
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"2025-03-04T05:06:07Z", "2025.03.04 14:06"},
		{"2025-03-04T05:06:07.123456+09:00", "2025.03.04 05:06"},
		{"2025-12-31T23:59:00", "2025.12.31 23:59"},
		{"2025-12-31T23:59:00.5", "2025.12.31 23:59"},
		{"2025-01-02", "2025.01.02 00:00"},
		{"not a date", dateError},
		{"2025-13-40T00:00:00Z", dateError},
	}
	for _, tc := range cases {
		if got := formatDateTimeIn(tc.in, seoul); got != tc.want {
			t.Fatalf("formatDateTimeIn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
