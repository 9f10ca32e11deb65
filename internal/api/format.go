package api

import (
	"fmt"
	"time"
)

// dateError is shown in place of a timestamp the server sent in an unknown format.
const dateError = "날짜 오류"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatDateTime renders an ISO-8601 timestamp as "YYYY.MM.DD HH:mm" in local time.
// Timestamps without a zone are taken as local, like a browser does.
func FormatDateTime(iso string) string {
	return formatDateTimeIn(iso, time.Local)
}

func formatDateTimeIn(iso string, loc *time.Location) string {
	if iso == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, iso, loc)
		if err != nil {
			continue
		}
		t = t.In(loc)
		return fmt.Sprintf("%04d.%02d.%02d %02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute())
	}
	return dateError
}
