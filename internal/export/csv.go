// Package export renders the activity timeline as CSV text for the
// external save/share action.
package export

import (
	"sort"
	"strconv"
	"strings"

	"spendy/internal/model"
)

const header = "start_time,end_time,app_name,window_title,url,website_host,duration_seconds"

// Timestamps render as ISO-8601 with fractional seconds, in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timeline renders the sessions in ascending start order, one header
// row plus one row per session. Absent optional fields render as the
// empty string.
func Timeline(sessions []model.Session) string {
	sorted := make([]model.Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var b strings.Builder
	b.WriteString(header)
	for _, s := range sorted {
		b.WriteByte('\n')
		b.WriteString(s.Start.UTC().Format(timeLayout))
		b.WriteByte(',')
		b.WriteString(s.End.UTC().Format(timeLayout))
		b.WriteByte(',')
		b.WriteString(escape(s.AppName))
		b.WriteByte(',')
		b.WriteString(escape(deref(s.WindowTitle)))
		b.WriteByte(',')
		b.WriteString(escape(deref(s.URL)))
		b.WriteByte(',')
		b.WriteString(escape(deref(s.WebsiteHost)))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(s.Duration().Seconds(), 'f', 0, 64))
	}
	return b.String()
}

// escape wraps a field in double quotes when it contains a comma,
// quote, or newline, doubling any internal quotes.
func escape(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
