package notification

import (
	"fmt"
	"strings"
	"time"
)

const messageDateLayout = "Jan 2, 2006"

func ongoingMessage(title, location string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event \"%s\" is ongoing", title)
	appendLocation(&b, location)
	return b.String()
}

func startingMessage(title string, n int64, unit, date, location string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event \"%s\" starts in %s", title, plural(n, unit))
	if date != "" {
		fmt.Fprintf(&b, " (%s)", date)
	}
	appendLocation(&b, location)
	return b.String()
}

func upcomingMessage(title string, days int64, date, location string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event \"%s\" takes place in %s (%s)", title, plural(days, "day"), date)
	appendLocation(&b, location)
	return b.String()
}

func appendLocation(b *strings.Builder, location string) {
	if location = strings.TrimSpace(location); location != "" {
		b.WriteString(" at ")
		b.WriteString(location)
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatDate(t time.Time) string {
	return t.Format(messageDateLayout)
}
