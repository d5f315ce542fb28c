// Package booking implements the booking widget's selection state machine:
// service picking, date and time picking, and construction of the invoice
// request sent when the user books.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/booking-widget/internal/catalog"
)

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Clock supplies the current time used for relative date labels.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// FormatTime returns the leading HH:MM of an ISO time. Shorter input is
// returned unchanged.
func FormatTime(t string) string {
	if len(t) < 5 {
		return t
	}
	return t[:5]
}

// FormatDate labels an ISO date as "today", "tomorrow" or "<Month>, <day>"
// relative to the calendar date of now. Input whose month cannot be read is
// returned unchanged.
func FormatDate(date string, now time.Time) string {
	if date == now.Format(catalog.DateLayout) {
		return "today"
	}
	if date == now.AddDate(0, 0, 1).Format(catalog.DateLayout) {
		return "tomorrow"
	}
	parts := strings.SplitN(date, "-", 3)
	if len(parts) != 3 {
		return date
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return date
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s, %d", monthNames[month-1], day)
}
