package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

const defaultFrom = "sentinel@localhost"

// Compose renders the notification for ev.
func Compose(ev types.AccessEvent, settings types.NotificationSettings) Message {
	from := settings.SMTP.From
	if from == "" {
		from = defaultFrom
	}

	subject := fmt.Sprintf("[Sentinel] Access %s at %s", ev.Status, ev.DeviceLabel())
	if ev.Status == types.StatusDenied {
		subject = fmt.Sprintf("[Sentinel] BREACH ALERT: access denied at %s", ev.DeviceLabel())
	}
	subject = singleLine(subject)

	var b strings.Builder
	fmt.Fprintf(&b, "Event:      %s\n", ev.ID)
	fmt.Fprintf(&b, "Time:       %s\n", ev.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Status:     %s\n", ev.Status)
	fmt.Fprintf(&b, "User:       %s (%s)\n", ev.UserName, ev.UserID)
	fmt.Fprintf(&b, "Department: %s\n", ev.Department)
	fmt.Fprintf(&b, "Device:     %s\n", ev.DeviceLabel())
	fmt.Fprintf(&b, "Method:     %s\n", ev.Method)
	if ev.Detail != "" {
		fmt.Fprintf(&b, "Notes:      %s\n", ev.Detail)
	}

	return Message{
		To:      settings.Email,
		From:    from,
		Subject: subject,
		Body:    b.String(),
	}
}

// singleLine replaces control characters so a device or user name cannot
// break out of a header.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
