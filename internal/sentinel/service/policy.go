package service

import (
	"strings"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Decision is the notification verdict for one event.
type Decision struct {
	Notify bool
	// Detail is the event detail as it should be stored: annotated with the
	// notification marker when Notify is true, unchanged otherwise.
	Detail string
}

// NotificationMarker is appended to the detail of every notified event.
func NotificationMarker(email string) string {
	return "[Email Sent to " + email + "]"
}

// Evaluate decides whether ev warrants a notification under settings. It has
// no side effects; evaluating an already annotated event yields the same
// detail again.
func Evaluate(ev types.AccessEvent, settings types.NotificationSettings) Decision {
	d := Decision{Detail: ev.Detail}
	if !settings.Enabled {
		return d
	}

	switch ev.Status {
	case types.StatusGranted:
		d.Notify = settings.NotifyOnGranted
	case types.StatusDenied:
		d.Notify = settings.NotifyOnDenied
	default:
		return d
	}

	if d.Notify {
		d.Detail = annotate(ev.Detail, NotificationMarker(settings.Email))
	}
	return d
}

func annotate(detail, marker string) string {
	switch {
	case detail == "":
		return marker
	case strings.HasSuffix(detail, marker):
		return detail
	default:
		return detail + " " + marker
	}
}

// Apply copies the decision onto ev. NotificationSent always mirrors
// Notify; Detail is only rewritten when a notification goes out.
func (d Decision) Apply(ev *types.AccessEvent) {
	ev.NotificationSent = d.Notify
	if d.Notify {
		ev.Detail = d.Detail
	}
}
