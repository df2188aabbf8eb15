package types

// SettingsKeyNotifications is the settings row holding NotificationSettings.
const SettingsKeyNotifications = "notifications"

type SMTPRelay struct {
	Host string `json:"host" validate:"omitempty,hostname|ip"`
	Port string `json:"port" validate:"omitempty,numeric"`
	User string `json:"user"`
	Pass string `json:"pass"`
	From string `json:"from" validate:"omitempty,email"`
}

type NotificationSettings struct {
	Email           string    `json:"email" validate:"omitempty,email"`
	NotifyOnGranted bool      `json:"notify_on_granted"`
	NotifyOnDenied  bool      `json:"notify_on_denied"`
	Enabled         bool      `json:"enabled"`
	SMTP            SMTPRelay `json:"smtp"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Email:           "admin@datacenter.net",
		NotifyOnGranted: true,
		NotifyOnDenied:  true,
		Enabled:         true,
		SMTP:            SMTPRelay{Port: "587"},
	}
}

// RedactedSecret replaces stored secrets in presentation copies.
const RedactedSecret = "********"

// Redacted returns a copy safe to hand to the presentation layer.
func (s NotificationSettings) Redacted() NotificationSettings {
	if s.SMTP.Pass != "" {
		s.SMTP.Pass = RedactedSecret
	}
	return s
}
