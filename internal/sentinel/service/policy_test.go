package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

func policyEvent(status types.Status, detail string) types.AccessEvent {
	return types.AccessEvent{ID: "e1", Status: status, Detail: detail, DeviceID: "dev-a"}
}

func TestEvaluate_DisabledNeverNotifies(t *testing.T) {
	s := types.DefaultNotificationSettings()
	s.Enabled = false

	for _, st := range []types.Status{types.StatusGranted, types.StatusDenied} {
		d := service.Evaluate(policyEvent(st, "x"), s)
		assert.False(t, d.Notify, st)
		assert.Equal(t, "x", d.Detail, st)
	}
}

func TestEvaluate_Triggers(t *testing.T) {
	cases := []struct {
		name             string
		onGranted, onDen bool
		status           types.Status
		want             bool
	}{
		{"denied on", false, true, types.StatusDenied, true},
		{"denied off", true, false, types.StatusDenied, false},
		{"granted on", true, false, types.StatusGranted, true},
		{"granted off", false, true, types.StatusGranted, false},
		{"both off", false, false, types.StatusDenied, false},
		{"unknown status", true, true, types.Status("MAYBE"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := types.DefaultNotificationSettings()
			s.NotifyOnGranted, s.NotifyOnDenied = tc.onGranted, tc.onDen
			assert.Equal(t, tc.want, service.Evaluate(policyEvent(tc.status, "d"), s).Notify)
		})
	}
}

func TestEvaluate_Annotation(t *testing.T) {
	s := types.DefaultNotificationSettings()
	s.Email = "soc@example.com"

	d := service.Evaluate(policyEvent(types.StatusDenied, "Bad card"), s)
	assert.Equal(t, "Bad card [Email Sent to soc@example.com]", d.Detail)

	d = service.Evaluate(policyEvent(types.StatusDenied, ""), s)
	assert.Equal(t, "[Email Sent to soc@example.com]", d.Detail)
}

func TestEvaluate_PureAndIdempotent(t *testing.T) {
	s := types.DefaultNotificationSettings()
	ev := policyEvent(types.StatusDenied, "Bad card")

	first := service.Evaluate(ev, s)
	assert.Equal(t, first, service.Evaluate(ev, s))
	assert.Equal(t, "Bad card", ev.Detail)

	first.Apply(&ev)
	again := service.Evaluate(ev, s)
	assert.Equal(t, first.Detail, again.Detail)
}

func TestDecision_Apply(t *testing.T) {
	ev := policyEvent(types.StatusGranted, "ok")
	service.Decision{Notify: false, Detail: "ignored"}.Apply(&ev)
	assert.False(t, ev.NotificationSent)
	assert.Equal(t, "ok", ev.Detail)

	service.Decision{Notify: true, Detail: "ok [Email Sent to a@b.c]"}.Apply(&ev)
	assert.True(t, ev.NotificationSent)
	assert.Equal(t, "ok [Email Sent to a@b.c]", ev.Detail)
}

func TestDecision_ApplyClearsStaleFlag(t *testing.T) {
	ev := policyEvent(types.StatusGranted, "ok")
	ev.NotificationSent = true
	service.Decision{Notify: false}.Apply(&ev)
	assert.False(t, ev.NotificationSent)
	assert.Equal(t, "ok", ev.Detail)
}
