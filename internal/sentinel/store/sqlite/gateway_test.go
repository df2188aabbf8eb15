package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

var t0 = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func deniedEvent(id string, at time.Time) types.AccessEvent {
	return types.AccessEvent{
		ID:         id,
		Timestamp:  at,
		UserID:     types.UnknownUserID,
		UserName:   types.UnknownUserName,
		Department: types.UnknownDepartment,
		DeviceID:   "dev-main",
		DeviceName: "Main Entrance",
		Method:     types.MethodCard,
		Status:     types.StatusDenied,
		Detail:     "Invalid credentials or unauthorized biometric profile",
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Logs
// ═══════════════════════════════════════════════════════════════════════════

func TestSaveLog_RoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ev := deniedEvent("evt-1", t0)
	ev.NotificationSent = true
	ev.Detail += " [Email Sent to sec@example.com]"
	require.NoError(t, s.SaveLog(ctx, ev))

	got, err := s.AllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

func TestSaveLog_DuplicateIDIsNoOp(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	first := deniedEvent("evt-1", t0)
	require.NoError(t, s.SaveLog(ctx, first))

	second := first
	second.Detail = "overwritten?"
	assert.ErrorIs(t, s.SaveLog(ctx, second), store.ErrDuplicate)

	got, err := s.AllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.Detail, got[0].Detail)
}

func TestAllLogs_NewestFirst(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLog(ctx, deniedEvent("a", t0)))
	require.NoError(t, s.SaveLog(ctx, deniedEvent("c", t0.Add(time.Minute))))
	require.NoError(t, s.SaveLog(ctx, deniedEvent("b", t0.Add(time.Minute))))

	got, err := s.AllLogs(ctx)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, ev := range got {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestAllLogs_SkipsMalformedRows(t *testing.T) {
	s, conn, skipped := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLog(ctx, deniedEvent("good", t0)))

	_, err := conn.ExecContext(ctx, `
INSERT INTO access_logs(id, occurred_at_ms, user_id, device_id, method, status, stored_at_ms)
VALUES ('bad-status', ?, 'u1', 'dev-main', 'FACE', 'MAYBE', ?),
       ('bad-method', ?, 'u1', 'dev-main', 'IRIS', 'GRANTED', ?),
       ('no-device',  ?, 'u1', NULL, 'FACE', 'GRANTED', ?);`,
		t0.UnixMilli(), t0.UnixMilli(),
		t0.UnixMilli(), t0.UnixMilli(),
		t0.UnixMilli(), t0.UnixMilli(),
	)
	require.NoError(t, err)

	got, err := s.AllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
	assert.Equal(t, 3, skipped["access_logs"])
}

// ═══════════════════════════════════════════════════════════════════════════
// Users
// ═══════════════════════════════════════════════════════════════════════════

func TestSaveUser_UpsertKeepsEnrollment(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	u := types.User{
		ID:             "u-1",
		Name:           "Alice",
		Department:     "Ops",
		PrimaryMethod:  types.MethodFingerprint,
		EnrollmentDate: t0,
		SyncStatus:     types.SyncPending,
	}
	require.NoError(t, s.SaveUser(ctx, u))

	u.EnrollmentDate = time.Time{}
	u.SyncStatus = types.SyncSynced
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.AllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.SyncSynced, got[0].SyncStatus)
	assert.True(t, got[0].EnrollmentDate.Equal(t0))
}

func TestDeleteUser(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, types.User{ID: "u-1", Name: "A", PrimaryMethod: types.MethodFace}))
	require.NoError(t, s.DeleteUser(ctx, "u-1"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "u-1"), store.ErrNotFound)

	got, err := s.AllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ═══════════════════════════════════════════════════════════════════════════
// Devices
// ═══════════════════════════════════════════════════════════════════════════

func TestMarkDeviceSeen_UnknownDevice(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.MarkDeviceSeen(context.Background(), "ghost", t0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPresence_OnlineThenOffline(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1", Name: "Door 1", Port: "4370"}))
	require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d2", Name: "Door 2", Port: "4370"}))

	require.NoError(t, s.MarkDeviceSeen(ctx, "d1", t0))
	require.NoError(t, s.MarkDeviceSeen(ctx, "d2", t0.Add(5*time.Minute)))

	n, err := s.MarkDevicesOfflineBefore(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.AllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.DeviceOffline, got[0].Status)
	assert.Equal(t, types.DeviceOnline, got[1].Status)
	require.NotNil(t, got[0].LastSeen)
	assert.True(t, got[0].LastSeen.Equal(t0))
}

// ═══════════════════════════════════════════════════════════════════════════
// Settings
// ═══════════════════════════════════════════════════════════════════════════

func TestSettings_AbsentThenSaved(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.Settings(ctx, types.SettingsKeyNotifications)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := types.DefaultNotificationSettings()
	want.Email = "soc@example.com"
	want.SMTP.Host = "smtp.example.com"
	require.NoError(t, s.SaveSettings(ctx, types.SettingsKeyNotifications, want))

	got, err = s.Settings(ctx, types.SettingsKeyNotifications)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestSettings_CorruptValueFallsBack(t *testing.T) {
	s, conn, skipped := newTestStore(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx,
		`INSERT INTO settings(key, value, updated_at_ms) VALUES ('notifications', '{not json', 0);`)
	require.NoError(t, err)

	got, err := s.Settings(ctx, types.SettingsKeyNotifications)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, skipped["settings"])
}
