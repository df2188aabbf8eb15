package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/aggregate"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

type MonitorConfig struct {
	Generator *Generator
	Notifier  NotificationSink
	Sinks     []EventSink
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// SyncReport summarises one manual sync.
type SyncReport struct {
	Requested   int                     `json:"requested"`
	Processed   int                     `json:"processed"`
	UsersSynced int                     `json:"users_synced"`
	Results     []types.ProcessedResult `json:"results"`
}

// Monitor owns the engine state: the aggregation store, the current
// notification settings and the device/user directory.
type Monitor struct {
	gw        store.Gateway
	gen       *Generator
	agg       *aggregate.Store
	processor *Processor
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	settings types.NotificationSettings
	devices  []types.Device
	users    []types.User

	syncing atomic.Bool
	bg      sync.WaitGroup
}

func NewMonitor(gw store.Gateway, cfg MonitorConfig) *Monitor {
	if cfg.Generator == nil {
		cfg.Generator = NewGenerator()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}

	m := &Monitor{
		gw:       gw,
		gen:      cfg.Generator,
		agg:      aggregate.NewStore(),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		settings: types.DefaultNotificationSettings(),
	}
	m.processor = NewProcessor(ProcessorConfig{
		Logs:        gw,
		Aggregate:   m.agg,
		Settings:    m.Settings,
		ActiveUsers: m.activeUsers,
		Notifier:    cfg.Notifier,
		Sinks:       cfg.Sinks,
		Clock:       cfg.Generator.Now,
		Logger:      cfg.Logger.Named("processor"),
		Metrics:     cfg.Metrics,
	})
	return m
}

// ── Loading ──────────────────────────────────────────────────────────────────

// Init loads settings, directory and logs from the gateway and rebuilds the
// aggregates. It runs between passes, after pending writes are retried, so
// the loaded logs cover every event already applied. On error the previous
// state is kept and the error returned; the server can keep running and
// retry with Resync.
func (m *Monitor) Init(ctx context.Context) error {
	return m.processor.Exclusive(ctx, m.load)
}

func (m *Monitor) load(ctx context.Context) error {
	settings, err := m.gw.Settings(ctx, types.SettingsKeyNotifications)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	devices, err := m.gw.AllDevices(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	users, err := m.gw.AllUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	logs, err := m.gw.AllLogs(ctx)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}

	m.mu.Lock()
	if settings != nil {
		m.settings = *settings
	} else {
		m.settings = types.DefaultNotificationSettings()
	}
	m.devices = devices
	m.users = users
	m.mu.Unlock()

	m.agg.Rebuild(logs, len(users), m.gen.Now())
	m.logger.Info("state rebuilt",
		zap.Int("logs", len(logs)),
		zap.Int("devices", len(devices)),
		zap.Int("users", len(users)),
	)
	return nil
}

// Resync retries pending writes and rebuilds from the gateway.
func (m *Monitor) Resync(ctx context.Context) error {
	return m.Init(ctx)
}

// ── Event flow ───────────────────────────────────────────────────────────────

// Tick generates and processes a single event. ok is false when there was
// nothing to generate from.
func (m *Monitor) Tick(ctx context.Context) (res types.ProcessedResult, ok bool, err error) {
	devices, users := m.directory()
	ev, ok := m.gen.Generate(devices, users)
	if !ok {
		return types.ProcessedResult{}, false, nil
	}
	res, err = m.processor.Process(ctx, ev)
	if err != nil {
		return types.ProcessedResult{}, false, err
	}
	return res, true, nil
}

// ManualSync processes a batch of one to five events back to back and then
// marks pending users as synced. A second call while one is running fails
// with ErrSyncInProgress.
func (m *Monitor) ManualSync(ctx context.Context) (SyncReport, error) {
	if !m.syncing.CompareAndSwap(false, true) {
		m.metrics.ManualSyncs.WithLabelValues("rejected").Inc()
		return SyncReport{}, ErrSyncInProgress
	}
	defer m.syncing.Store(false)
	return m.runSync(ctx)
}

// StartManualSync is ManualSync in the background. The interlock is taken
// before it returns, so a rejection is reported synchronously.
func (m *Monitor) StartManualSync(ctx context.Context) error {
	if !m.syncing.CompareAndSwap(false, true) {
		m.metrics.ManualSyncs.WithLabelValues("rejected").Inc()
		return ErrSyncInProgress
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer m.syncing.Store(false)
		if _, err := m.runSync(ctx); err != nil {
			m.logger.Warn("manual sync aborted", zap.Error(err))
		}
	}()
	return nil
}

// SyncInProgress reports whether a manual sync is running.
func (m *Monitor) SyncInProgress() bool { return m.syncing.Load() }

// Wait blocks until background syncs started by StartManualSync finish.
func (m *Monitor) Wait() { m.bg.Wait() }

func (m *Monitor) runSync(ctx context.Context) (SyncReport, error) {
	report := SyncReport{Requested: m.gen.BatchSize()}
	for range report.Requested {
		res, ok, err := m.Tick(ctx)
		if err != nil {
			m.metrics.ManualSyncs.WithLabelValues("aborted").Inc()
			return report, err
		}
		if !ok {
			break
		}
		report.Processed++
		report.Results = append(report.Results, res)
	}

	report.UsersSynced = m.markUsersSynced(ctx)
	m.metrics.ManualSyncs.WithLabelValues("completed").Inc()
	m.logger.Info("manual sync complete",
		zap.Int("requested", report.Requested),
		zap.Int("processed", report.Processed),
		zap.Int("users_synced", report.UsersSynced),
	)
	return report, nil
}

func (m *Monitor) markUsersSynced(ctx context.Context) int {
	_, users := m.directory()
	n := 0
	for _, u := range users {
		if u.SyncStatus != types.SyncPending {
			continue
		}
		u.SyncStatus = types.SyncSynced
		if err := m.gw.SaveUser(ctx, u); err != nil {
			m.logger.Warn("mark user synced", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		m.putUser(u)
		n++
	}
	return n
}

// Ingest processes an event reported by a terminal. The device must be
// registered; a granted event must name a registered user.
func (m *Monitor) Ingest(ctx context.Context, te types.TerminalEvent) (types.ProcessedResult, error) {
	te.DeviceID = strings.TrimSpace(te.DeviceID)
	te.UserID = strings.TrimSpace(te.UserID)
	if te.DeviceID == "" {
		return types.ProcessedResult{}, ErrInvalidDeviceID
	}
	if !te.Status.Valid() {
		return types.ProcessedResult{}, fmt.Errorf("%w: status %q", ErrInvalidEvent, te.Status)
	}
	if !te.Method.Valid() {
		return types.ProcessedResult{}, fmt.Errorf("%w: method %q", ErrInvalidEvent, te.Method)
	}

	device, ok := m.Device(te.DeviceID)
	if !ok {
		return types.ProcessedResult{}, fmt.Errorf("%w: %s", ErrUnknownDevice, te.DeviceID)
	}

	ev := types.AccessEvent{
		ID:         te.ID,
		Timestamp:  m.gen.Now(),
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Method:     te.Method,
		Status:     te.Status,
		Detail:     te.Detail,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if t := parseOptionalTimestamp(te.OccurredAt); t != nil {
		ev.Timestamp = *t
	}

	user, known := m.User(te.UserID)
	switch ev.Status {
	case types.StatusGranted:
		if !known {
			return types.ProcessedResult{}, fmt.Errorf("%w: %q", ErrUnknownUser, te.UserID)
		}
		ev.UserID, ev.UserName, ev.Department = user.ID, user.Name, user.Department
		if ev.Detail == "" {
			ev.Detail = GrantedDetail
		}
	case types.StatusDenied:
		if known {
			ev.UserID, ev.UserName, ev.Department = user.ID, user.Name, user.Department
		} else {
			ev.UserID = types.UnknownUserID
			ev.UserName = types.UnknownUserName
			ev.Department = types.UnknownDepartment
		}
		if ev.Detail == "" {
			ev.Detail = DeniedDetail
		}
	}

	return m.processor.Process(ctx, ev)
}

// parseOptionalTimestamp parses a device-reported RFC 3339 timestamp.
// Returns nil if the string is empty or unparseable.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// PendingRetries is the number of events still waiting to be persisted.
func (m *Monitor) PendingRetries() int { return m.processor.Pending() }

// ── Reads ────────────────────────────────────────────────────────────────────

func (m *Monitor) Snapshot() aggregate.Snapshot { return m.agg.Snapshot() }

func (m *Monitor) Settings() types.NotificationSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *Monitor) Devices() []types.Device {
	devices, _ := m.directory()
	return devices
}

func (m *Monitor) Users() []types.User {
	_, users := m.directory()
	return users
}

func (m *Monitor) Device(id string) (types.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.devices {
		if d.ID == id {
			return d, true
		}
	}
	return types.Device{}, false
}

func (m *Monitor) User(id string) (types.User, bool) {
	if id == "" {
		return types.User{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return types.User{}, false
}

// Ping reports whether the gateway is reachable.
func (m *Monitor) Ping(ctx context.Context) error { return m.gw.Ping(ctx) }

func (m *Monitor) directory() ([]types.Device, []types.User) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devices := make([]types.Device, len(m.devices))
	copy(devices, m.devices)
	users := make([]types.User, len(m.users))
	copy(users, m.users)
	return devices, users
}

func (m *Monitor) activeUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// ── Writes ───────────────────────────────────────────────────────────────────

// UpdateSettings persists s and only then makes it current.
func (m *Monitor) UpdateSettings(ctx context.Context, s types.NotificationSettings) error {
	s.Email = strings.TrimSpace(s.Email)
	s.SMTP.Host = strings.TrimSpace(s.SMTP.Host)
	if err := check(ErrInvalidSettings, s); err != nil {
		return err
	}
	if s.Enabled && s.Email == "" {
		return fmt.Errorf("%w: email is required when notifications are enabled", ErrInvalidSettings)
	}
	if s.SMTP.Port == "" {
		s.SMTP.Port = types.DefaultNotificationSettings().SMTP.Port
	}

	if err := m.gw.SaveSettings(ctx, types.SettingsKeyNotifications, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	m.logger.Info("notification settings updated",
		zap.Bool("enabled", s.Enabled),
		zap.Bool("notify_on_granted", s.NotifyOnGranted),
		zap.Bool("notify_on_denied", s.NotifyOnDenied),
	)
	return nil
}

// AddDevice registers a terminal. Missing id, port and model get defaults;
// new devices start offline until their first heartbeat.
func (m *Monitor) AddDevice(ctx context.Context, d types.Device) (types.Device, error) {
	d.ID = strings.TrimSpace(d.ID)
	d.Name = strings.TrimSpace(d.Name)
	if err := check(ErrInvalidDevice, d); err != nil {
		return types.Device{}, err
	}
	if d.ID == "" {
		d.ID = m.newDeviceID()
	}
	if d.Port == "" {
		d.Port = types.DefaultDevicePort
	}
	if d.Model == "" {
		d.Model = types.DefaultDeviceModel
	}
	d.Status = types.DeviceOffline
	d.LastSeen = nil

	if err := m.gw.SaveDevice(ctx, d); err != nil {
		return types.Device{}, fmt.Errorf("save device: %w", err)
	}
	m.putDevice(d)
	return d, nil
}

func (m *Monitor) newDeviceID() string {
	for {
		id := "dev-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
		if _, taken := m.Device(id); !taken {
			return id
		}
	}
}

// AddUser enrolls a user. New users are pending until the next manual sync.
func (m *Monitor) AddUser(ctx context.Context, u types.User) (types.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	if err := check(ErrInvalidUser, u); err != nil {
		return types.User{}, err
	}
	if u.ID == types.UnknownUserID {
		return types.User{}, fmt.Errorf("%w: id %q is reserved", ErrInvalidUser, u.ID)
	}
	if _, exists := m.User(u.ID); exists {
		return types.User{}, fmt.Errorf("%w: %s", ErrDuplicateUser, u.ID)
	}
	u.SyncStatus = types.SyncPending
	if u.EnrollmentDate.IsZero() {
		u.EnrollmentDate = m.gen.Now()
	}

	if err := m.gw.SaveUser(ctx, u); err != nil {
		return types.User{}, fmt.Errorf("save user: %w", err)
	}
	m.putUser(u)
	return u, nil
}

func (m *Monitor) DeleteUser(ctx context.Context, id string) error {
	if err := m.gw.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownUser, id)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	m.mu.Lock()
	kept := m.users[:0]
	for _, u := range m.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	m.users = kept
	n := len(m.users)
	m.mu.Unlock()

	m.agg.SetActiveUsers(n)
	return nil
}

// NoteHeartbeat marks a registered device online. known is false for
// devices that were never registered; that is not an error.
func (m *Monitor) NoteHeartbeat(ctx context.Context, deviceID string, at time.Time) (known bool, err error) {
	if err := m.gw.MarkDeviceSeen(ctx, deviceID, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()
	for i := range m.devices {
		if m.devices[i].ID == deviceID {
			t := at
			m.devices[i].Status = types.DeviceOnline
			m.devices[i].LastSeen = &t
		}
	}
	m.mu.Unlock()
	return true, nil
}

// SweepOffline flips devices silent since cutoff to offline.
func (m *Monitor) SweepOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := m.gw.MarkDevicesOfflineBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	m.mu.Lock()
	for i := range m.devices {
		d := &m.devices[i]
		if d.Status == types.DeviceOnline && (d.LastSeen == nil || d.LastSeen.Before(cutoff)) {
			d.Status = types.DeviceOffline
		}
	}
	m.mu.Unlock()
	return n, nil
}

func (m *Monitor) putDevice(d types.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.devices {
		if m.devices[i].ID == d.ID {
			m.devices[i] = d
			return
		}
	}
	m.devices = append(m.devices, d)
}

func (m *Monitor) putUser(u types.User) {
	m.mu.Lock()
	for i := range m.users {
		if m.users[i].ID == u.ID {
			m.users[i] = u
			m.mu.Unlock()
			return
		}
	}
	m.users = append(m.users, u)
	n := len(m.users)
	m.mu.Unlock()
	m.agg.SetActiveUsers(n)
}
