package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

const (
	DefaultDeniedProbability = 0.1
	MaxManualBatch           = 5

	DeniedDetail  = "Invalid credentials or unauthorized biometric profile"
	GrantedDetail = "Access successful"
)

// Generator synthesises access events for terminals that are not wired to
// real hardware.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	newID  func() string
	denied float64
}

type GeneratorOption func(*Generator)

// WithRand swaps the random source. Tests pass a seeded PCG.
func WithRand(r *rand.Rand) GeneratorOption {
	return func(g *Generator) { g.rng = r }
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

func WithIDs(newID func() string) GeneratorOption {
	return func(g *Generator) { g.newID = newID }
}

// WithDeniedProbability sets the share of generated events that are denied.
// Values outside [0,1] are clamped.
func WithDeniedProbability(p float64) GeneratorOption {
	return func(g *Generator) { g.denied = min(max(p, 0), 1) }
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		denied: DefaultDeniedProbability,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new event, or false when there is no device or no user
// to draw from.
func (g *Generator) Generate(devices []types.Device, users []types.User) (types.AccessEvent, bool) {
	if len(devices) == 0 || len(users) == 0 {
		return types.AccessEvent{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ev := types.AccessEvent{
		ID:        g.newID(),
		Timestamp: g.now(),
	}

	if g.rng.Float64() < g.denied {
		d := devices[g.rng.IntN(len(devices))]
		ev.UserID = types.UnknownUserID
		ev.UserName = types.UnknownUserName
		ev.Department = types.UnknownDepartment
		ev.DeviceID, ev.DeviceName = d.ID, d.Name
		ev.Method = types.Methods[g.rng.IntN(len(types.Methods))]
		ev.Status = types.StatusDenied
		ev.Detail = DeniedDetail
		return ev, true
	}

	u := users[g.rng.IntN(len(users))]
	d := devices[g.rng.IntN(len(devices))]
	ev.UserID, ev.UserName, ev.Department = u.ID, u.Name, u.Department
	ev.DeviceID, ev.DeviceName = d.ID, d.Name
	ev.Method = u.PrimaryMethod
	ev.Status = types.StatusGranted
	ev.Detail = GrantedDetail
	return ev, true
}

// BatchSize picks how many events a manual sync produces, 1 to MaxManualBatch.
func (g *Generator) BatchSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return 1 + g.rng.IntN(MaxManualBatch)
}

// Now is the generator's clock, shared with the rest of the engine.
func (g *Generator) Now() time.Time {
	return g.now()
}
