package humanize

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealSleeper uses wall-clock timers.
func RealSleeper() Sleeper { return realSleeper{} }

// Pacer draws delays from a Profile and sleeps them.
type Pacer struct {
	Profile Profile

	sleeper Sleeper
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewPacer builds a Pacer. Nil sleeper or rng fall back to wall-clock sleeping
// and a randomly seeded generator.
func NewPacer(p Profile, sleeper Sleeper, rng *rand.Rand) *Pacer {
	if sleeper == nil {
		sleeper = RealSleeper()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pacer{Profile: p, sleeper: sleeper, rng: rng}
}

func (p *Pacer) pick(r Range) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Pick(p.rng)
}

func (p *Pacer) float() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *Pacer) intN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// Pause sleeps a random duration from r.
func (p *Pacer) Pause(ctx context.Context, r Range) error {
	return p.sleeper.Sleep(ctx, p.pick(r))
}

func (p *Pacer) AfterClick(ctx context.Context) error  { return p.Pause(ctx, p.Profile.Click) }
func (p *Pacer) AfterScroll(ctx context.Context) error { return p.Pause(ctx, p.Profile.Scroll) }
func (p *Pacer) AfterPage(ctx context.Context) error   { return p.Pause(ctx, p.Profile.Page) }

// Cooldown sleeps the inter-submission gap. announce, when set, learns the
// chosen duration before the sleep starts.
func (p *Pacer) Cooldown(ctx context.Context, announce func(time.Duration)) (time.Duration, error) {
	d := p.pick(p.Profile.Cooldown)
	if announce != nil {
		announce(d)
	}
	return d, p.sleeper.Sleep(ctx, d)
}
