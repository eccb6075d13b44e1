package humanize

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct{ naps []time.Duration }

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.naps = append(s.naps, d)
	return ctx.Err()
}

type keyLog struct {
	keys       []string
	backspaces int
}

func (k *keyLog) SendKeys(_ context.Context, text string) error {
	k.keys = append(k.keys, text)
	return nil
}

func (k *keyLog) Backspace(context.Context) error {
	k.backspaces++
	if len(k.keys) > 0 {
		k.keys = k.keys[:len(k.keys)-1]
	}
	return nil
}

func seeded() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func TestProfileFor(t *testing.T) {
	fast := ProfileFor("FAST")
	assert.Equal(t, SpeedFast, fast.Name)
	assert.Zero(t, fast.TypoChance)
	assert.Equal(t, 120*time.Second, fast.Cooldown.Min)

	safe := ProfileFor("safe")
	assert.Equal(t, 0.05, safe.TypoChance)
	assert.Equal(t, 300*time.Second, safe.Cooldown.Max)

	assert.Equal(t, SpeedSafe, ProfileFor("turbo").Name)
}

func TestRangePickStaysInBounds(t *testing.T) {
	r := Range{Min: 30 * time.Millisecond, Max: 80 * time.Millisecond}
	rng := seeded()
	for i := 0; i < 1000; i++ {
		d := r.Pick(rng)
		require.GreaterOrEqual(t, d, r.Min)
		require.LessOrEqual(t, d, r.Max)
	}
	assert.Equal(t, r.Min, Range{Min: r.Min, Max: r.Min}.Pick(rng))
}

func TestTypeProducesExactTextWithTypos(t *testing.T) {
	p := ProfileFor(SpeedSafe)
	p.TypoChance = 0.5
	sl := &recordingSleeper{}
	pacer := NewPacer(p, sl, seeded())
	kb := &keyLog{}

	text := "Hola, puedo ayudarte con este proyecto de scraping."
	require.NoError(t, pacer.Type(context.Background(), kb, text, ProposalPace))

	assert.Equal(t, text, strings.Join(kb.keys, ""))
	assert.Positive(t, kb.backspaces)
}

func TestTypeSkipsTyposOnShortText(t *testing.T) {
	p := ProfileFor(SpeedSafe)
	p.TypoChance = 1
	pacer := NewPacer(p, &recordingSleeper{}, seeded())
	kb := &keyLog{}

	require.NoError(t, pacer.Type(context.Background(), kb, "12000", p.Type))
	assert.Equal(t, "12000", strings.Join(kb.keys, ""))
	assert.Zero(t, kb.backspaces)
}

func TestShortTextTypesSlower(t *testing.T) {
	p := ProfileFor(SpeedFast)
	sl := &recordingSleeper{}
	pacer := NewPacer(p, sl, seeded())
	pace := Range{Min: 100 * time.Millisecond, Max: 100 * time.Millisecond}

	require.NoError(t, pacer.Type(context.Background(), &keyLog{}, "abc", pace))
	require.Len(t, sl.naps, 3)
	for _, d := range sl.naps {
		assert.Equal(t, 150*time.Millisecond, d)
	}
}

func TestTypeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pacer := NewPacer(ProfileFor(SpeedFast), &recordingSleeper{}, seeded())
	kb := &keyLog{}

	err := pacer.Type(ctx, kb, "some text", ProposalPace)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, kb.keys, 1)
}

type fakePage struct {
	height    int
	positions []int
}

func (f *fakePage) ScrollHeight(context.Context) (int, error) { return f.height, nil }
func (f *fakePage) ScrollTo(_ context.Context, y int) error {
	f.positions = append(f.positions, y)
	return nil
}

func TestReadPageScrollsDownThenUp(t *testing.T) {
	page := &fakePage{height: 1500}
	pacer := NewPacer(ProfileFor(SpeedFast), &recordingSleeper{}, seeded())

	require.NoError(t, pacer.ReadPage(context.Background(), page))

	n := len(page.positions)
	require.GreaterOrEqual(t, n, 5)
	assert.Equal(t, 0, page.positions[n-1])
	assert.GreaterOrEqual(t, page.positions[n-2], 1500)
	for i := 1; i < n-1; i++ {
		step := page.positions[i] - page.positions[i-1]
		assert.GreaterOrEqual(t, step, 200)
		assert.LessOrEqual(t, step, 400)
	}
}

func TestCooldownWithinProfile(t *testing.T) {
	p := ProfileFor(SpeedSafe)
	sl := &recordingSleeper{}
	pacer := NewPacer(p, sl, seeded())

	var announced time.Duration
	d, err := pacer.Cooldown(context.Background(), func(d time.Duration) { announced = d })
	require.NoError(t, err)
	assert.Equal(t, d, announced)
	assert.GreaterOrEqual(t, d, p.Cooldown.Min)
	assert.LessOrEqual(t, d, p.Cooldown.Max)
	assert.Equal(t, []time.Duration{d}, sl.naps)
}
