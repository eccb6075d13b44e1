package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayTrigger(t *testing.T) Trigger {
	t.Helper()
	tr, err := ParseTrigger([]string{"17:00", "09:00"}, []string{"mon", "tue", "wed", "thu", "fri"}, time.UTC)
	require.NoError(t, err)
	return tr
}

func TestTriggerNext(t *testing.T) {
	tr := weekdayTrigger(t)

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before morning slot", time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC), time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)},
		{"between slots", time.Date(2024, 5, 6, 12, 30, 0, 0, time.UTC), time.Date(2024, 5, 6, 17, 0, 0, 0, time.UTC)},
		{"exactly on a slot moves on", time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC), time.Date(2024, 5, 6, 17, 0, 0, 0, time.UTC)},
		{"friday evening skips weekend", time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC), time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2024, 5, 11, 10, 0, 0, 0, time.UTC), time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tr.Next(tc.now))
		})
	}
}

func TestParseTriggerRejectsBadInput(t *testing.T) {
	_, err := ParseTrigger([]string{"25:00"}, []string{"mon"}, time.UTC)
	assert.Error(t, err)

	_, err = ParseTrigger([]string{"09:00"}, []string{"funday"}, time.UTC)
	assert.Error(t, err)

	_, err = ParseTrigger(nil, []string{"mon"}, time.UTC)
	assert.Error(t, err)

	_, err = ParseTrigger([]string{"09:00"}, []string{"Monday"}, time.UTC)
	assert.NoError(t, err)
}

func TestEveryRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan struct{})
	go func() {
		Every(ctx, time.Hour, "test", func(context.Context) error {
			calls.Add(1)
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not return after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}
