package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(ErrSessionExpired, "navigate to posting")
	require.Error(t, err)
	assert.True(t, Is(err, ErrSessionExpired))
	assert.Contains(t, err.Error(), "navigate to posting")
}

func TestIsRunFatal(t *testing.T) {
	assert.True(t, IsRunFatal(Wrap(ErrSessionExpired, "x")))
	assert.True(t, IsRunFatal(ErrManualLoginRequired))
	assert.True(t, IsRunFatal(Wrapf(ErrCapReached, "weekly %d/%d", 52, 52)))
	assert.False(t, IsRunFatal(ErrServiceUnavailable))
	assert.False(t, IsRunFatal(nil))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrLedgerLocked, "stop the other bidbot process first")
	assert.Contains(t, FlattenHints(err), "stop the other bidbot process")
}
