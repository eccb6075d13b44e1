package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.JSON = true
	require.NoError(t, Initialize(opts))
	t.Cleanup(func() { Logger = OrNop(nil) })

	Named("test").Infow("hello", "run_id", "abc")
	Cleanup()

	b, err := os.ReadFile(filepath.Join(dir, "logs", "bot_execution.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"run_id":"abc"`)
	assert.Contains(t, string(b), `"logger":"test"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
