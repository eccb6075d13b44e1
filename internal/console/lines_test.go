package console

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelledPromptKeepsNextLine(t *testing.T) {
	pr, pw := io.Pipe()
	l := NewLines(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	go func() { _, _ = io.WriteString(pw, " y \n") }()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	line, err := l.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "y", line)
}

func TestNextReportsEOF(t *testing.T) {
	pr, pw := io.Pipe()
	l := NewLines(pr)
	require.NoError(t, pw.Close())

	_, err := l.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

