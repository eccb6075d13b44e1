// Package console reads operator answers from a terminal. One Lines value
// owns the input stream so a prompt abandoned on cancel leaves no reader
// behind to eat the next answer.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

type Lines struct {
	in    io.Reader
	once  sync.Once
	lines chan string
}

func NewLines(in io.Reader) *Lines {
	return &Lines{in: in, lines: make(chan string)}
}

func (l *Lines) start() {
	l.once.Do(func() {
		go func() {
			defer close(l.lines)
			sc := bufio.NewScanner(l.in)
			for sc.Scan() {
				l.lines <- strings.TrimSpace(sc.Text())
			}
		}()
	})
}

// Next blocks for one line. It returns io.EOF once the input is closed.
func (l *Lines) Next(ctx context.Context) (string, error) {
	l.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}
