package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bidbot-engine/internal/console"
	"bidbot-engine/internal/errs"
)

// SessionStore persists the opaque cookie blob between runs.
type SessionStore interface {
	Load() ([]byte, error)
	Save(blob []byte) error
}

type FileSession struct {
	Path string
}

func (f FileSession) Load() ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, errs.Wrapf(errs.ErrNotFound, "session file %s", f.Path)
	}
	if err != nil {
		return nil, errs.Wrapf(err, "read %s", f.Path)
	}
	return b, nil
}

// Save writes through a temp file; cookies are credentials, so 0600.
func (f FileSession) Save(blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return errs.Wrap(err, "create session dir")
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return errs.Wrapf(err, "write %s", tmp)
	}
	return os.Rename(tmp, f.Path)
}

// PromptWait waits for the operator to press Enter. A closed input counts
// as Enter; the probe that follows decides whether the login worked.
type PromptWait struct {
	Lines *console.Lines
	Out   io.Writer
}

func (p PromptWait) WaitForLogin(ctx context.Context) error {
	fmt.Fprint(p.Out, "\nLog in in the browser window, then press Enter here... ")
	if _, err := p.Lines.Next(ctx); err != nil && !errs.Is(err, io.EOF) {
		return err
	}
	return nil
}
