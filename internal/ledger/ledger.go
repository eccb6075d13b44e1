// Package ledger is the durable record of every posting that reached a
// terminal outcome. The file is a JSON array rewritten in full on every
// append; older versions stored bare URL strings, which are still read
// and written back as-is.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/logger"
)

type Store struct {
	path string
	log  *zap.SugaredLogger

	mu    sync.RWMutex
	recs  []record
	index map[string]struct{}
}

// Open loads the ledger at path. Missing or unreadable data yields an empty
// ledger; a corrupt file is copied aside before it can be overwritten.
func Open(path string, log *zap.SugaredLogger) *Store {
	s := &Store{path: path, log: logger.OrNop(log)}
	s.Load()
	return s
}

func (s *Store) Path() string { return s.path }

// Load re-reads the file and returns its entries. It never fails.
func (s *Store) Load() []domain.LedgerEntry {
	recs := s.readFile()

	s.mu.Lock()
	s.recs = recs
	s.index = make(map[string]struct{}, len(recs))
	for _, r := range recs {
		s.index[r.entry.URL] = struct{}{}
	}
	s.mu.Unlock()

	return s.Entries()
}

func (s *Store) readFile() []record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnw("ledger unreadable, starting empty", "path", s.path, "error", err)
		}
		return nil
	}
	recs, err := decode(data)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if werr := os.WriteFile(aside, data, 0o644); werr != nil {
			s.log.Errorw("could not preserve corrupt ledger", "path", aside, "error", werr)
		}
		s.log.Warnw("ledger corrupt, starting empty", "path", s.path, "saved_as", aside, "error", err)
		return nil
	}
	return recs
}

// Append records e and rewrites the file. A URL already present is left
// untouched and reported as not added.
func (s *Store) Append(e domain.LedgerEntry) (bool, error) {
	if e.URL == "" {
		return false, errs.New("ledger entry without url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[e.URL]; dup {
		s.log.Debugw("ledger already has url", "url", e.URL)
		return false, nil
	}

	next := append(s.recs[:len(s.recs):len(s.recs)], record{entry: e})
	if err := s.writeFile(next); err != nil {
		return false, err
	}
	s.recs = next
	s.index[e.URL] = struct{}{}
	return true, nil
}

func (s *Store) writeFile(recs []record) error {
	b, err := encode(recs)
	if err != nil {
		return errs.Wrap(err, "encode ledger")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errs.Wrap(err, "create ledger temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(err, "write ledger temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(err, "sync ledger temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(err, "close ledger temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(err, "replace ledger")
	}
	return nil
}

func (s *Store) ContainsURL(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[url]
	return ok
}

// CountSince counts dated entries at or after since. Dateless entries never count.
func (s *Store) CountSince(since time.Time) int {
	return s.count(since, false)
}

// CountPricedSince is CountSince restricted to entries that carry a price,
// i.e. proposals that were actually sent.
func (s *Store) CountPricedSince(since time.Time) int {
	return s.count(since, true)
}

func (s *Store) count(since time.Time, pricedOnly bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.recs {
		if !r.entry.Dated() || r.entry.Timestamp.Before(since) {
			continue
		}
		if pricedOnly && r.entry.Price == nil {
			continue
		}
		n++
	}
	return n
}

func (s *Store) Entries() []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LedgerEntry, len(s.recs))
	for i, r := range s.recs {
		out[i] = r.entry
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Lock takes an exclusive advisory lock next to the ledger file so that a
// second engine instance refuses to start.
func Lock(path string) (unlock func() error, err error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errs.Wrapf(err, "lock %s", fl.Path())
	}
	if !ok {
		return nil, errs.WithHintf(errs.ErrLedgerLocked,
			"another bidbot process holds %s; stop it or wait for it to finish", fl.Path())
	}
	return fl.Unlock, nil
}
