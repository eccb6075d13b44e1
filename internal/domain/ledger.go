package domain

import "time"

// LedgerEntry records that a posting reached a terminal outcome.
// Legacy entries carry only the URL.
type LedgerEntry struct {
	URL       string
	Timestamp *time.Time
	Price     *int
}

func (e LedgerEntry) Dated() bool { return e.Timestamp != nil && !e.Timestamp.IsZero() }

func NewLedgerEntry(url string, at time.Time, price *int) LedgerEntry {
	ts := at
	return LedgerEntry{URL: url, Timestamp: &ts, Price: price}
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int { return &v }
