package ledger

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
)

// record is one ledger row plus what is needed to write it back unchanged.
type record struct {
	entry domain.LedgerEntry
	// rawTimestamp keeps a timestamp we could not parse so a rewrite does not lose it.
	rawTimestamp string
	legacy       bool
}

type wireEntry struct {
	URL       string  `json:"url"`
	Timestamp *string `json:"timestamp"`
	Price     *int    `json:"price"`
}

// Timestamps written by older versions have no zone and mean local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func decode(data []byte) ([]record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(err, "ledger is not a JSON array")
	}

	out := make([]record, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var url string
			if err := json.Unmarshal(item, &url); err != nil {
				return nil, errs.Wrapf(err, "ledger entry %d", i)
			}
			if url = strings.TrimSpace(url); url != "" {
				out = append(out, record{entry: domain.LedgerEntry{URL: url}, legacy: true})
			}
			continue
		}

		var w wireEntry
		if err := json.Unmarshal(item, &w); err != nil {
			return nil, errs.Wrapf(err, "ledger entry %d", i)
		}
		w.URL = strings.TrimSpace(w.URL)
		if w.URL == "" {
			continue
		}
		rec := record{entry: domain.LedgerEntry{URL: w.URL, Price: w.Price}}
		if w.Timestamp != nil {
			if t, ok := parseTimestamp(*w.Timestamp); ok {
				rec.entry.Timestamp = &t
			} else {
				rec.rawTimestamp = *w.Timestamp
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func encode(recs []record) ([]byte, error) {
	items := make([]any, 0, len(recs))
	for _, r := range recs {
		if r.legacy {
			items = append(items, r.entry.URL)
			continue
		}
		w := wireEntry{URL: r.entry.URL, Price: r.entry.Price}
		switch {
		case r.entry.Dated():
			s := r.entry.Timestamp.Format(time.RFC3339)
			w.Timestamp = &s
		case r.rawTimestamp != "":
			s := r.rawTimestamp
			w.Timestamp = &s
		}
		items = append(items, w)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
