package llm

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
)

var (
	reFence   = regexp.MustCompile("```(?:json)?")
	reLeading = regexp.MustCompile(`^\s*-?\d+(?:[.,]\d+)?`)
)

// flexInt accepts 85, 85.0, "85", "85/100" and null. Strings yield their
// leading number only.
type flexInt struct {
	v   int
	set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	return f.decode(b, leadingNumber)
}

// flexPrice is flexInt for money: "$1.200" drops every non-digit and reads 1200.
type flexPrice struct{ flexInt }

func (f *flexPrice) UnmarshalJSON(b []byte) error {
	return f.decode(b, digitsOnly)
}

func (f *flexInt) decode(b []byte, fromString func(string) (int, bool, error)) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, ok, err := fromString(s)
		if err != nil || !ok {
			return err
		}
		f.v, f.set = n, true
		return nil
	}
	var x float64
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	f.v, f.set = int(math.Round(x)), true
	return nil
}

func leadingNumber(s string) (int, bool, error) {
	m := reLeading.FindString(s)
	if m == "" {
		return 0, false, nil
	}
	x, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(m), ",", ".", 1), 64)
	if err != nil {
		return 0, false, err
	}
	return int(math.Round(x)), true, nil
}

func digitsOnly(s string) (int, bool, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil, err
}

type wireEvaluation struct {
	IsRelevant     *bool     `json:"is_relevant"`
	Score          flexInt   `json:"score"`
	Reason         string    `json:"reason"`
	DeliveryDays   flexInt   `json:"delivery_days"`
	ProposalText   string    `json:"proposal_text"`
	SuggestedPrice flexPrice `json:"suggested_price"`
}

// ParseEvaluation reads the model's JSON answer, tolerating code fences and
// prose around the object.
func ParseEvaluation(text string) (domain.Evaluation, error) {
	text = strings.TrimSpace(reFence.ReplaceAllString(text, ""))
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return domain.Evaluation{}, errs.New("no JSON object in response")
	}

	var w wireEvaluation
	if err := json.Unmarshal([]byte(text[start:end+1]), &w); err != nil {
		return domain.Evaluation{}, errs.Wrap(err, "decode evaluation")
	}
	if !w.Score.set {
		return domain.Evaluation{}, errs.New("evaluation has no score")
	}

	ev := domain.Evaluation{
		Relevant:     w.IsRelevant == nil || *w.IsRelevant,
		Score:        w.Score.v,
		Reason:       strings.TrimSpace(w.Reason),
		DeliveryDays: w.DeliveryDays.v,
		ProposalText: strings.TrimSpace(w.ProposalText),
	}
	if w.SuggestedPrice.set && w.SuggestedPrice.v > 0 {
		ev.SuggestedPrice = domain.IntPtr(w.SuggestedPrice.v)
	}
	return ev, nil
}
