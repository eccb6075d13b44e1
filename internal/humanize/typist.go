package humanize

import (
	"context"
	"time"
)

// Keyboard receives keystrokes for a focused field.
type Keyboard interface {
	SendKeys(ctx context.Context, text string) error
	Backspace(ctx context.Context) error
}

// Scroller exposes just enough of a page to scroll it like a reader.
type Scroller interface {
	ScrollHeight(ctx context.Context) (int, error)
	ScrollTo(ctx context.Context, y int) error
}

const (
	typoMinLen     = 10 // texts this short never get typos
	slowTypeMaxLen = 50 // texts up to this length are typed slower
	slowTypeFactor = 1.5
	maxScrollSteps = 200
)

var (
	typoHold    = Range{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond}
	typoRecover = Range{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond}
)

const typoAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Type sends text one character at a time with a random pause from pace after
// each character. When the profile allows typos, a wrong letter is sometimes
// typed and erased first.
func (p *Pacer) Type(ctx context.Context, kb Keyboard, text string, pace Range) error {
	runes := []rune(text)
	if len(runes) <= slowTypeMaxLen {
		pace = pace.Scale(slowTypeFactor)
	}
	typos := p.Profile.TypoChance > 0 && len(runes) > typoMinLen

	for _, r := range runes {
		if typos && p.float() < p.Profile.TypoChance {
			wrong := string(typoAlphabet[p.intN(len(typoAlphabet))])
			if err := kb.SendKeys(ctx, wrong); err != nil {
				return err
			}
			if err := p.Pause(ctx, typoHold); err != nil {
				return err
			}
			if err := kb.Backspace(ctx); err != nil {
				return err
			}
			if err := p.Pause(ctx, typoRecover); err != nil {
				return err
			}
		}
		if err := kb.SendKeys(ctx, string(r)); err != nil {
			return err
		}
		if err := p.Pause(ctx, pace); err != nil {
			return err
		}
	}
	return nil
}

// ReadPage scrolls to the bottom in 200-400px steps and then back to the top.
func (p *Pacer) ReadPage(ctx context.Context, s Scroller) error {
	height, err := s.ScrollHeight(ctx)
	if err != nil {
		return err
	}
	y := 0
	for step := 0; y < height && step < maxScrollSteps; step++ {
		y += 200 + p.intN(201)
		if err := s.ScrollTo(ctx, y); err != nil {
			return err
		}
		if err := p.AfterScroll(ctx); err != nil {
			return err
		}
		// lazy-loaded content can grow the page
		if h, err := s.ScrollHeight(ctx); err == nil {
			height = h
		}
	}
	if err := p.AfterPage(ctx); err != nil {
		return err
	}
	if err := s.ScrollTo(ctx, 0); err != nil {
		return err
	}
	return p.AfterScroll(ctx)
}
