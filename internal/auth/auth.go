// Package auth makes sure the shared browser tab holds a logged-in
// marketplace session before a run starts.
package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/logger"
)

type Status int

const (
	RequiresManualLogin Status = iota
	Authenticated
)

func (s Status) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "requires_manual_login"
}

// Markers only shown to a logged-in user.
var (
	LoggedInMarkers = []string{"mi perfil", "dashboard", "propuestas", "mensajes", "notificaciones"}
	// restored cookies must show one of the stronger markers
	RestoredMarkers  = []string{"mi perfil", "dashboard", "propuestas"}
	LoggedOutMarkers = []string{"iniciar sesión", "login"}
)

// Probe reports whether a page at url with html belongs to a live session.
func Probe(url, html string) bool {
	if browser.IsLoginURL(url) {
		return false
	}
	if browser.ContainsAny(html, LoggedInMarkers...) {
		return true
	}
	return !browser.ContainsAny(html, LoggedOutMarkers...)
}

// Waiter blocks while an operator logs in by hand.
type Waiter interface {
	WaitForLogin(ctx context.Context) error
}

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Complete() bool { return c.Email != "" && c.Password != "" }

type Authenticator struct {
	Driver   browser.Driver
	Pacer    *humanize.Pacer
	BaseURL  string
	LoginURL string
	Session  SessionStore
	Waiter   Waiter
	// Credentials, when complete, are typed into the login form before waiting.
	Credentials Credentials
	Log         *zap.SugaredLogger
}

// EnsureAuthenticated tries the live browser profile, then the saved
// session, then a manual login. Only the last can return RequiresManualLogin,
// together with an error wrapping errs.ErrManualLoginRequired.
func (a *Authenticator) EnsureAuthenticated(ctx context.Context) (Status, error) {
	log := logger.OrNop(a.Log)
	log.Infow("checking session")

	if err := a.open(ctx, a.BaseURL); err != nil {
		return RequiresManualLogin, err
	}
	if ok, err := a.probe(ctx, LoggedInMarkers, true); err != nil {
		return RequiresManualLogin, err
	} else if ok {
		log.Infow("session active from browser profile")
		return Authenticated, nil
	}

	if ok, err := a.restore(ctx); err != nil {
		if ctx.Err() != nil {
			return RequiresManualLogin, ctx.Err()
		}
		log.Warnw("saved session could not be restored", "error", err)
	} else if ok {
		log.Infow("session restored from saved cookies")
		return Authenticated, nil
	}

	return a.manual(ctx)
}

func (a *Authenticator) open(ctx context.Context, url string) error {
	if err := a.Driver.Navigate(ctx, url); err != nil {
		return errs.Wrapf(err, "open %s", url)
	}
	return a.Pacer.AfterPage(ctx)
}

func (a *Authenticator) probe(ctx context.Context, markers []string, lenient bool) (bool, error) {
	cur, err := a.Driver.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	html, err := a.Driver.HTML(ctx)
	if err != nil {
		return false, err
	}
	if lenient {
		return Probe(cur, html), nil
	}
	return !browser.IsLoginURL(cur) && browser.ContainsAny(html, markers...), nil
}

func (a *Authenticator) restore(ctx context.Context) (bool, error) {
	if a.Session == nil {
		return false, nil
	}
	blob, err := a.Session.Load()
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := a.Driver.ImportSession(ctx, blob); err != nil {
		return false, errs.Wrap(err, "import cookies")
	}
	if err := a.open(ctx, a.BaseURL); err != nil {
		return false, err
	}
	return a.probe(ctx, RestoredMarkers, false)
}

func (a *Authenticator) manual(ctx context.Context) (Status, error) {
	log := logger.OrNop(a.Log)
	log.Warnw("manual login required", "url", a.LoginURL)

	if err := a.open(ctx, a.LoginURL); err != nil {
		return RequiresManualLogin, err
	}
	if a.Credentials.Complete() {
		if err := a.fillCredentials(ctx); err != nil {
			log.Warnw("could not prefill login form", "error", err)
		}
	}
	if a.Waiter != nil {
		if err := a.Waiter.WaitForLogin(ctx); err != nil {
			return RequiresManualLogin, err
		}
	}

	cur, err := a.Driver.CurrentURL(ctx)
	if err != nil {
		return RequiresManualLogin, err
	}
	if browser.IsLoginURL(cur) {
		return RequiresManualLogin, errs.WithHint(
			errs.Wrapf(errs.ErrManualLoginRequired, "still on %s", cur),
			"run with headless=false and auto_mode=false, then log in when the browser opens")
	}

	if a.Session != nil {
		if blob, err := a.Driver.ExportSession(ctx); err != nil {
			log.Errorw("could not export cookies", "error", err)
		} else if err := a.Session.Save(blob); err != nil {
			log.Errorw("could not save cookies", "error", err)
		} else {
			log.Infow("cookies saved for next session")
		}
	}
	return Authenticated, nil
}

var (
	emailSelectors    = []string{"input[type='email']", "input[name='email']"}
	passwordSelectors = []string{"input[type='password']"}
	loginSubmit       = []string{"form button[type='submit']", "form input[type='submit']"}
)

func (a *Authenticator) fillCredentials(ctx context.Context) error {
	fill := func(sels []string, text string) error {
		el, err := a.first(ctx, sels)
		if err != nil {
			return err
		}
		if _, err := browser.HumanClick(ctx, a.Driver, a.Pacer, el); err != nil {
			return err
		}
		return browser.Type(ctx, a.Driver, a.Pacer, el, text, a.Pacer.Profile.Type)
	}
	if err := fill(emailSelectors, a.Credentials.Email); err != nil {
		return errs.Wrap(err, "email")
	}
	if err := fill(passwordSelectors, a.Credentials.Password); err != nil {
		return errs.Wrap(err, "password")
	}
	btn, err := a.first(ctx, loginSubmit)
	if err != nil {
		return errs.Wrap(err, "submit")
	}
	if _, err := browser.HumanClick(ctx, a.Driver, a.Pacer, btn); err != nil {
		return err
	}
	return a.Pacer.AfterPage(ctx)
}

func (a *Authenticator) first(ctx context.Context, sels []string) (browser.Element, error) {
	for _, sel := range sels {
		lk, err := a.Driver.Find(ctx, sel)
		if err != nil {
			return nil, err
		}
		if lk.Found {
			return lk.Element, nil
		}
	}
	return nil, errs.Newf("none of %s found", strings.Join(sels, ", "))
}

// TimedWait gives the operator a fixed window, for unattended runs.
type TimedWait struct {
	Pacer *humanize.Pacer
	For   time.Duration
}

func (w TimedWait) WaitForLogin(ctx context.Context) error {
	return w.Pacer.Pause(ctx, humanize.Range{Min: w.For, Max: w.For})
}
