package auth

import (
	"context"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/browser/browsertest"
	"bidbot-engine/internal/console"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/humanize"
)

const (
	base  = "https://www.workana.com"
	login = "https://www.workana.com/login"
)

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type memSession struct {
	blob  []byte
	saved []byte
}

func (m *memSession) Load() ([]byte, error) {
	if m.blob == nil {
		return nil, errs.ErrNotFound
	}
	return m.blob, nil
}

func (m *memSession) Save(b []byte) error { m.saved = b; return nil }

// operator simulates someone finishing the login in the browser.
type operator struct {
	fake  *browsertest.Fake
	dest  string
	calls int
}

func (o *operator) WaitForLogin(ctx context.Context) error {
	o.calls++
	if o.dest == "" {
		return nil
	}
	return o.fake.Navigate(ctx, o.dest)
}

func newAuth(fake *browsertest.Fake, sess SessionStore, w Waiter) *Authenticator {
	return &Authenticator{
		Driver:   fake,
		Pacer:    humanize.NewPacer(humanize.ProfileFor(humanize.SpeedFast), noSleep{}, rand.New(rand.NewPCG(1, 2))),
		BaseURL:  base,
		LoginURL: login,
		Session:  sess,
		Waiter:   w,
	}
}

func TestProbe(t *testing.T) {
	cases := []struct {
		name string
		url  string
		html string
		want bool
	}{
		{"dashboard marker", base, "<a>Mi Perfil</a>", true},
		{"no login prompt", base, "<p>Bienvenido</p>", true},
		{"login prompt", base, "<a>Iniciar sesión</a>", false},
		{"login url wins", login, "<a>Dashboard</a>", false},
		{"login query", base + "/?ref=login", "<p>hola</p>", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Probe(tc.url, tc.html))
		})
	}
}

func TestProfileSessionIsEnough(t *testing.T) {
	fake := browsertest.New(map[string]browsertest.Page{base: {HTML: "<a>Mis propuestas</a>"}})
	w := &operator{fake: fake}

	st, err := newAuth(fake, &memSession{}, w).EnsureAuthenticated(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Authenticated, st)
	assert.Zero(t, w.calls)
	assert.Equal(t, []string{base}, fake.Navigations)
}

func TestRestoreFromSavedCookies(t *testing.T) {
	fake := browsertest.New(map[string]browsertest.Page{base: {HTML: "<a>Iniciar sesión</a>"}})
	sess := &memSession{blob: []byte(`[{"name":"sid"}]`)}
	a := newAuth(fake, sess, &operator{fake: fake})
	// cookies only take effect once imported
	a.Driver = &cookieFake{Fake: fake}

	st, err := a.EnsureAuthenticated(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Authenticated, st)
	assert.Equal(t, sess.blob, fake.Session)
	assert.Len(t, fake.Navigations, 2)
}

type cookieFake struct {
	*browsertest.Fake
}

func (c *cookieFake) ImportSession(ctx context.Context, blob []byte) error {
	if err := c.Fake.ImportSession(ctx, blob); err != nil {
		return err
	}
	c.Fake.Pages[base] = browsertest.Page{HTML: "<a>Dashboard</a>"}
	return nil
}

func TestManualLoginSavesSession(t *testing.T) {
	fake := browsertest.New(map[string]browsertest.Page{
		base:  {HTML: "<a>Iniciar sesión</a>"},
		login: {HTML: `<form><input type="email"><input type="password"><button type="submit">Entrar</button></form>`},
	})
	fake.Session = []byte(`[{"name":"fresh"}]`)
	sess := &memSession{}
	w := &operator{fake: fake, dest: base + "/dashboard"}
	a := newAuth(fake, sess, w)
	a.Credentials = Credentials{Email: "ana@example.com", Password: "s3cret"}

	st, err := a.EnsureAuthenticated(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Authenticated, st)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "ana@example.com", fake.Typed["input[type='email']"])
	assert.Equal(t, "s3cret", fake.Typed["input[type='password']"])
	assert.JSONEq(t, `[{"name":"fresh"}]`, string(sess.saved))
}

func TestManualLoginNeverCompleted(t *testing.T) {
	fake := browsertest.New(map[string]browsertest.Page{
		base:  {HTML: "<a>Login</a>"},
		login: {HTML: "<form></form>"},
	})
	sess := &memSession{}

	st, err := newAuth(fake, sess, &operator{fake: fake}).EnsureAuthenticated(context.Background())

	assert.Equal(t, RequiresManualLogin, st)
	assert.True(t, errs.Is(err, errs.ErrManualLoginRequired))
	assert.Nil(t, sess.saved)
}

func TestFileSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	fs := FileSession{Path: path}

	_, err := fs.Load()
	assert.True(t, errs.Is(err, errs.ErrNotFound))

	require.NoError(t, fs.Save([]byte("[]")))
	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPromptWaitSharesInput(t *testing.T) {
	lines := console.NewLines(strings.NewReader("\nlater\n"))
	w := PromptWait{Lines: lines, Out: io.Discard}

	require.NoError(t, w.WaitForLogin(context.Background()))
	next, err := lines.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "later", next)

	assert.NoError(t, w.WaitForLogin(context.Background()))

	pr, _ := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, PromptWait{Lines: console.NewLines(pr), Out: io.Discard}.WaitForLogin(ctx), context.Canceled)
}
