package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidbot-engine/internal/config"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/secrets"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxPerRun = 3
	cfg.Limits.MaxPerDay = 0
	cfg.Bidding.MinClientRatingTenths = 40
	cfg.Run.SpeedMode = "fast"

	s := settings(cfg)
	assert.Equal(t, 3, s.Caps.PerRun)
	assert.Equal(t, 0, s.Caps.PerDay)
	assert.Equal(t, 52, s.Caps.PerWeek)
	assert.Equal(t, 40, s.MinRatingTenths)
	assert.Equal(t, 0.70, s.PricePercentage)
	assert.Equal(t, "fast", s.Profile.Name)
	assert.Equal(t, 120*time.Second, s.Profile.Cooldown.Min)
	assert.Equal(t, cfg.Marketplace.SearchURL, s.SearchURL)
}

func TestAccountFor(t *testing.T) {
	acc, err := accountFor("Gemini", "")
	require.NoError(t, err)
	assert.Equal(t, secrets.AIAccount("gemini"), acc)

	acc, err = accountFor("workana", "Me@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "marketplace:me@example.com", acc)

	_, err = accountFor("workana", "")
	require.Error(t, err)

	acc, err = accountFor("custom:thing", "")
	require.NoError(t, err)
	assert.Equal(t, "custom:thing", acc)
}

func TestLoadAppBootstrapsDataDir(t *testing.T) {
	dir := t.TempDir()
	dataDirFlag = dir
	t.Cleanup(func() { dataDirFlag = "" })

	app, err := loadApp()
	require.NoError(t, err)
	assert.Equal(t, dir, app.Cfg.App.DataDir)
	assert.FileExists(t, app.CfgPath)

	l, release, err := app.openLedger()
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())

	_, _, err = app.openLedger()
	assert.True(t, errs.Is(err, errs.ErrLedgerLocked))

	release()
	_, release2, err := app.openLedger()
	require.NoError(t, err)
	release2()
}
