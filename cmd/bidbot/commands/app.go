// Package commands holds the bidbot cobra commands and the wiring that turns
// a loaded config into a ready engine.
package commands

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bidbot-engine/internal/auth"
	"bidbot-engine/internal/browser"
	"bidbot-engine/internal/browser/chrome"
	"bidbot-engine/internal/config"
	"bidbot-engine/internal/console"
	"bidbot-engine/internal/engine"
	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/events"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/ledger"
	"bidbot-engine/internal/llm"
	"bidbot-engine/internal/logger"
	"bidbot-engine/internal/quota"
	"bidbot-engine/internal/secrets"
	"bidbot-engine/internal/store"
	"bidbot-engine/internal/submit"
)

var (
	dataDirFlag string
	verboseFlag bool
	jsonLogFlag bool
)

// AddGlobalFlags registers the flags every command understands.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default $BIDBOT_DATA_DIR or ./data)")
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().BoolVar(&jsonLogFlag, "json-logs", false, "JSON console logs")
}

// apiKeyEnv names the environment variable each provider's key is read from
// when the keychain has none.
var apiKeyEnv = map[string]string{
	llm.ProviderOpenAI:     "OPENAI_API_KEY",
	llm.ProviderGemini:     "GEMINI_KEY",
	llm.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

const (
	passwordEnv  = "WORKANA_PASS"
	navPerSecond = 0.5
	autoDelay    = 2 * time.Second
)

// App is the loaded configuration plus the logger built from it.
type App struct {
	Cfg     config.Config
	CfgPath string
	Log     *zap.SugaredLogger
}

func resolveDataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if d := os.Getenv("BIDBOT_DATA_DIR"); d != "" {
		return d
	}
	return "data"
}

// loadApp bootstraps the data dir and config, validates it and initializes
// logging. Validation warnings are logged, errors abort.
func loadApp() (*App, error) {
	dataDir := resolveDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create data dir %s", dataDir)
	}

	path, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return nil, errs.Wrap(err, "config bootstrap")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.App.DataDir = dataDirFlag
	}

	cfg, res := config.NormalizeAndValidate(cfg)

	opts := logger.DefaultOptions(cfg.App.DataDir)
	opts.File = cfg.LogPath()
	opts.JSON = cfg.App.JSONLogs || jsonLogFlag
	opts.Debug = verboseFlag
	if err := logger.Initialize(opts); err != nil {
		return nil, errs.Wrap(err, "initialize logger")
	}
	log := logger.Named("bidbot")

	for _, w := range res.Warnings {
		log.Warnw("config warning", "warning", w)
	}
	if !res.OK() {
		return nil, errs.WithHintf(errs.Newf("invalid config %s:\n- %s", path, strings.Join(res.Errors, "\n- ")),
			"fix the file or run `bidbot config show` to see the effective values")
	}
	return &App{Cfg: cfg, CfgPath: path, Log: log}, nil
}

// openLedger takes the instance lock and loads the ledger. The returned
// release func unlocks it.
func (a *App) openLedger() (*ledger.Store, func(), error) {
	path := a.Cfg.LedgerPath()
	unlock, err := ledger.Lock(path)
	if err != nil {
		return nil, nil, err
	}
	l := ledger.Open(path, a.Log.Named("ledger"))
	a.Log.Infow("ledger loaded", "path", path, "entries", l.Len())
	release := func() {
		if err := unlock(); err != nil {
			a.Log.Warnw("unlock ledger", "error", err)
		}
	}
	return l, release, nil
}

// openLedgerReadOnly loads the ledger without the instance lock, for
// inspection commands that may run next to a live engine.
func (a *App) openLedgerReadOnly() *ledger.Store {
	return ledger.Open(a.Cfg.LedgerPath(), a.Log.Named("ledger"))
}

func (a *App) openStore() (*store.DB, error) {
	db, err := store.Open(a.Cfg.AuditDBPath())
	if err != nil {
		return nil, errs.Wrap(err, "open audit db")
	}
	return db, nil
}

func (a *App) limiter(l *ledger.Store) *quota.Limiter {
	return quota.NewLimiter(l, caps(a.Cfg))
}

func caps(cfg config.Config) quota.Caps {
	return quota.Caps{
		PerRun:  cfg.Limits.MaxPerRun,
		PerDay:  cfg.Limits.MaxPerDay,
		PerWeek: cfg.Limits.MaxPerWeek,
	}
}

func settings(cfg config.Config) engine.Settings {
	return engine.Settings{
		BaseURL:   cfg.Marketplace.BaseURL,
		LoginURL:  cfg.Marketplace.LoginURL,
		SearchURL: cfg.Marketplace.SearchURL,

		Caps:            caps(cfg),
		MinScore:        cfg.Bidding.MinScore,
		MinRatingTenths: cfg.Bidding.MinClientRatingTenths,

		MinBidsForInsight: cfg.Bidding.MinBidsForInsight,
		PricePercentage:   cfg.Bidding.PricePercentage,
		DefaultBudget:     cfg.Bidding.DefaultBudget,
		ExtrasMaxAttempts: cfg.Bidding.ExtrasMaxAttempts,

		Profile:      cfg.Profile(),
		NavPerSecond: navPerSecond,
	}
}

func (a *App) scorer() (*llm.Client, error) {
	provider := a.Cfg.AI.Provider
	key, err := secrets.Resolve(secrets.AIAccount(provider), os.Getenv(apiKeyEnv[provider]))
	if err != nil && !errs.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	return llm.NewClient(llm.Config{
		Provider:          provider,
		APIKey:            key,
		BaseURL:           a.Cfg.AI.BaseURL,
		Models:            a.Cfg.AI.Models,
		Timeout:           a.Cfg.AITimeout(),
		RequestsPerSecond: a.Cfg.AI.RequestsPerSecond,
		Logger:            a.Log.Named("llm"),
	})
}

func (a *App) credentials() auth.Credentials {
	email := a.Cfg.Marketplace.Email
	if email == "" {
		return auth.Credentials{}
	}
	pass, err := secrets.Resolve(secrets.MarketplaceAccount(email), os.Getenv(passwordEnv))
	if err != nil {
		a.Log.Debugw("no marketplace password, login stays manual", "error", err)
	}
	return auth.Credentials{Email: email, Password: pass}
}

func (a *App) launcher() engine.Launcher {
	opts := chrome.Options{
		Headless:   a.Cfg.Browser.Headless,
		ProfileDir: a.Cfg.ProfilePath(),
		ExecPath:   a.Cfg.Browser.ExecPath,
		Log:        a.Log.Named("chrome"),
	}
	return func(ctx context.Context) (browser.Driver, error) {
		return chrome.Launch(ctx, opts)
	}
}

type engineDeps struct {
	Ledger *ledger.Store
	DB     *store.DB
	Events events.Publisher
	// Interactive prompts on the terminal for login and confirmation unless
	// auto mode is on.
	Interactive bool
}

func (a *App) buildEngine(d engineDeps) (*engine.Engine, error) {
	sc, err := a.scorer()
	if err != nil {
		return nil, err
	}

	cfg := a.Cfg
	pacer := humanize.NewPacer(cfg.Profile(), nil, nil)

	var waiter auth.Waiter = auth.TimedWait{
		Pacer: pacer,
		For:   time.Duration(cfg.Run.ManualLoginWaitSeconds) * time.Second,
	}
	var confirmer submit.Confirmer = submit.AutoConfirm{Pacer: pacer, Delay: autoDelay}
	if d.Interactive && !cfg.Run.AutoMode {
		stdin := console.NewLines(os.Stdin)
		waiter = auth.PromptWait{Lines: stdin, Out: os.Stdout}
		confirmer = submit.PromptConfirm{Lines: stdin, Out: os.Stdout}
	}

	e := &engine.Engine{
		Settings:    settings(cfg),
		Launch:      a.launcher(),
		Scorer:      sc,
		Ledger:      d.Ledger,
		Session:     auth.FileSession{Path: cfg.SessionPath()},
		Waiter:      waiter,
		Credentials: a.credentials(),
		Confirmer:   confirmer,
		Events:      d.Events,
		Log:         a.Log.Named("engine"),
	}
	if d.DB != nil {
		e.Audit = engine.SQLAudit{DB: d.DB}
	}
	return e, nil
}
