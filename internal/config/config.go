package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/humanize"
	"bidbot-engine/internal/scheduler"
)

type Config struct {
	App struct {
		DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`
		Port     int    `yaml:"port" mapstructure:"port"`
		JSONLogs bool   `yaml:"json_logs" mapstructure:"json_logs"`
	} `yaml:"app" mapstructure:"app"`

	Marketplace struct {
		BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
		LoginURL  string `yaml:"login_url" mapstructure:"login_url"`
		SearchURL string `yaml:"search_url" mapstructure:"search_url"`
		Email     string `yaml:"email" mapstructure:"email"`
	} `yaml:"marketplace" mapstructure:"marketplace"`

	AI struct {
		Provider          string   `yaml:"provider" mapstructure:"provider"` // openai | gemini | openrouter
		BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
		Models            []string `yaml:"models" mapstructure:"models"`
		TimeoutSeconds    int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
		RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	} `yaml:"ai" mapstructure:"ai"`

	Browser struct {
		Headless   bool   `yaml:"headless" mapstructure:"headless"`
		ProfileDir string `yaml:"profile_dir" mapstructure:"profile_dir"`
		ExecPath   string `yaml:"exec_path" mapstructure:"exec_path"`
	} `yaml:"browser" mapstructure:"browser"`

	Limits struct {
		MaxPerDay  int `yaml:"max_per_day" mapstructure:"max_per_day"`
		MaxPerWeek int `yaml:"max_per_week" mapstructure:"max_per_week"`
		MaxPerRun  int `yaml:"max_per_run" mapstructure:"max_per_run"`
	} `yaml:"limits" mapstructure:"limits"`

	Bidding struct {
		MinScore              int     `yaml:"min_score" mapstructure:"min_score"`
		PricePercentage       float64 `yaml:"price_percentage" mapstructure:"price_percentage"`
		MinBidsForInsight     int     `yaml:"min_bids_for_insight" mapstructure:"min_bids_for_insight"`
		DefaultBudget         int     `yaml:"default_budget" mapstructure:"default_budget"`
		MinClientRatingTenths int     `yaml:"min_client_rating_tenths" mapstructure:"min_client_rating_tenths"`
		ExtrasMaxAttempts     int     `yaml:"extras_max_attempts" mapstructure:"extras_max_attempts"`
	} `yaml:"bidding" mapstructure:"bidding"`

	Run struct {
		AutoMode               bool   `yaml:"auto_mode" mapstructure:"auto_mode"`
		SpeedMode              string `yaml:"speed_mode" mapstructure:"speed_mode"` // fast | safe
		ManualLoginWaitSeconds int    `yaml:"manual_login_wait_seconds" mapstructure:"manual_login_wait_seconds"`
	} `yaml:"run" mapstructure:"run"`

	// Pacing overrides the speed profile; zero values keep the profile default.
	Pacing struct {
		TypeMinMS    int  `yaml:"type_min_ms" mapstructure:"type_min_ms"`
		TypeMaxMS    int  `yaml:"type_max_ms" mapstructure:"type_max_ms"`
		CooldownMinS int  `yaml:"cooldown_min_s" mapstructure:"cooldown_min_s"`
		CooldownMaxS int  `yaml:"cooldown_max_s" mapstructure:"cooldown_max_s"`
		TypoPerMille int  `yaml:"typo_per_mille" mapstructure:"typo_per_mille"`
		DisableTypos bool `yaml:"disable_typos" mapstructure:"disable_typos"`
	} `yaml:"pacing" mapstructure:"pacing"`

	Schedule struct {
		Times    []string `yaml:"times" mapstructure:"times"`
		Weekdays []string `yaml:"weekdays" mapstructure:"weekdays"`
	} `yaml:"schedule" mapstructure:"schedule"`
}

// envBindings maps config keys to the environment names operators already use.
var envBindings = map[string]string{
	"app.data_dir":                 "BIDBOT_DATA_DIR",
	"marketplace.email":            "WORKANA_EMAIL",
	"ai.provider":                  "AI_PROVIDER",
	"browser.headless":             "HEADLESS_MODE",
	"run.auto_mode":                "AUTO_MODE",
	"run.speed_mode":               "SPEED_MODE",
	"limits.max_per_day":           "MAX_PROPOSALS_PER_DAY",
	"limits.max_per_week":          "MAX_PROPOSALS_PER_WEEK",
	"limits.max_per_run":           "MAX_PROPOSALS_PER_EXECUTION",
	"bidding.min_score":            "MIN_SCORE_TO_BID",
	"bidding.price_percentage":     "PRICE_PERCENTAGE",
	"bidding.min_bids_for_insight": "MIN_BIDS_FOR_INSIGHT",
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", "data")
	v.SetDefault("app.port", 38472)
	v.SetDefault("app.json_logs", false)

	v.SetDefault("marketplace.base_url", "https://www.workana.com")
	v.SetDefault("marketplace.login_url", "https://www.workana.com/login")
	v.SetDefault("marketplace.search_url", DefaultSearchURL)

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("ai.requests_per_second", 1.0)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.profile_dir", "chrome_profile")

	v.SetDefault("limits.max_per_day", 7)
	v.SetDefault("limits.max_per_week", 52)
	v.SetDefault("limits.max_per_run", 6)

	v.SetDefault("bidding.min_score", 65)
	v.SetDefault("bidding.price_percentage", 0.70)
	v.SetDefault("bidding.min_bids_for_insight", 5)
	v.SetDefault("bidding.default_budget", 50000)
	v.SetDefault("bidding.min_client_rating_tenths", 35)
	v.SetDefault("bidding.extras_max_attempts", 15)

	v.SetDefault("run.auto_mode", false)
	v.SetDefault("run.speed_mode", humanize.SpeedSafe)
	v.SetDefault("run.manual_login_wait_seconds", 30)

	v.SetDefault("schedule.times", []string{"09:00", "17:00"})
	v.SetDefault("schedule.weekdays", []string{"mon", "tue", "wed", "thu", "fri"})
}

const DefaultSearchURL = "https://www.workana.com/jobs?agreement=fixed&category=it-programming&language=xx&publication=1d" +
	"&skills=angularjs%2Capi%2Cartificial-intelligence%2Cc-1%2Cc-2%2Ccss%2Cdjango%2Cdocker%2Cflask%2Chtml%2Cjava" +
	"%2Cjavascript%2Claravel%2Cmysql%2Cnode-js%2Cphp%2Cpython%2Cqa-automation%2Creact-js%2Creact-native" +
	"%2Creact-query%2Cresponsive-web-design%2Cselenium%2Csql%2Cweb-scraping"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("BIDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	SetDefaults(v)
	return v
}

// Default returns the built-in configuration with the environment applied.
func Default() Config {
	cfg, _ := decode(newViper())
	return cfg
}

// Load reads path (YAML) and overlays the environment on top of it.
// A missing file is not an error; defaults and env still apply.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errs.Wrapf(err, "read config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errs.Wrapf(err, "stat config %s", path)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errs.Wrap(err, "unmarshal config")
	}
	cfg.Run.SpeedMode = strings.ToLower(strings.TrimSpace(cfg.Run.SpeedMode))
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	return cfg, nil
}

// Profile expands the speed mode and any overrides into concrete pacing.
func (c Config) Profile() humanize.Profile {
	p := humanize.ProfileFor(c.Run.SpeedMode)
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	if c.Pacing.TypeMinMS > 0 && c.Pacing.TypeMaxMS >= c.Pacing.TypeMinMS {
		p.Type = humanize.Range{Min: ms(c.Pacing.TypeMinMS), Max: ms(c.Pacing.TypeMaxMS)}
	}
	if c.Pacing.CooldownMinS > 0 && c.Pacing.CooldownMaxS >= c.Pacing.CooldownMinS {
		p.Cooldown = humanize.Range{
			Min: time.Duration(c.Pacing.CooldownMinS) * time.Second,
			Max: time.Duration(c.Pacing.CooldownMaxS) * time.Second,
		}
	}
	if c.Pacing.TypoPerMille > 0 {
		p.TypoChance = float64(c.Pacing.TypoPerMille) / 1000
	}
	if c.Pacing.DisableTypos {
		p.TypoChance = 0
	}
	return p
}

func (c Config) AITimeout() time.Duration {
	if c.AI.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

func (c Config) Trigger() (scheduler.Trigger, error) {
	return scheduler.ParseTrigger(c.Schedule.Times, c.Schedule.Weekdays, time.Local)
}
