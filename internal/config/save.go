package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/humanize"
)

func Validate(cfg Config) error {
	var problems []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		problems = append(problems, "app.port must be 1..65535")
	}
	if strings.TrimSpace(cfg.App.DataDir) == "" {
		problems = append(problems, "app.data_dir is required")
	}

	checkCap := func(name string, v int) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	checkCap("limits.max_per_day", cfg.Limits.MaxPerDay)
	checkCap("limits.max_per_week", cfg.Limits.MaxPerWeek)
	checkCap("limits.max_per_run", cfg.Limits.MaxPerRun)

	if cfg.Bidding.MinScore < 0 || cfg.Bidding.MinScore > 100 {
		problems = append(problems, "bidding.min_score must be 0..100")
	}
	if cfg.Bidding.PricePercentage <= 0 || cfg.Bidding.PricePercentage > 2 {
		problems = append(problems, "bidding.price_percentage must be in (0, 2]")
	}
	if cfg.Bidding.MinBidsForInsight < 0 {
		problems = append(problems, "bidding.min_bids_for_insight must be >= 0")
	}
	if cfg.Bidding.DefaultBudget <= 0 {
		problems = append(problems, "bidding.default_budget must be > 0")
	}
	if cfg.Bidding.MinClientRatingTenths < 0 || cfg.Bidding.MinClientRatingTenths > 50 {
		problems = append(problems, "bidding.min_client_rating_tenths must be 0..50")
	}
	if cfg.Bidding.ExtrasMaxAttempts <= 0 {
		problems = append(problems, "bidding.extras_max_attempts must be > 0")
	}

	switch cfg.Run.SpeedMode {
	case humanize.SpeedFast, humanize.SpeedSafe:
	default:
		problems = append(problems, fmt.Sprintf("run.speed_mode %q must be fast or safe", cfg.Run.SpeedMode))
	}
	switch cfg.AI.Provider {
	case "openai", "gemini", "openrouter":
	default:
		problems = append(problems, fmt.Sprintf("ai.provider %q must be openai, gemini or openrouter", cfg.AI.Provider))
	}

	if _, err := cfg.Trigger(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errs.New("config validation failed:\n- " + joinLines(problems))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return errs.Wrap(err, "marshal config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create %s", dir)
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errs.Wrapf(err, "write %s", tmp)
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n- ")
}
