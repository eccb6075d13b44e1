package config

import (
	"fmt"
	"strings"

	"bidbot-engine/internal/humanize"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus every error and warning found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.AI.Models = trimList(out.AI.Models)
	out.Schedule.Times = trimList(out.Schedule.Times)
	out.Schedule.Weekdays = trimList(out.Schedule.Weekdays)
	out.Run.SpeedMode = strings.ToLower(strings.TrimSpace(out.Run.SpeedMode))
	out.AI.Provider = strings.ToLower(strings.TrimSpace(out.AI.Provider))
	out.Marketplace.BaseURL = strings.TrimRight(strings.TrimSpace(out.Marketplace.BaseURL), "/")

	if err := Validate(out); err != nil {
		for _, line := range strings.Split(err.Error(), "\n- ") {
			if strings.HasPrefix(line, "config validation failed:") {
				continue
			}
			res.addErr("%s", line)
		}
	}

	// caps sanity
	if out.Limits.MaxPerWeek > 0 && out.Limits.MaxPerDay > out.Limits.MaxPerWeek {
		res.addWarn("limits.max_per_day (%d) exceeds limits.max_per_week (%d); the weekly cap will bind first.",
			out.Limits.MaxPerDay, out.Limits.MaxPerWeek)
	}
	if out.Limits.MaxPerRun == 0 {
		res.addWarn("limits.max_per_run is 0; runs will never send.")
	}
	if out.Limits.MaxPerWeek == 0 {
		res.addWarn("limits.max_per_week is 0; runs will never start.")
	}

	// pacing sanity
	p := out.Profile()
	if out.Run.SpeedMode == humanize.SpeedFast && out.Run.AutoMode {
		res.addWarn("fast speed mode with auto_mode=true submits unattended at the quickest cadence.")
	}
	if p.Cooldown.Max < p.Cooldown.Min {
		res.addErr("pacing cooldown max is below min")
	}

	if strings.TrimSpace(out.Marketplace.Email) == "" {
		res.addWarn("marketplace.email is empty; login will rely on a saved session or manual login.")
	}
	if !out.Run.AutoMode && out.Browser.Headless {
		res.addWarn("headless=true with auto_mode=false; manual confirmation has no visible browser to inspect.")
	}

	return out, res
}
