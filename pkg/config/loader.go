package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/caarlos0/env/v10"
)

// redactedMarkers are substrings of variable names whose values never reach
// logs.
var redactedMarkers = []string{"PASSWORD", "SECRET", "TOKEN", "KEY"}

// Setting is one resolved environment variable.
type Setting struct {
	Key     string
	Value   string
	Default bool
}

// Settings is the resolved environment of a config struct, ordered by key.
// It logs as a group with secret values masked.
type Settings []Setting

// LogValue implements slog.LogValuer.
func (s Settings) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s))
	for _, st := range s {
		attrs = append(attrs, slog.String(st.Key, st.Value))
	}
	return slog.GroupValue(attrs...)
}

// Load parses process environment variables into cfg, which must be a
// pointer to a struct using `env` / `envDefault` tags.
func Load(cfg any) (Settings, error) {
	return parse(cfg, env.Options{})
}

// LoadFrom parses cfg from an explicit variable map instead of the process
// environment. Variables missing from vars take their envDefault.
func LoadFrom(cfg any, vars map[string]string) (Settings, error) {
	return parse(cfg, env.Options{Environment: vars})
}

func parse(cfg any, opts env.Options) (Settings, error) {
	var settings Settings
	opts.OnSet = func(key string, value any, isDefault bool) {
		settings = append(settings, Setting{
			Key:     key,
			Value:   redact(key, fmt.Sprint(value)),
			Default: isDefault,
		})
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

func redact(key, value string) string {
	if value == "" {
		return value
	}
	for _, m := range redactedMarkers {
		if strings.Contains(key, m) {
			return "***"
		}
	}
	return value
}
