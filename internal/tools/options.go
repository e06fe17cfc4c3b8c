package tools

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// checkRecognized rejects any config key outside the recognized set.
// Every tool enumerates its own options; a typo'd option is a configuration
// error, not something to silently ignore.
func checkRecognized(config map[string]any, recognized ...string) error {
	if len(config) == 0 {
		return nil
	}
	ok := make(map[string]bool, len(recognized))
	for _, k := range recognized {
		ok[k] = true
	}

	var unknown []string
	for k := range config {
		if !ok[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unrecognized option(s) %s (recognized: %s)",
		strings.Join(unknown, ", "), strings.Join(recognized, ", "))
}

func optString(config map[string]any, key, def string) string {
	v, ok := config[key]
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

func optBool(config map[string]any, key string, def bool) bool {
	v, ok := config[key]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func optInt(config map[string]any, key string, def int) int {
	v, ok := config[key]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

func optFloat(config map[string]any, key string, def float64) float64 {
	v, ok := config[key]
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func optDuration(config map[string]any, key string, def time.Duration) time.Duration {
	v, ok := config[key]
	if !ok {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}
