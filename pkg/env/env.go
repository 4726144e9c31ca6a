// Package env reads process settings that are needed before config.Load,
// such as the log format.
package env

import (
	"os"
	"strings"
)

const prefix = "REPLENISH_"

// Get returns REPLENISH_<key>, then the bare key, then fallback. Blank values
// count as unset.
func Get(key, fallback string) string {
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
