// Package platform holds the pieces shared by every platform client:
// fail-fast credential validation and the default collection window.
package platform

import (
	"fmt"
	"time"

	"pulseboard/internal/credentials"
)

// DefaultWindowDays is the trailing collection window applied when a caller
// passes zero start/end times.
const DefaultWindowDays = 30

// ConfigError reports a missing required credential field. It is fatal at
// client construction and never retried.
type ConfigError struct {
	Platform string
	Key      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing required credential: %s", e.Platform, e.Key)
}

// RequireKeys validates that every required key is present and non-empty,
// returning a ConfigError naming the first missing one.
func RequireKeys(platform string, creds credentials.Credentials, keys ...string) error {
	for _, key := range keys {
		if creds[key] == "" {
			return &ConfigError{Platform: platform, Key: key}
		}
	}
	return nil
}

// Window fills in the default trailing 30-day range for any zero bound.
func Window(start, end time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -DefaultWindowDays)
	}
	return start, end
}
