package modelpolicy

import (
	"fmt"
	"strings"
	"time"
)

// ParseResetDuration parses compound reset-duration strings as emitted in
// rate-limit headers ("2m59.56s", "1h", "120ms", "7.66s") into seconds.
func ParseResetDuration(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty reset duration")
	}

	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("unrecognized reset duration %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative reset duration %q", value)
	}

	return d.Seconds(), nil
}
