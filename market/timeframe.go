package market

import (
	"fmt"
	"strings"
	"time"
)

func SecondsToTFString(sec int32) (string, error) {
	if sec <= 0 {
		return "", fmt.Errorf("invalid timeframe seconds: %d", sec)
	}

	// Seconds
	if sec < 60 {
		return fmt.Sprintf("S%d", sec), nil
	}

	// Minutes
	if sec < 3600 && sec%60 == 0 {
		return fmt.Sprintf("M%d", sec/60), nil
	}

	// Hours
	if sec < 86400 && sec%3600 == 0 {
		return fmt.Sprintf("H%d", sec/3600), nil
	}

	// Days
	if sec%86400 == 0 {
		days := sec / 86400
		if days == 7 {
			return "W1", nil
		}
		if days == 30 {
			return "MN1", nil
		}
		return fmt.Sprintf("D%d", days), nil
	}

	return "", fmt.Errorf("cannot map timeframe: %d seconds", sec)
}

func TFStringToSeconds(tf string) (int32, error) {
	switch strings.ToUpper(tf) {
	case "S1":
		return 1, nil
	case "S5":
		return 5, nil
	case "S10":
		return 10, nil
	case "S30":
		return 30, nil
	case "M1":
		return 60, nil
	case "M5":
		return 300, nil
	case "M15":
		return 900, nil
	case "M30":
		return 1800, nil
	case "H1":
		return 3600, nil
	case "H4":
		return 14400, nil
	case "D1":
		return 86400, nil
	case "W1":
		return 604800, nil
	case "MN1":
		return 2592000, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", tf)
	}
}

// ParseTimeframe accepts a timeframe code (M5, H1, ...) or a Go duration
// ("90s", "2m") and returns whole seconds.
func ParseTimeframe(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if sec, err := TFStringToSeconds(s); err == nil {
		return sec, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unsupported timeframe %q", s)
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("timeframe %q must be a whole number of seconds", s)
	}
	return int32(d / time.Second), nil
}
