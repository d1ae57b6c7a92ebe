package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ChannelIDRegex validates broker channel ID format
var ChannelIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// OneOf returns a validator that accepts only the listed values.
// The failure message names both the offending value and the full set.
func OneOf(allowed ...string) func(string) error {
	set := strings.Join(allowed, ",")
	return func(input string) error {
		for _, a := range allowed {
			if input == a {
				return nil
			}
		}
		return fmt.Errorf("Value %s not in range [%s]", input, set)
	}
}

// IntRange returns a validator for an inclusive integer range.
// The failure message names the offending value and both bounds.
func IntRange(min, max int) func(int) error {
	return func(v int) error {
		if v < min || v > max {
			return fmt.Errorf("Value %d not in range [%d - %d]", v, min, max)
		}
		return nil
	}
}

// JSONValue checks that the input is a syntactically valid JSON value.
// Structural requirements on the decoded value are a separate concern.
func JSONValue(input string) error {
	if !json.Valid([]byte(input)) {
		return fmt.Errorf("Value %s is not JSON Value", input)
	}
	return nil
}

// ValidateChannelID validates a broker channel ID
func ValidateChannelID(channelID string) error {
	if channelID == "" {
		return fmt.Errorf("channel ID is required")
	}
	if len(channelID) > 100 {
		return fmt.Errorf("channel ID is too long (max 100 characters)")
	}
	if !ChannelIDRegex.MatchString(channelID) {
		return fmt.Errorf("invalid channel ID format")
	}
	return nil
}

// ValidateSignalingURL validates a signaling endpoint URL
func ValidateSignalingURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("signaling URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid signaling URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid signaling URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("signaling URL must have a host")
	}
	return nil
}
