package validation

import (
	"strings"
	"testing"
)

func TestOneOf(t *testing.T) {
	check := OneOf("VP8", "VP9", "H264")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"first value", "VP8", false},
		{"last value", "H264", false},
		{"unknown value", "AV1", true},
		{"wrong case", "vp8", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := check(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("OneOf() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOneOfMessageNamesValueAndSet(t *testing.T) {
	err := OneOf("OPUS", "PCMU")("MP3")
	if err == nil {
		t.Fatal("expected error for MP3")
	}
	msg := err.Error()
	if !strings.Contains(msg, "MP3") {
		t.Errorf("message %q does not name the offending value", msg)
	}
	if !strings.Contains(msg, "OPUS,PCMU") {
		t.Errorf("message %q does not name the allowed set", msg)
	}
}

func TestIntRange(t *testing.T) {
	check := IntRange(1, 60)

	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"lower bound", 1, false},
		{"upper bound", 60, false},
		{"inside", 30, false},
		{"below", 0, true},
		{"above", 120, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := check(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("IntRange() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIntRangeMessageNamesValueAndBounds(t *testing.T) {
	err := IntRange(1, 60)(120)
	if err == nil {
		t.Fatal("expected error for 120")
	}
	msg := err.Error()
	for _, want := range []string{"120", "1", "60"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not contain %q", msg, want)
		}
	}
}

func TestJSONValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object", `{"a":1}`, false},
		{"array", `[1,2,3]`, false},
		{"string", `"hello"`, false},
		{"number", `42`, false},
		{"null", `null`, false},
		{"bare word", `hello`, true},
		{"truncated object", `{"a":`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := JSONValue(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("JSONValue() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChannelID(t *testing.T) {
	tests := []struct {
		name      string
		channelID string
		wantErr   bool
	}{
		{"valid channel ID", "channel-1", false},
		{"valid with underscore", "channel_1", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 101), true},
		{"invalid chars", "channel 1", true},
		{"invalid chars 2", "channel@1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannelID(tt.channelID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChannelID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSignalingURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https", "https://example.com", false},
		{"valid ws", "ws://example.com", false},
		{"valid wss", "wss://example.com:5000/signaling", false},
		{"empty", "", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no host", "http://", true},
		{"invalid format", "not-a-url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignalingURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSignalingURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
