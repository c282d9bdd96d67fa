package statsig

import (
	"strings"
	"testing"
)

const iosUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 12_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.1 Mobile/15E148 Safari/604.1"

func TestUAParserFields(t *testing.T) {
	parser := newUAParser(UAParserOptions{EnsureLoaded: true})

	cases := []struct {
		field    string
		expected string
	}{
		{"os_name", "iOS"},
		{"osname", "iOS"},
		{"os_version", "12.2.0"},
		{"browser_name", "Mobile Safari"},
		{"browser_version", "12.1.0"},
	}
	for _, c := range cases {
		got, ok := parser.fieldValue(iosUserAgent, c.field)
		if !ok {
			t.Errorf("Expected field %q to parse", c.field)
			continue
		}
		if got != c.expected {
			t.Errorf("Expected %q for field %q, got %q", c.expected, c.field, got)
		}
	}

	if _, ok := parser.fieldValue(iosUserAgent, "screen_size"); ok {
		t.Errorf("Expected unknown field to report not parsed")
	}
}

func TestUAParserDisabled(t *testing.T) {
	parser := newUAParser(UAParserOptions{Disabled: true})
	if !parser.settled() {
		t.Errorf("Expected a disabled parser to be settled")
	}
	if _, ok := parser.fieldValue(iosUserAgent, "os_name"); ok {
		t.Errorf("Expected a disabled parser to parse nothing")
	}
}

func TestUAParserRejectsOversizedAgents(t *testing.T) {
	parser := newUAParser(UAParserOptions{EnsureLoaded: true})
	oversized := strings.Repeat("a", maxUserAgentLength+1)
	if client := parser.parse(oversized); client != nil {
		t.Errorf("Expected oversized agent string to be rejected")
	}
}

func TestUAParserLazyLoadSettles(t *testing.T) {
	parser := newUAParser(UAParserOptions{LazyLoad: true})
	waitForCondition(t, func() bool {
		return parser.settled()
	})
	if _, ok := parser.fieldValue(iosUserAgent, "os_name"); !ok {
		t.Errorf("Expected parser to work once loaded")
	}
}
