package cache

import (
	"strings"
	"testing"
)

func TestWireKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain city", "london", "weatherview:london"},
		{"space sanitized", "new york", "weatherview:new_york"},
		{"tab and newline sanitized", "bad\tkey\n", "weatherview:bad_key_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wireKey(tt.in); got != tt.want {
				t.Errorf("wireKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWireKey_LongKeyTruncated(t *testing.T) {
	got := wireKey(strings.Repeat("x", 300))
	if len(got) > maxKeyLen {
		t.Errorf("key length = %d, want <= %d", len(got), maxKeyLen)
	}
	if !strings.HasPrefix(got, keyPrefix) {
		t.Errorf("truncated key lost prefix: %q", got[:20])
	}
}

func TestParseAddrs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"single", "localhost:11211", 1},
		{"multiple with spaces", "host1:11211, host2:11211", 2},
		{"empty entries dropped", "host1:11211,,  ,host2:11211", 2},
		{"empty string", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseAddrs(tt.in); len(got) != tt.want {
				t.Errorf("parseAddrs(%q) = %v, want %d entries", tt.in, got, tt.want)
			}
		})
	}
}
