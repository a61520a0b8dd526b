package route

import (
	"testing"
	"time"
)

func TestNewRouteClampsBounds(t *testing.T) {
	tests := []struct {
		name        string
		timeout     int
		retries     int
		wantTimeout time.Duration
		wantRetries int
	}{
		{"below minimums", 0, -3, 1 * time.Second, 0},
		{"within bounds", 120, 2, 120 * time.Second, 2},
		{"above maximums", 7200, 99, 600 * time.Second, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRoute("anthropic", nil, "", FailModeFallthrough, tt.timeout, tt.retries)
			if r.Timeout() != tt.wantTimeout {
				t.Errorf("Timeout() = %v, want %v", r.Timeout(), tt.wantTimeout)
			}
			if r.Retries() != tt.wantRetries {
				t.Errorf("Retries() = %v, want %v", r.Retries(), tt.wantRetries)
			}
		})
	}
}

func TestParseFailMode(t *testing.T) {
	if mode, err := ParseFailMode(""); err != nil || mode != FailModeFallthrough {
		t.Errorf("ParseFailMode(empty) = %v, %v", mode, err)
	}
	if mode, err := ParseFailMode("hard_fail"); err != nil || mode != FailModeHardFail {
		t.Errorf("ParseFailMode(hard_fail) = %v, %v", mode, err)
	}
	if mode, err := ParseFailMode("hardFail"); err != nil || mode != FailModeHardFail {
		t.Errorf("ParseFailMode(hardFail) = %v, %v", mode, err)
	}
	if _, err := ParseFailMode("explode"); err == nil {
		t.Error("ParseFailMode accepted an out-of-enum value")
	}
}

func TestTableHashStableAndContentSensitive(t *testing.T) {
	a := DefaultTable()
	b := DefaultTable()
	if a.Hash() != b.Hash() {
		t.Error("identical tables hash differently")
	}

	c := NewTable([]Route{NewRoute("openai", nil, "", FailModeFallthrough, 60, 0)}, 2, "custom")
	if a.Hash() == c.Hash() {
		t.Error("different tables share a hash")
	}
}

func TestRouteImmutability(t *testing.T) {
	conditions := []string{"ci"}
	r := NewRoute("anthropic", conditions, "", FailModeFallthrough, 60, 0)
	conditions[0] = "mutated"
	if r.Conditions()[0] != "ci" {
		t.Error("route shares backing storage with caller slice")
	}

	got := r.Conditions()
	got[0] = "mutated"
	if r.Conditions()[0] != "ci" {
		t.Error("route exposes mutable condition storage")
	}
}
