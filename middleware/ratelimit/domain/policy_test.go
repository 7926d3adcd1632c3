package domain

import (
	"testing"
	"time"
)

func TestMessagePolicy_MinuteBeforeHour(t *testing.T) {
	p := MessagePolicy(5, 50)
	if len(p) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(p))
	}
	if p[0].Name != "minute" || p[0].RetryAfter != 60*time.Second {
		t.Fatalf("expected minute window first with 60s retry, got %+v", p[0])
	}
	if p[1].Name != "hour" || p[1].RetryAfter != time.Hour {
		t.Fatalf("expected hour window second with 3600s retry, got %+v", p[1])
	}
}

func TestPolicy_ActiveSkipsDisabledWindows(t *testing.T) {
	p := MessagePolicy(0, 50)
	active := p.Active()
	if len(active) != 1 || active[0].Name != "hour" {
		t.Fatalf("expected only hour window, got %+v", active)
	}
	if got := p.Largest(); got != time.Hour {
		t.Fatalf("expected largest=1h, got %s", got)
	}
}

func TestPolicy_LargestEmpty(t *testing.T) {
	if got := MessagePolicy(0, 0).Largest(); got != 0 {
		t.Fatalf("expected 0 for fully disabled policy, got %s", got)
	}
}
