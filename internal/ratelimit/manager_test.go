package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCheckRate(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	client, err := Connect(context.Background(), "redis://"+s.Addr(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(client, "test", 3)
	defer m.Close()

	now := time.Date(2021, 2, 5, 4, 0, 15, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, remaining, reset, err := m.CheckRate(ctx, "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if !allowed || remaining != 3-i {
			t.Fatalf("request %d: allowed=%v remaining=%d", i, allowed, remaining)
		}
		if reset != 45 {
			t.Errorf("expected reset 45s, got %d", reset)
		}
	}

	if allowed, _, _, _ := m.CheckRate(ctx, "10.0.0.1"); allowed {
		t.Fatal("expected fourth request to be limited")
	}
	if allowed, _, _, _ := m.CheckRate(ctx, "10.0.0.2"); !allowed {
		t.Fatal("other clients should have their own window")
	}

	now = now.Add(time.Minute)
	if allowed, _, _, _ := m.CheckRate(ctx, "10.0.0.1"); !allowed {
		t.Fatal("expected new window to allow requests")
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url", "", 0); err == nil {
		t.Fatal("expected parse error")
	}
}
