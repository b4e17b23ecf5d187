package dedup

import (
	"context"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 2, 5, 4, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }

	got, err := m.Unseen(ctx, []uint64{3, 1, 2})
	if err != nil || !reflect.DeepEqual(got, []uint64{3, 1, 2}) {
		t.Fatalf("expected all unseen, got %v %v", got, err)
	}

	if err := m.Mark(ctx, []uint64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Unseen(ctx, []uint64{3, 1, 2}); !reflect.DeepEqual(got, []uint64{3}) {
		t.Errorf("expected [3], got %v", got)
	}

	now = now.Add(time.Hour)
	if got, _ := m.Unseen(ctx, []uint64{1}); !reflect.DeepEqual(got, []uint64{1}) {
		t.Errorf("expected expired id to be unseen again, got %v", got)
	}
	if m.Len() != 1 {
		t.Errorf("expected expired entry evicted, len %d", m.Len())
	}
}

func TestMemory_NoTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	m.Mark(ctx, []uint64{7})
	m.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if got, _ := m.Unseen(ctx, []uint64{7}); len(got) != 0 {
		t.Errorf("expected id to be remembered forever, got %v", got)
	}
}

func TestRedis(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	d := NewRedis(client, "test", 10*time.Minute)

	if err := d.Mark(ctx, []uint64{1357211137928904705}); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("test:msg:1357211137928904705") {
		t.Fatal("expected key to be written")
	}
	if ttl := s.TTL("test:msg:1357211137928904705"); ttl != 10*time.Minute {
		t.Errorf("expected ttl 10m, got %v", ttl)
	}

	got, err := d.Unseen(ctx, []uint64{42, 1357211137928904705, 43})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []uint64{42, 43}) {
		t.Errorf("expected [42 43], got %v", got)
	}

	s.FastForward(11 * time.Minute)
	if got, _ := d.Unseen(ctx, []uint64{1357211137928904705}); len(got) != 1 {
		t.Errorf("expected expired id to be unseen, got %v", got)
	}

	if got, err := d.Unseen(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("expected empty result for no ids, got %v %v", got, err)
	}
}

func TestRedis_Unavailable(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	d := NewRedis(client, "", time.Minute)
	if _, err := d.Unseen(context.Background(), []uint64{1}); err == nil {
		t.Error("expected error when redis is down")
	}
	if err := d.Mark(context.Background(), []uint64{1}); err == nil {
		t.Error("expected error when redis is down")
	}
}
