package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnhub/payrecon/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "poll:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first hit allowed with count 1, got allowed=%v count=%d", allowed, count)
	}
	if got := mock.ttls["payrecon:rate_limit:poll:user-1"]; got != time.Minute {
		t.Fatalf("expected window ttl on first hit, got %v", got)
	}

	mock.ttls["payrecon:rate_limit:poll:user-1"] = 0
	allowed, count, err = client.FixedWindowAllow(ctx, "poll:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if mock.ttls["payrecon:rate_limit:poll:user-1"] != 0 {
		t.Fatal("ttl should only be set on the first hit")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "poll:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}

	if allowed, _, _ := client.FixedWindowAllow(ctx, "poll:user-2", 2, time.Minute); !allowed {
		t.Fatal("scopes must not share a counter")
	}
}

func TestFixedWindowAllowRejectsBadWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, _, err := client.FixedWindowAllow(context.Background(), "poll:user-1", 1, 0); err == nil {
		t.Fatal("expected zero window to fail")
	}
}

func TestLeaseLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron-worker:dev")

	acquired, err := client.SetNX(ctx, key, "worker-a", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected first lease to be acquired, got acquired=%v err=%v", acquired, err)
	}
	if acquired, _ := client.SetNX(ctx, key, "worker-b", time.Minute); acquired {
		t.Fatal("second holder must not acquire a held lease")
	}

	released, err := client.ReleaseLease(ctx, key, "worker-b")
	if err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if released {
		t.Fatal("non-owner must not drop the lease")
	}

	released, err = client.ReleaseLease(ctx, key, "worker-a")
	if err != nil || !released {
		t.Fatalf("expected owner release, got released=%v err=%v", released, err)
	}
	if _, ok := mock.data[key]; ok {
		t.Fatal("lease still present after release")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on empty client to fail")
	}
	if _, _, err := client.FixedWindowAllow(context.Background(), "user", 1, time.Second); err == nil {
		t.Fatal("expected rate limit on empty client to fail")
	}
	if _, err := client.ReleaseLease(context.Background(), "k", "v"); err == nil {
		t.Fatal("expected release on empty client to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.RateLimitKey("poll:user-1"); got != "payrecon:rate_limit:poll:user-1" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey("cron"); got != "payrecon:lock:cron" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.buildKey("lock", "", "job"); got != "payrecon:lock:job" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing endpoint to fail")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", Password: "pw", DB: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

// mockCmdable emulates the two scripts in memory.
type mockCmdable struct {
	data     map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		ttls:     make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counters[key]++
		if m.counters[key] == 1 {
			m.ttls[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		return redis.NewCmdResult(m.counters[key], nil)
	case releaseScript:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
