package redislock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/fd1az/spatial-arb/internal/apperror"
)

const testKey = "BTC/USDT:binance->kraken"

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	l := New(Config{Addr: m.Addr()})
	t.Cleanup(func() { _ = l.Close() })
	return l, m
}

func TestKey(t *testing.T) {
	if got := Key(testKey); got != "arb:lock:BTC/USDT:binance->kraken" {
		t.Errorf("Key() = %q", got)
	}
}

func TestUnlockScript_ChecksToken(t *testing.T) {
	s := UnlockScript()
	for _, want := range []string{"redis.call('GET', KEYS[1]) == ARGV[1]", "redis.call('DEL', KEYS[1])", "return 0"} {
		if !strings.Contains(s, want) {
			t.Errorf("unlock script missing %q", want)
		}
	}
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	l, m := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, testKey, 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !m.Exists(Key(testKey)) {
		t.Fatal("lock key not set")
	}
	if ttl := m.TTL(Key(testKey)); ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("TTL = %v, want (0, 30s]", ttl)
	}

	release()
	if m.Exists(Key(testKey)) {
		t.Error("lock key still present after release")
	}
	release()
}

func TestLocker_HeldLock(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, testKey, 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	again, err := l.Acquire(ctx, testKey, 30*time.Second)
	if again != nil {
		t.Error("release func returned for a held lock")
	}
	if got := apperror.GetCode(err); got != apperror.CodeLockHeld {
		t.Errorf("Acquire() code = %v, want %v", got, apperror.CodeLockHeld)
	}

	other, err := l.Acquire(ctx, "ETH/USDT:binance->kraken", 30*time.Second)
	if err != nil {
		t.Fatalf("different key should be free: %v", err)
	}
	other()
}

func TestLocker_ReleaseKeepsForeignToken(t *testing.T) {
	l, m := newTestLocker(t)

	release, err := l.Acquire(context.Background(), testKey, 30*time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// our lock expired and another instance took it
	if err := m.Set(Key(testKey), "other-instance"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	release()

	got, err := m.Get(Key(testKey))
	if err != nil || got != "other-instance" {
		t.Errorf("key = %q, %v; release must not delete a foreign lock", got, err)
	}
}

func TestLocker_RefreshesWhileHeld(t *testing.T) {
	l, m := newTestLocker(t)
	ttl := 300 * time.Millisecond

	release, err := l.Acquire(context.Background(), testKey, ttl)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	m.FastForward(250 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for m.TTL(Key(testKey)) <= 200*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatalf("TTL = %v, lock was never refreshed", m.TTL(Key(testKey)))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLocker_UnreachableServer(t *testing.T) {
	l := New(Config{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = l.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	release, err := l.Acquire(ctx, testKey, time.Second)
	if release != nil {
		t.Error("release func returned on failure")
	}
	if got := apperror.GetCode(err); got != apperror.CodeLockFailed {
		t.Errorf("Acquire() code = %v, want %v", got, apperror.CodeLockFailed)
	}

	if err := l.Ping(ctx); apperror.GetCode(err) != apperror.CodeServiceUnavailable {
		t.Errorf("Ping() error = %v", err)
	}
}
