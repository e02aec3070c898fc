package leaselock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.TTL != 5*time.Minute {
		t.Fatalf("expected default TTL of 5m, got %v", o.TTL)
	}
	if o.RenewEvery != o.TTL/2 {
		t.Fatalf("expected renew interval of half the TTL, got %v", o.RenewEvery)
	}
	if o.WaitInterval != 250*time.Millisecond {
		t.Fatalf("expected default wait interval, got %v", o.WaitInterval)
	}
}

func TestOptionsRenewClampedBelowTTL(t *testing.T) {
	o := Options{TTL: 4 * time.Second, RenewEvery: 10 * time.Second}.withDefaults()
	if o.RenewEvery >= o.TTL {
		t.Fatalf("renew interval %v must stay below TTL %v", o.RenewEvery, o.TTL)
	}
}

func TestSleepWithJitterHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithJitter(ctx, time.Minute, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAcquireRejectsEmptyKey(t *testing.T) {
	c := New(nil)
	if _, err := c.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("expected an error for an empty key")
	}
}
