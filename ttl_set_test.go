package statsig

import (
	"testing"
	"time"
)

func TestTTLSetAddAndContains(t *testing.T) {
	set := NewTTLSet()
	defer set.Shutdown()
	set.Add("key1")
	if !set.Contains("key1") {
		t.Errorf("key1 should exist in the set")
	}
	if set.Contains("key2") {
		t.Errorf("key2 should not exist in the set")
	}
}

func TestTTLSetReset(t *testing.T) {
	set := NewTTLSet()
	defer set.Shutdown()
	set.Add("key1")
	set.Add("key2")
	set.Reset()
	if set.Contains("key1") {
		t.Errorf("key1 should not exist after reset")
	}
	if set.Contains("key2") {
		t.Errorf("key2 should not exist after reset")
	}
}

func TestTTLSetExpiry(t *testing.T) {
	set := NewTTLSet()
	defer set.Shutdown()
	set.Add("key1")
	set.tick.Reset(10 * time.Millisecond)

	waitForCondition(t, func() bool {
		return !set.Contains("key1")
	})
}

func TestTTLSetShutdownStopsExpiry(t *testing.T) {
	set := NewTTLSet()
	set.tick.Reset(10 * time.Millisecond)
	set.Shutdown()
	set.Shutdown()

	set.Add("key2")
	time.Sleep(30 * time.Millisecond)
	if !set.Contains("key2") {
		t.Errorf("shutdown should prevent automatic reset")
	}
}
