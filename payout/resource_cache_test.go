package payout

import (
	"testing"
	"time"
)

func TestResourceCacheGetSet(t *testing.T) {
	rc := newResourceCache(50 * time.Millisecond)
	defer rc.close()

	if _, ok := rc.get("addr1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	rc.set("addr1", AccountResources{EnergyAvailable: 100, BandwidthAvailable: 50})
	res, ok := rc.get("addr1")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if res.EnergyAvailable != 100 {
		t.Fatalf("expected energy 100, got %d", res.EnergyAvailable)
	}
}

func TestResourceCacheExpiry(t *testing.T) {
	rc := newResourceCache(20 * time.Millisecond)
	defer rc.close()

	rc.set("addr1", AccountResources{EnergyAvailable: 100})
	time.Sleep(40 * time.Millisecond)

	if _, ok := rc.get("addr1"); ok {
		t.Fatal("expected entry to be expired")
	}
}
