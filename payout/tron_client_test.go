package payout

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTronClientAccountResources(t *testing.T) {
	srv := newTestTronServer(t, true)
	defer srv.Close()

	client := NewTronClient(srv.URL, "contract", "from", "", 0, 2*time.Second)
	res, err := client.AccountResources(context.Background(), "from")
	if err != nil {
		t.Fatalf("AccountResources failed: %v", err)
	}
	if res.EnergyAvailable != 1_000_000 {
		t.Fatalf("expected 1000000 energy available, got %d", res.EnergyAvailable)
	}
	if res.BandwidthAvailable != 5000 {
		t.Fatalf("expected 5000 bandwidth available, got %d", res.BandwidthAvailable)
	}
}

func TestTronClientTransactionStatus(t *testing.T) {
	srv := newTestTronServer(t, true)
	defer srv.Close()

	client := NewTronClient(srv.URL, "contract", "from", "", 0, 2*time.Second)
	status, err := client.TransactionStatus(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("TransactionStatus failed: %v", err)
	}
	if status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", status)
	}
}

func TestTronClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // immediately closed: connection refused

	client := NewTronClient(srv.URL, "contract", "from", "", 0, 500*time.Millisecond)
	if _, err := client.AccountResources(context.Background(), "from"); err == nil {
		t.Fatal("expected error when node is unreachable")
	}
}

func TestEncodeTransferParameterLength(t *testing.T) {
	param := encodeTransferParameter("TLyqzVGLV1srkB7dToTAEqgDSfPtXRJZYH", 1_000_000)
	if len(param) != 128 {
		t.Fatalf("expected 128 hex chars (2x32 bytes), got %d", len(param))
	}
}
