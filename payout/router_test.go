package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakePayoutStore is an in-memory PayoutStore for router tests.
type fakePayoutStore struct {
	mu       sync.Mutex
	requests map[string]*PayoutRequest
	batches  map[string]*PayoutBatch
}

func newFakePayoutStore() *fakePayoutStore {
	return &fakePayoutStore{requests: map[string]*PayoutRequest{}, batches: map[string]*PayoutBatch{}}
}

func (s *fakePayoutStore) SaveRequest(r *PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.PayoutID] = &cp
	return nil
}

func (s *fakePayoutStore) PendingRequests(routerType RouterType, limit int) ([]*PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PayoutRequest
	for _, r := range s.requests {
		if r.RouterType == routerType && r.Status == PayoutPending {
			cp := *r
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakePayoutStore) SaveBatch(b *PayoutBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.batches[b.BatchID] = &cp
	return nil
}

func (s *fakePayoutStore) UpdateRequestsStatus(ids []string, status PayoutStatus, txid string, processedAt *time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if r, ok := s.requests[id]; ok {
			r.Status = status
			r.TxID = txid
			r.ProcessedAt = processedAt
			r.ErrorMessage = errMsg
		}
	}
	return nil
}

func newTestTronServer(t *testing.T, succeed bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/triggersmartcontract", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"result": map[string]interface{}{"result": succeed, "message": "rejected"},
			"txid":   "deadbeef",
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/wallet/getaccountresource", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"EnergyLimit": 1000000, "EnergyUsed": 0, "freeNetLimit": 5000, "freeNetUsed": 0}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/wallet/gettransactioninfobyid", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"id": "deadbeef", "receipt": map[string]string{"result": "SUCCESS"}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func TestRouterProcessPendingSuccess(t *testing.T) {
	srv := newTestTronServer(t, true)
	defer srv.Close()

	client := NewTronClient(srv.URL, "TUSDTContractAddress00000000000000", "TFromAddress000000000000000000000", "", 0, 2*time.Second)
	store := newFakePayoutStore()
	router, err := NewRouter(store, client, 10, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	defer router.Close()

	req := &PayoutRequest{
		PayoutID:         "p1",
		RecipientAddress: "TLyqzVGLV1srkB7dToTAEqgDSfPtXRJZYH",
		AmountUSDT:       25,
		RouterType:       RouterNonKYC,
	}
	if err := router.SubmitRequest(req); err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}

	n, err := router.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 processed, got %d", n)
	}

	stored := store.requests["p1"]
	if stored.Status != PayoutCompleted {
		t.Fatalf("expected request completed, got %s", stored.Status)
	}
	if stored.TxID != "deadbeef" {
		t.Fatalf("expected txid deadbeef, got %s", stored.TxID)
	}
}

func TestRouterProcessPendingFailure(t *testing.T) {
	srv := newTestTronServer(t, false)
	defer srv.Close()

	client := NewTronClient(srv.URL, "TUSDTContractAddress00000000000000", "TFromAddress000000000000000000000", "", 0, 2*time.Second)
	store := newFakePayoutStore()
	router, err := NewRouter(store, client, 10, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	defer router.Close()

	req := &PayoutRequest{
		PayoutID:         "p1",
		RecipientAddress: "TLyqzVGLV1srkB7dToTAEqgDSfPtXRJZYH",
		AmountUSDT:       25,
		RouterType:       RouterNonKYC,
	}
	if err := router.SubmitRequest(req); err != nil {
		t.Fatalf("SubmitRequest failed: %v", err)
	}

	if _, err := router.ProcessPending(context.Background()); err == nil {
		t.Fatal("expected submission error on rejected transfer")
	}

	stored := store.requests["p1"]
	if stored.Status != PayoutFailed {
		t.Fatalf("expected request failed, got %s", stored.Status)
	}
}

func TestRouterSingleFlight(t *testing.T) {
	srv := newTestTronServer(t, true)
	defer srv.Close()

	client := NewTronClient(srv.URL, "TUSDTContractAddress00000000000000", "TFromAddress000000000000000000000", "", 0, 2*time.Second)
	store := newFakePayoutStore()
	router, err := NewRouter(store, client, 10, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	defer router.Close()

	router.isProcessing = 1 // simulate an in-flight batch submission
	n, err := router.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending should no-op, got error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 while another batch is in flight, got %d", n)
	}
}

func TestNewRouterRequiresClient(t *testing.T) {
	if _, err := NewRouter(newFakePayoutStore(), nil, 0, nil); err == nil {
		t.Fatal("expected error when constructing router without a TronClient")
	}
}
