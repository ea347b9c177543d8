package payout

// router.go implements the isolated TRON payout router: request intake,
// router selection, batching, submission, and status polling (spec §4.10,
// C10). Grounded on the teacher's core/blockchain_synchronization.go
// SyncManager shape for the single-flight background loop, generalized
// from chain-height polling to payout-batch draining.

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PayoutStore is the narrow persistence seam the router writes through,
// implemented by the store package's MongoDB-backed PayoutStore (mirrors
// core's wire-up-interface convention; payout never imports store or core
// directly, spec §4.10 isolation).
type PayoutStore interface {
	SaveRequest(r *PayoutRequest) error
	PendingRequests(routerType RouterType, limit int) ([]*PayoutRequest, error)
	SaveBatch(b *PayoutBatch) error
	UpdateRequestsStatus(ids []string, status PayoutStatus, txid string, processedAt *time.Time, errMsg string) error
}

// Router drains pending payout requests into batches and submits them to
// TRON (spec §4.10).
type Router struct {
	store     PayoutStore
	client    *TronClient
	resources *resourceCache
	logger    *logrus.Logger

	batchSize    int
	resourceSlop float64
	isProcessing int32 // atomic flag; only one batch-submit goroutine per instance (spec §5)
}

// NewRouter wires the router to a TronClient (required; no dry-run
// fallback in production, spec §9 "simulated TRON transactions") and a
// PayoutStore. batchSize defaults to 50.
func NewRouter(store PayoutStore, client *TronClient, batchSize int, logger *logrus.Logger) (*Router, error) {
	if client == nil {
		return nil, fmt.Errorf("payout: a TronClient is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{
		store:        store,
		client:       client,
		resources:    newResourceCache(30 * time.Second),
		logger:       logger,
		batchSize:    batchSize,
		resourceSlop: defaultResourceSlop,
	}, nil
}

// SubmitRequest validates and persists one payout request as pending (spec
// §4.10).
func (r *Router) SubmitRequest(req *PayoutRequest) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}
	if req.PayoutID == "" {
		req.PayoutID = uuid.NewString()
	}
	req.Status = PayoutPending
	req.CreatedAt = time.Now().UTC()
	if err := r.store.SaveRequest(req); err != nil {
		return fmt.Errorf("payout: saving request: %w", err)
	}
	return nil
}

// ProcessPending drains up to one batch per router type, building batches
// under the size cap and submitting them (spec §4.10 control flow). If a
// batch-submit is already in flight on this instance, this is a no-op that
// returns zero (spec §5).
func (r *Router) ProcessPending(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&r.isProcessing, 0, 1) {
		r.logger.Debug("payout: batch submission already in flight, skipping")
		return 0, nil
	}
	defer atomic.StoreInt32(&r.isProcessing, 0)

	total := 0
	for _, rt := range []RouterType{RouterNonKYC, RouterKYCGated} {
		n, err := r.processRouterType(ctx, rt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *Router) processRouterType(ctx context.Context, rt RouterType) (int, error) {
	pending, err := r.store.PendingRequests(rt, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("payout: loading pending requests: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	batch := &PayoutBatch{
		BatchID:    uuid.NewString(),
		RouterType: rt,
		Status:     PayoutPending,
		CreatedAt:  time.Now().UTC(),
	}
	for _, req := range pending {
		batch.PayoutIDs = append(batch.PayoutIDs, req.PayoutID)
		batch.TotalAmount += req.AmountUSDT
	}
	if err := r.store.SaveBatch(batch); err != nil {
		return 0, fmt.Errorf("payout: saving batch: %w", err)
	}

	if err := r.submitBatch(ctx, batch, pending); err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (r *Router) submitBatch(ctx context.Context, batch *PayoutBatch, requests []*PayoutRequest) error {
	batch.Status = PayoutProcessing
	if err := r.store.SaveBatch(batch); err != nil {
		return fmt.Errorf("payout: updating batch to processing: %w", err)
	}

	if err := r.checkResourceGuardrail(ctx, requests); err != nil {
		return r.failBatch(batch, requests, err)
	}

	var lastTxID string
	for _, req := range requests {
		amount6 := uint64(req.AmountUSDT * 1_000_000)
		res, err := r.client.Transfer(ctx, req.RecipientAddress, amount6)
		if err != nil {
			return r.failBatch(batch, requests, err)
		}
		if !res.Success {
			return r.failBatch(batch, requests, fmt.Errorf("payout: transfer rejected: %s", res.Message))
		}
		lastTxID = res.TxID
	}

	now := time.Now().UTC()
	batch.Status = PayoutCompleted
	batch.TxID = lastTxID
	batch.ProcessedAt = &now
	if err := r.store.SaveBatch(batch); err != nil {
		return fmt.Errorf("payout: finalizing batch: %w", err)
	}
	if err := r.store.UpdateRequestsStatus(batch.PayoutIDs, PayoutCompleted, lastTxID, &now, ""); err != nil {
		return fmt.Errorf("payout: updating request statuses: %w", err)
	}
	r.logger.WithFields(logrus.Fields{"batchId": batch.BatchID, "count": len(requests)}).Info("payout: batch completed")
	return nil
}

func (r *Router) failBatch(batch *PayoutBatch, requests []*PayoutRequest, cause error) error {
	batch.Status = PayoutFailed
	batch.ErrorMessage = cause.Error()
	if err := r.store.SaveBatch(batch); err != nil {
		r.logger.Warnf("payout: saving failed batch: %v", err)
	}
	if err := r.store.UpdateRequestsStatus(batch.PayoutIDs, PayoutFailed, "", nil, cause.Error()); err != nil {
		r.logger.Warnf("payout: updating failed request statuses: %v", err)
	}
	_ = requests
	return cause
}

// checkResourceGuardrail reads the configured account's energy/bandwidth
// (cached with a TTL) and fails early with InsufficientEnergy if the
// batch's declared need exceeds available resources by more than the
// resourceSlop fraction. NewRouter always sets resourceSlop to
// defaultResourceSlop; no option or setter changes it (spec §4.10).
func (r *Router) checkResourceGuardrail(ctx context.Context, requests []*PayoutRequest) error {
	res, ok := r.resources.get(r.client.fromAddress)
	if !ok {
		fetched, err := r.client.AccountResources(ctx, r.client.fromAddress)
		if err != nil {
			return err
		}
		r.resources.set(r.client.fromAddress, fetched)
		res = fetched
	}

	needed := uint64(len(requests)) * estimatedEnergyPerTransfer
	allowed := res.EnergyAvailable + uint64(float64(res.EnergyAvailable)*r.resourceSlop)
	if needed > allowed {
		return insufficientEnergyErrorf("payout: batch needs ~%d energy, only %d available", needed, res.EnergyAvailable)
	}
	return nil
}

const estimatedEnergyPerTransfer = 15_000 // conservative TRC-20 transfer estimate

// CheckPayoutStatus implements checkPayoutStatus(record) (spec §4.10).
func (r *Router) CheckPayoutStatus(ctx context.Context, txid string) (string, error) {
	return r.client.TransactionStatus(ctx, txid)
}

// Close releases the router's background resource-cache reaper.
func (r *Router) Close() {
	r.resources.close()
}
