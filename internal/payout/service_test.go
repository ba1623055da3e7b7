package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type fakePayoutRepo struct {
	mu        sync.Mutex
	payouts   map[uuid.UUID]*model.Payout
	available map[uuid.UUID]int64
	held      map[uuid.UUID]int64
	outbox    []OutboxMessage
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{
		payouts:   make(map[uuid.UUID]*model.Payout),
		available: make(map[uuid.UUID]int64),
		held:      make(map[uuid.UUID]int64),
	}
}

func (f *fakePayoutRepo) CreateWithReservation(ctx context.Context, payout *model.Payout, actor types.Actor, outbox []OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available[payout.FreelancerID] < payout.GrossAmount {
		return model.ErrInsufficientBalance
	}
	f.available[payout.FreelancerID] -= payout.GrossAmount
	f.held[payout.FreelancerID] += payout.GrossAmount

	payout.ID = uuid.New()
	payout.Status = model.PayoutPending
	copy := *payout
	f.payouts[payout.ID] = &copy
	f.outbox = append(f.outbox, outbox...)
	return nil
}

func (f *fakePayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (f *fakePayoutRepo) GetByGatewayReference(ctx context.Context, reference string) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payouts {
		if p.GatewayPayoutRef == reference {
			copy := *p
			return &copy, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakePayoutRepo) MarkReady(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Payout, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return nil, false, model.ErrNotFound
	}
	switch p.Status {
	case model.PayoutPending, model.PayoutProcessing:
		p.Status = model.PayoutReadyForRelease
		copy := *p
		return &copy, true, nil
	case model.PayoutReadyForRelease:
		copy := *p
		return &copy, false, nil
	default:
		return nil, false, model.ErrInvalidStateTransition
	}
}

func (f *fakePayoutRepo) BeginProcessing(ctx context.Context, batchID string, actor types.Actor) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, p := range f.payouts {
		if p.ReleaseBatchID == batchID && p.Status == model.PayoutPending {
			p.Status = model.PayoutProcessing
			moved++
		}
	}
	return moved, nil
}

func (f *fakePayoutRepo) Confirm(ctx context.Context, params ConfirmParams) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[params.PayoutID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if p.Status != model.PayoutReadyForRelease {
		return nil, model.ErrInvalidStateTransition
	}
	now := time.Now()
	p.Status = model.PayoutCompleted
	p.GatewayFee = params.GatewayFee
	p.PlatformFee = params.PlatformFee
	p.StatutoryDeduction = params.Statutory
	p.NetAmount = params.Net
	p.GatewayPayoutRef = params.Reference
	p.AdminNotes = params.Notes
	p.CompletedAt = &now
	f.held[p.FreelancerID] -= p.GrossAmount
	f.outbox = append(f.outbox, params.Outbox...)
	copy := *p
	return &copy, nil
}

func (f *fakePayoutRepo) Fail(ctx context.Context, params FailParams) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[params.PayoutID]
	if !ok {
		return nil, model.ErrNotFound
	}
	switch p.Status {
	case model.PayoutPending, model.PayoutProcessing, model.PayoutReadyForRelease:
	default:
		return nil, model.ErrInvalidStateTransition
	}
	p.Status = model.PayoutFailed
	p.FailureReason = params.Reason
	f.held[p.FreelancerID] -= p.GrossAmount
	f.available[p.FreelancerID] += p.GrossAmount
	f.outbox = append(f.outbox, params.Outbox...)
	copy := *p
	return &copy, nil
}

func (f *fakePayoutRepo) BatchSummary(ctx context.Context, batchID string) (*model.ReleaseBatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &model.ReleaseBatchSummary{BatchID: batchID}
	for _, p := range f.payouts {
		if p.ReleaseBatchID != batchID {
			continue
		}
		summary.Count++
		summary.TotalGross += p.GrossAmount
		summary.TotalNet += p.NetAmount
		if p.Status == model.PayoutReadyForRelease {
			summary.ReadyCount++
		}
		if p.Status == model.PayoutCompleted {
			summary.CompletedCount++
		}
	}
	return summary, nil
}

func (f *fakePayoutRepo) ListByBatch(ctx context.Context, batchID string) ([]model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payout
	for _, p := range f.payouts {
		if p.ReleaseBatchID == batchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

var testPayoutConfig = config.PayoutConfig{
	MinAmount:      10_00,
	MaxAmount:      50_000_00,
	GatewayFeeBps:  100,
	PlatformFeeBps: 50,
	Timezone:       "Africa/Accra",
	CutoffHours:    []int{8, 16},
}

var fixedNow = time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)

func newTestPayoutService(t *testing.T, repo PayoutRepository) *PayoutService {
	t.Helper()
	svc, err := NewPayoutService(repo, testPayoutConfig, nil)
	if err != nil {
		t.Fatalf("NewPayoutService: %v", err)
	}
	svc.now = func() time.Time { return fixedNow }
	return svc
}

var payoutAdmin = types.Actor{ID: uuid.NewString(), Role: constants.RoleAdmin}

func requestFor(t *testing.T, svc *PayoutService, repo *fakePayoutRepo, freelancerID uuid.UUID, gross int64) *model.Payout {
	t.Helper()
	actor := types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}
	p, err := svc.RequestPayout(context.Background(), actor, &types.RequestPayoutRequest{
		FreelancerID:  freelancerID.String(),
		GrossAmount:   gross,
		PaymentMethod: "mobile_money",
	})
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	return p
}

func TestRequestPayoutReservesGross(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00

	p := requestFor(t, svc, repo, freelancerID, 200_00)

	if p.Status != model.PayoutPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}
	if repo.available[freelancerID] != 300_00 || repo.held[freelancerID] != 200_00 {
		t.Fatalf("wallet = (%d available, %d held), want (30000, 20000)",
			repo.available[freelancerID], repo.held[freelancerID])
	}

	loc, _ := time.LoadLocation(testPayoutConfig.Timezone)
	wantBatch := BatchID(NextCutoff(fixedNow, loc, testPayoutConfig.CutoffHours))
	if p.ReleaseBatchID != wantBatch {
		t.Fatalf("batch id = %s, want %s", p.ReleaseBatchID, wantBatch)
	}
}

func TestRequestPayoutEnforcesBounds(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 100_000_00
	actor := types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}

	for _, gross := range []int64{5_00, 60_000_00} {
		_, err := svc.RequestPayout(context.Background(), actor, &types.RequestPayoutRequest{
			FreelancerID:  freelancerID.String(),
			GrossAmount:   gross,
			PaymentMethod: "bank_transfer",
		})
		if !errors.Is(err, model.ErrInvalidAmount) {
			t.Fatalf("gross %d: err = %v, want ErrInvalidAmount", gross, err)
		}
	}
	if len(repo.payouts) != 0 {
		t.Fatal("out-of-bounds request created a payout")
	}
}

func TestRequestPayoutInsufficientBalance(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 50_00
	actor := types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}

	_, err := svc.RequestPayout(context.Background(), actor, &types.RequestPayoutRequest{
		FreelancerID:  freelancerID.String(),
		GrossAmount:   100_00,
		PaymentMethod: "mobile_money",
	})
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if repo.held[freelancerID] != 0 {
		t.Fatal("rejected request reserved funds")
	}
}

func TestRequestPayoutRejectsForeignActor(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00

	_, err := svc.RequestPayout(context.Background(), types.Actor{ID: uuid.NewString(), Role: constants.RoleFreelancer}, &types.RequestPayoutRequest{
		FreelancerID:  freelancerID.String(),
		GrossAmount:   100_00,
		PaymentMethod: "mobile_money",
	})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestMarkReadyIdempotent(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)
	ctx := context.Background()

	if _, err := svc.MarkReady(ctx, payoutAdmin, p.ID); err != nil {
		t.Fatalf("first MarkReady: %v", err)
	}
	again, err := svc.MarkReady(ctx, payoutAdmin, p.ID)
	if err != nil {
		t.Fatalf("repeat MarkReady: %v", err)
	}
	if again.Status != model.PayoutReadyForRelease {
		t.Fatalf("status = %s, want ready_for_release", again.Status)
	}
}

func TestMarkReadyRejectsTerminalPayout(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)
	ctx := context.Background()

	if _, err := svc.FailPayout(ctx, payoutAdmin, p.ID, "recipient account closed"); err != nil {
		t.Fatalf("FailPayout: %v", err)
	}
	if _, err := svc.MarkReady(ctx, payoutAdmin, p.ID); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestMarkReadyRequiresAdmin(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)

	actor := types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}
	if _, err := svc.MarkReady(context.Background(), actor, p.ID); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestConfirmReconcilesFeeSplit(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 20_000_00
	p := requestFor(t, svc, repo, freelancerID, 10_000_00)
	ctx := context.Background()

	if _, err := svc.MarkReady(ctx, payoutAdmin, p.ID); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	confirmed, err := svc.ConfirmExternalPayment(ctx, payoutAdmin, p.ID, &types.ConfirmPayoutRequest{
		GatewayReference: "trf_abc",
		Notes:            "sent via momo",
	})
	if err != nil {
		t.Fatalf("ConfirmExternalPayment: %v", err)
	}

	// 1% gateway fee = 100.00, 0.5% platform fee = 50.00,
	// statutory 1.25% of 9850.00 = 123.13
	if confirmed.GatewayFee != 100_00 || confirmed.PlatformFee != 50_00 || confirmed.StatutoryDeduction != 123_13 {
		t.Fatalf("fees = (%d, %d, %d)", confirmed.GatewayFee, confirmed.PlatformFee, confirmed.StatutoryDeduction)
	}
	wantNet := confirmed.GrossAmount - confirmed.GatewayFee - confirmed.PlatformFee - confirmed.StatutoryDeduction
	if confirmed.NetAmount != wantNet {
		t.Fatalf("net = %d, want %d", confirmed.NetAmount, wantNet)
	}
	if confirmed.Status != model.PayoutCompleted || confirmed.CompletedAt == nil {
		t.Fatalf("status = %s, completed_at = %v", confirmed.Status, confirmed.CompletedAt)
	}
	if repo.held[freelancerID] != 0 {
		t.Fatalf("held after confirm = %d, want 0", repo.held[freelancerID])
	}
}

func TestConfirmRequiresReadyForRelease(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)

	_, err := svc.ConfirmExternalPayment(context.Background(), payoutAdmin, p.ID, &types.ConfirmPayoutRequest{GatewayReference: "trf_abc"})
	if !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestFailPayoutRestoresGross(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)

	failed, err := svc.FailPayout(context.Background(), payoutAdmin, p.ID, "transfer bounced")
	if err != nil {
		t.Fatalf("FailPayout: %v", err)
	}
	if failed.Status != model.PayoutFailed || failed.FailureReason != "transfer bounced" {
		t.Fatalf("status = %s, reason = %q", failed.Status, failed.FailureReason)
	}
	if repo.available[freelancerID] != 500_00 || repo.held[freelancerID] != 0 {
		t.Fatalf("wallet after failure = (%d available, %d held), want (50000, 0)",
			repo.available[freelancerID], repo.held[freelancerID])
	}
}

func TestConfirmFromGatewayDuplicateIsNoOp(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 20_000_00
	p := requestFor(t, svc, repo, freelancerID, 10_000_00)
	ctx := context.Background()

	if _, err := svc.MarkReady(ctx, payoutAdmin, p.ID); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	_, applied, err := svc.ConfirmFromGateway(ctx, p.ID, "trf_webhook")
	if err != nil || !applied {
		t.Fatalf("first settlement: applied=%v err=%v", applied, err)
	}
	outboxAfterFirst := len(repo.outbox)

	again, applied, err := svc.ConfirmFromGateway(ctx, p.ID, "trf_webhook")
	if err != nil {
		t.Fatalf("duplicate settlement: %v", err)
	}
	if applied {
		t.Fatal("duplicate settlement reapplied effects")
	}
	if again.Status != model.PayoutCompleted {
		t.Fatalf("status = %s, want completed", again.Status)
	}
	if len(repo.outbox) != outboxAfterFirst {
		t.Fatal("duplicate settlement queued new notification triggers")
	}
}

func TestBeginBatchProcessingOpensDisbursement(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	repo.available[a] = 1_000_00
	repo.available[b] = 1_000_00
	p1 := requestFor(t, svc, repo, a, 300_00)
	p2 := requestFor(t, svc, repo, b, 400_00)

	if _, err := svc.MarkReady(ctx, payoutAdmin, p2.ID); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	moved, err := svc.BeginBatchProcessing(ctx, payoutAdmin, p1.ReleaseBatchID)
	if err != nil {
		t.Fatalf("BeginBatchProcessing: %v", err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1 (only the pending payout)", moved)
	}
	got, _ := svc.GetPayout(ctx, p1.ID)
	if got.Status != model.PayoutProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}
	ready, _ := svc.GetPayout(ctx, p2.ID)
	if ready.Status != model.PayoutReadyForRelease {
		t.Fatalf("already-ready payout moved to %s", ready.Status)
	}

	// reopening a batch is a no-op
	moved, err = svc.BeginBatchProcessing(ctx, payoutAdmin, p1.ReleaseBatchID)
	if err != nil || moved != 0 {
		t.Fatalf("second open: moved=%d err=%v", moved, err)
	}

	// processing payouts still pass the admin gate
	if _, err := svc.MarkReady(ctx, payoutAdmin, p1.ID); err != nil {
		t.Fatalf("MarkReady from processing: %v", err)
	}
}

func TestBeginBatchProcessingRequiresAdmin(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	freelancerID := uuid.New()
	repo.available[freelancerID] = 500_00
	p := requestFor(t, svc, repo, freelancerID, 200_00)

	actor := types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}
	if _, err := svc.BeginBatchProcessing(context.Background(), actor, p.ReleaseBatchID); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestBatchSummaryAggregates(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newTestPayoutService(t, repo)
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	repo.available[a] = 1_000_00
	repo.available[b] = 1_000_00
	p1 := requestFor(t, svc, repo, a, 300_00)
	p2 := requestFor(t, svc, repo, b, 400_00)

	if _, err := svc.MarkReady(ctx, payoutAdmin, p1.ID); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	summary, err := svc.BatchSummary(ctx, p2.ReleaseBatchID)
	if err != nil {
		t.Fatalf("BatchSummary: %v", err)
	}
	if summary.Count != 2 || summary.TotalGross != 700_00 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ReadyCount != 1 || summary.CompletedCount != 0 {
		t.Fatalf("ready = %d, completed = %d", summary.ReadyCount, summary.CompletedCount)
	}
}
