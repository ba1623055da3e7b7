package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type fakeEscrowRepo struct {
	mu            sync.Mutex
	escrows       map[uuid.UUID]*model.Escrow
	walletCredits map[uuid.UUID]int64
	releaseCount  int
	outbox        []OutboxMessage
}

func newFakeEscrowRepo() *fakeEscrowRepo {
	return &fakeEscrowRepo{
		escrows:       make(map[uuid.UUID]*model.Escrow),
		walletCredits: make(map[uuid.UUID]int64),
	}
}

func (f *fakeEscrowRepo) Create(ctx context.Context, escrow *model.Escrow, actor types.Actor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	escrow.ID = uuid.New()
	escrow.Status = model.EscrowCreated
	copy := *escrow
	f.escrows[escrow.ID] = &copy
	return nil
}

func (f *fakeEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

func (f *fakeEscrowRepo) GetByGatewayReference(ctx context.Context, gateway, reference string) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.escrows {
		if e.PaymentGateway == gateway && e.GatewayReference == reference {
			copy := *e
			return &copy, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeEscrowRepo) MarkFunded(ctx context.Context, id uuid.UUID, reference string, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[id]
	if !ok {
		return nil, false, model.ErrNotFound
	}
	if e.Status == model.EscrowFunded {
		copy := *e
		return &copy, false, nil
	}
	if e.Status != model.EscrowCreated {
		return nil, false, model.ErrInvalidStateTransition
	}
	now := time.Now()
	e.Status = model.EscrowFunded
	e.GatewayReference = reference
	e.FundedAt = &now
	f.outbox = append(f.outbox, outbox...)
	copy := *e
	return &copy, true, nil
}

func statusIn(status model.EscrowStatus, from []model.EscrowStatus) bool {
	for _, s := range from {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeEscrowRepo) Release(ctx context.Context, p ReleaseParams) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[p.EscrowID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !statusIn(e.Status, p.FromStatuses) {
		return nil, model.ErrInvalidStateTransition
	}
	now := time.Now()
	e.Status = model.EscrowReleased
	e.ReleasedAt = &now
	e.ReleasedGross = p.Gross
	e.ReleasedCommission = p.Commission
	e.ReleasedNet = p.Net
	e.ReleasedStatutory = p.Statutory
	f.walletCredits[p.FreelancerID] += p.Net - p.Statutory
	f.releaseCount++
	f.outbox = append(f.outbox, p.Outbox...)
	copy := *e
	return &copy, nil
}

func (f *fakeEscrowRepo) Refund(ctx context.Context, p RefundParams) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[p.EscrowID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !statusIn(e.Status, p.FromStatuses) || e.RefundedAmount+p.Amount > e.GrossAmount {
		return nil, model.ErrInvalidStateTransition
	}
	now := time.Now()
	e.RefundedAmount += p.Amount
	e.Status = p.NewStatus
	e.RefundedAt = &now
	f.outbox = append(f.outbox, p.Outbox...)
	copy := *e
	return &copy, nil
}

func (f *fakeEscrowRepo) MarkDisputed(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !statusIn(e.Status, []model.EscrowStatus{model.EscrowFunded, model.EscrowReleased, model.EscrowPartiallyRefunded}) {
		return nil, model.ErrInvalidStateTransition
	}
	now := time.Now()
	e.Status = model.EscrowDisputed
	e.DisputedAt = &now
	copy := *e
	return &copy, nil
}

func (f *fakeEscrowRepo) ResolveReleased(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if e.Status != model.EscrowDisputed {
		return nil, model.ErrInvalidStateTransition
	}
	e.Status = model.EscrowReleased
	copy := *e
	return &copy, nil
}

func (f *fakeEscrowRepo) CompensateRelease(ctx context.Context, escrowID, freelancerID uuid.UUID, amount int64, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.escrows[escrowID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if e.Status != model.EscrowDisputed {
		return nil, model.ErrInvalidStateTransition
	}
	now := time.Now()
	e.Status = model.EscrowRefunded
	e.RefundedAmount = e.GrossAmount
	e.RefundedAt = &now
	f.walletCredits[freelancerID] -= amount
	f.outbox = append(f.outbox, outbox...)
	copy := *e
	return &copy, nil
}

type fakeGatewayClient struct{}

func (fakeGatewayClient) InitializePayment(ctx context.Context, req *types.InitializePaymentRequest) (*types.InitializePaymentResponse, error) {
	resp := &types.InitializePaymentResponse{Status: true}
	resp.Data.Reference = "ref_test"
	resp.Data.AuthorizationURL = "https://checkout.example/auth"
	return resp, nil
}

func (fakeGatewayClient) CreateTransfer(ctx context.Context, req *types.CreateTransferRequest) (*types.CreateTransferResponse, error) {
	resp := &types.CreateTransferResponse{Status: true}
	resp.Data.Reference = req.Reference
	resp.Data.Status = "pending"
	return resp, nil
}

var (
	clientID     = uuid.New()
	freelancerID = uuid.New()
	adminActor   = types.Actor{ID: uuid.NewString(), Role: constants.RoleAdmin}
)

func clientActor() types.Actor {
	return types.Actor{ID: clientID.String(), Role: constants.RoleClient}
}

func freelancerActor() types.Actor {
	return types.Actor{ID: freelancerID.String(), Role: constants.RoleFreelancer}
}

func newTestService(repo *fakeEscrowRepo) *EscrowService {
	return NewEscrowService(repo, fakeGatewayClient{}, nil)
}

func createFunded(t *testing.T, svc *EscrowService, repo *fakeEscrowRepo, gross int64) uuid.UUID {
	t.Helper()
	res, err := svc.CreateEscrow(context.Background(), clientActor(), &types.CreateEscrowRequest{
		GigID:          uuid.NewString(),
		ClientID:       clientID.String(),
		FreelancerID:   freelancerID.String(),
		GrossAmount:    gross,
		PaymentGateway: constants.GatewayPaystack,
		ClientEmail:    "client@example.com",
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}
	id := uuid.MustParse(res.EscrowID)
	if _, err := svc.ConfirmFunding(context.Background(), adminActor, id, "ref_test"); err != nil {
		t.Fatalf("ConfirmFunding: %v", err)
	}
	return id
}

func TestCreateEscrowFixesCommissionSplit(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)

	res, err := svc.CreateEscrow(context.Background(), clientActor(), &types.CreateEscrowRequest{
		GigID:          uuid.NewString(),
		ClientID:       clientID.String(),
		FreelancerID:   freelancerID.String(),
		GrossAmount:    300_00,
		PaymentGateway: constants.GatewayPaystack,
		ClientEmail:    "client@example.com",
	})
	if err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}

	escrow, err := svc.GetEscrow(context.Background(), uuid.MustParse(res.EscrowID))
	if err != nil {
		t.Fatalf("GetEscrow: %v", err)
	}
	if escrow.PlatformCommission != 45_00 || escrow.NetAmount != 255_00 {
		t.Fatalf("split = (%d, %d), want (4500, 25500)", escrow.PlatformCommission, escrow.NetAmount)
	}
	if escrow.PlatformCommission+escrow.NetAmount != escrow.GrossAmount {
		t.Fatal("conservation violated at creation")
	}
	if res.GatewayReference != "ref_test" {
		t.Fatalf("gateway reference = %q", res.GatewayReference)
	}
}

func TestCreateEscrowRejectsForeignClient(t *testing.T) {
	svc := newTestService(newFakeEscrowRepo())

	_, err := svc.CreateEscrow(context.Background(), freelancerActor(), &types.CreateEscrowRequest{
		GigID:          uuid.NewString(),
		ClientID:       clientID.String(),
		FreelancerID:   freelancerID.String(),
		GrossAmount:    100_00,
		PaymentGateway: constants.GatewayPaystack,
		ClientEmail:    "client@example.com",
	})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestConfirmFundingDuplicateIsNoOp(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)

	escrow, err := svc.ConfirmFunding(context.Background(), adminActor, id, "ref_test")
	if err != nil {
		t.Fatalf("duplicate ConfirmFunding: %v", err)
	}
	if escrow.Status != model.EscrowFunded {
		t.Fatalf("status = %s, want funded", escrow.Status)
	}
}

func TestReleaseCreditsNetOfDeductions(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)

	released, err := svc.Release(context.Background(), clientActor(), id)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != model.EscrowReleased {
		t.Fatalf("status = %s, want released", released.Status)
	}
	// 300.00 gross: 15% commission = 45.00, net 255.00, statutory 1.25% = 3.19
	if got := repo.walletCredits[freelancerID]; got != 251_81 {
		t.Fatalf("freelancer credited %d, want 25181", got)
	}
	if repo.releaseCount != 1 {
		t.Fatalf("release count = %d, want 1", repo.releaseCount)
	}
}

func TestReleaseRequiresOwningClientOrAdmin(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)

	if _, err := svc.Release(context.Background(), freelancerActor(), id); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if repo.releaseCount != 0 {
		t.Fatal("unauthorized release moved money")
	}
}

func TestReleaseIsExactlyOnce(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)

	if _, err := svc.Release(context.Background(), clientActor(), id); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if _, err := svc.Release(context.Background(), clientActor(), id); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("second Release err = %v, want ErrInvalidStateTransition", err)
	}
	if repo.releaseCount != 1 {
		t.Fatalf("release count = %d, want 1", repo.releaseCount)
	}
	if got := repo.walletCredits[freelancerID]; got != 251_81 {
		t.Fatalf("freelancer credited %d after double release, want 25181", got)
	}
}

func TestRefundBoundEnforced(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 1_000_00)
	ctx := context.Background()

	first, err := svc.Refund(ctx, clientActor(), id, &types.RefundEscrowRequest{Amount: 250_00, Reason: "partial delivery"})
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if first.Status != model.EscrowPartiallyRefunded || first.RefundedAmount != 250_00 {
		t.Fatalf("after first refund: status=%s refunded=%d", first.Status, first.RefundedAmount)
	}

	_, err = svc.Refund(ctx, clientActor(), id, &types.RefundEscrowRequest{Amount: 800_00, Reason: "overshoot"})
	if !errors.Is(err, model.ErrInsufficientEscrowBalance) {
		t.Fatalf("overshooting refund err = %v, want ErrInsufficientEscrowBalance", err)
	}
	unchanged, _ := svc.GetEscrow(ctx, id)
	if unchanged.RefundedAmount != 250_00 {
		t.Fatalf("rejected refund mutated state: refunded=%d", unchanged.RefundedAmount)
	}

	final, err := svc.Refund(ctx, clientActor(), id, &types.RefundEscrowRequest{Amount: 750_00, Reason: "cancelled"})
	if err != nil {
		t.Fatalf("final refund: %v", err)
	}
	if final.Status != model.EscrowRefunded || final.RefundedAmount != 1_000_00 {
		t.Fatalf("after final refund: status=%s refunded=%d", final.Status, final.RefundedAmount)
	}
}

func TestReleaseAfterPartialRefundPaysRemainder(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 1_000_00)
	ctx := context.Background()

	if _, err := svc.Refund(ctx, clientActor(), id, &types.RefundEscrowRequest{Amount: 250_00, Reason: "scope cut"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := svc.Release(ctx, clientActor(), id); err != nil {
		t.Fatalf("release: %v", err)
	}

	// remaining 750.00: 10% commission = 75.00, net 675.00, statutory 8.44
	if got := repo.walletCredits[freelancerID]; got != 666_56 {
		t.Fatalf("freelancer credited %d, want 66656", got)
	}

	// the row records the split that was actually paid, not the creation-time one
	released, _ := svc.GetEscrow(ctx, id)
	if released.ReleasedGross != 750_00 || released.ReleasedCommission != 75_00 ||
		released.ReleasedNet != 675_00 || released.ReleasedStatutory != 8_44 {
		t.Fatalf("released split = (%d, %d, %d, %d)",
			released.ReleasedGross, released.ReleasedCommission, released.ReleasedNet, released.ReleasedStatutory)
	}
}

func TestDisputeFreezesRelease(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)
	ctx := context.Background()

	if _, err := svc.Dispute(ctx, freelancerActor(), id); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if _, err := svc.Release(ctx, clientActor(), id); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("release on disputed err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestResolveDisputeRequiresAdmin(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)
	ctx := context.Background()

	if _, err := svc.Dispute(ctx, clientActor(), id); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	_, err := svc.ResolveDispute(ctx, clientActor(), id, &types.ResolveDisputeRequest{Resolution: "release"})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestResolveDisputeRelease(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)
	ctx := context.Background()

	if _, err := svc.Dispute(ctx, clientActor(), id); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	resolved, err := svc.ResolveDispute(ctx, adminActor, id, &types.ResolveDisputeRequest{Resolution: "release"})
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != model.EscrowReleased {
		t.Fatalf("status = %s, want released", resolved.Status)
	}
	if got := repo.walletCredits[freelancerID]; got != 251_81 {
		t.Fatalf("freelancer credited %d, want 25181", got)
	}
}

func TestResolveDisputeRefundAfterReleaseClawsBack(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 300_00)
	ctx := context.Background()

	if _, err := svc.Release(ctx, clientActor(), id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := svc.Dispute(ctx, clientActor(), id); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	resolved, err := svc.ResolveDispute(ctx, adminActor, id, &types.ResolveDisputeRequest{Resolution: "refund", Notes: "chargeback upheld"})
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != model.EscrowRefunded || resolved.RefundedAmount != 300_00 {
		t.Fatalf("after resolution: status=%s refunded=%d", resolved.Status, resolved.RefundedAmount)
	}
	// the clawback removes exactly what the release credited
	if got := repo.walletCredits[freelancerID]; got != 0 {
		t.Fatalf("freelancer balance after clawback = %d, want 0", got)
	}
}

func TestResolveDisputeClawbackAfterPartialRefundRelease(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(repo)
	id := createFunded(t, svc, repo, 1_000_00)
	ctx := context.Background()

	if _, err := svc.Refund(ctx, clientActor(), id, &types.RefundEscrowRequest{Amount: 250_00, Reason: "scope cut"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := svc.Release(ctx, clientActor(), id); err != nil {
		t.Fatalf("release: %v", err)
	}
	// the release paid out of the 750.00 remainder, not the 1000.00 gross
	credited := repo.walletCredits[freelancerID]
	if credited != 666_56 {
		t.Fatalf("freelancer credited %d, want 66656", credited)
	}

	if _, err := svc.Dispute(ctx, clientActor(), id); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	resolved, err := svc.ResolveDispute(ctx, adminActor, id, &types.ResolveDisputeRequest{Resolution: "refund", Notes: "chargeback upheld"})
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != model.EscrowRefunded {
		t.Fatalf("status = %s, want refunded", resolved.Status)
	}
	// clawing back more than was credited would mint money out of the wallet
	if got := repo.walletCredits[freelancerID]; got != 0 {
		t.Fatalf("freelancer balance after clawback = %d, want 0 (clawback must equal the %d credited)", got, credited)
	}
}
