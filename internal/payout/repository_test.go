package payout

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

func TestPayoutAuditEntryCarriesBothSnapshots(t *testing.T) {
	id := uuid.New()
	before := &model.Payout{
		ID:          id,
		Status:      model.PayoutReadyForRelease,
		GrossAmount: 10_000_00,
	}
	after := &model.Payout{
		ID:                 id,
		Status:             model.PayoutCompleted,
		GrossAmount:        10_000_00,
		GatewayFee:         100_00,
		PlatformFee:        50_00,
		StatutoryDeduction: 123_13,
		NetAmount:          9_726_87,
	}
	actor := types.Actor{ID: uuid.NewString(), Role: constants.RoleAdmin}

	entry := payoutAuditEntry(before, after, "payout.completed", actor)

	if entry.Before == nil {
		t.Fatal("entry has no pre-transition snapshot")
	}
	var pre, post map[string]interface{}
	if err := json.Unmarshal(entry.Before, &pre); err != nil {
		t.Fatalf("unmarshal before: %v", err)
	}
	if err := json.Unmarshal(entry.After, &post); err != nil {
		t.Fatalf("unmarshal after: %v", err)
	}
	if pre["status"] != "ready_for_release" || post["status"] != "completed" {
		t.Fatalf("snapshot statuses = (%v, %v)", pre["status"], post["status"])
	}
	if pre["net_amount"].(float64) != 0 || post["net_amount"].(float64) != 9_726_87 {
		t.Fatalf("net_amount = (%v, %v)", pre["net_amount"], post["net_amount"])
	}
}

func TestPayoutAuditEntryForRequestHasNoBefore(t *testing.T) {
	entry := payoutAuditEntry(nil, &model.Payout{ID: uuid.New(), Status: model.PayoutPending, GrossAmount: 200_00},
		"payout.requested", types.Actor{ID: uuid.NewString(), Role: constants.RoleFreelancer})
	if entry.Before != nil {
		t.Fatal("request entry should have no before snapshot")
	}
	if entry.After == nil {
		t.Fatal("request entry missing after snapshot")
	}
}
