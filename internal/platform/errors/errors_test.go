package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(CodeEncounterNotFound, "no encounter for combat c1")
	if err.Error() != "no encounter for combat c1" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk gone")
	err := Wrap(CodeNotFound, "load port", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(CodeGarrisonNotOwner, "a")
	b := New(CodeGarrisonNotOwner, "b")
	if !stderrors.Is(a, b) {
		t.Fatal("expected errors with equal codes to match")
	}
	c := New(CodeGarrisonNotFound, "c")
	if stderrors.Is(a, c) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestGetCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeTradeInsufficientStock, "stock"))
	if got := GetCode(err); got != CodeTradeInsufficientStock {
		t.Fatalf("expected trade code, got %s", got)
	}
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown code, got %s", got)
	}
}

func TestGetMetadata(t *testing.T) {
	err := WithMetadata(CodeParticipantNotFound, "missing", map[string]string{
		"combat_id":      "c1",
		"participant_id": "p9",
	})
	md := GetMetadata(err)
	if md["combat_id"] != "c1" || md["participant_id"] != "p9" {
		t.Fatalf("unexpected metadata: %v", md)
	}
	if GetMetadata(stderrors.New("plain")) != nil {
		t.Fatal("expected nil metadata for plain error")
	}
}

func TestRPCStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want Status
	}{
		{CodeCombatNegativeCommit, StatusInvalidArgument},
		{CodeCombatUnknownTarget, StatusInvalidArgument},
		{CodeEncounterNotFound, StatusNotFound},
		{CodeGarrisonNotOwner, StatusPermissionDenied},
		{CodeGarrisonOwnerInTransit, StatusFailedPrecondition},
		{CodeTradeInsufficientCredit, StatusFailedPrecondition},
		{CodeRankingsSnapshotMissing, StatusNotFound},
		{CodeRankingsSchemaMismatch, StatusUnavailable},
		{CodeUnknown, StatusInternal},
	}
	for _, tc := range tests {
		if got := tc.code.RPCStatus(); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestToRPCDomainError(t *testing.T) {
	err := WithMetadata(CodeTradePortNotFound, "no port in sector 44", map[string]string{"sector": "44"})
	env := ToRPC(err)
	if env.Status != StatusNotFound {
		t.Fatalf("expected not_found, got %s", env.Status)
	}
	if env.Code != CodeTradePortNotFound {
		t.Fatalf("unexpected code %s", env.Code)
	}
	if env.Metadata["sector"] != "44" {
		t.Fatalf("unexpected metadata: %v", env.Metadata)
	}
}

func TestToRPCUnknownError(t *testing.T) {
	env := ToRPC(stderrors.New("internal detail"))
	if env.Status != StatusInternal {
		t.Fatalf("expected internal, got %s", env.Status)
	}
	if env.Message == "internal detail" {
		t.Fatal("internal detail must not leak to clients")
	}
}
