package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestWrapPrependsMessage(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, "doing the thing")
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	if err.Error() != "doing the thing: boom" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to unwrap to the cause")
	}
}

func TestTypedErrorMessageWithoutField(t *testing.T) {
	err := NewError(KindIntegrity, "checksum mismatch")
	if err.Error() != "integrity: checksum mismatch" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestTypedErrorMessageWithField(t *testing.T) {
	err := NewFieldError(KindValidation, "is required", "txId")
	if err.Error() != "validation: is required (field=txId)" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestWrapAsUnwrapsToCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapAs(KindChainUnavailable, "chain_client: dial", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected TypedError to unwrap to its cause")
	}
}

func TestIsKindMatchesThroughFmtErrorfWrap(t *testing.T) {
	typed := NewError(KindDuplicateTx, "txId already exists")
	wrapped := fmt.Errorf("layer above: %w", typed)
	if !IsKind(wrapped, KindDuplicateTx) {
		t.Fatal("expected IsKind to see through an additional fmt.Errorf wrap")
	}
	if IsKind(wrapped, KindValidation) {
		t.Fatal("expected IsKind to reject a non-matching kind")
	}
}

func TestIsKindFalseForPlainError(t *testing.T) {
	if IsKind(errors.New("plain"), KindIntegrity) {
		t.Fatal("expected IsKind to be false for an untyped error")
	}
}
