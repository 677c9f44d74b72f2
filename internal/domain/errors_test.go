package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "dedupe exists", err: ErrDedupeKeyExists, want: true},
		{name: "wrapped", err: fmt.Errorf("settle PBS-1: %w", ErrDedupeKeyExists), want: true},
		{name: "other error", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.err); got != tt.want {
				t.Errorf("IsDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLedgerFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unreachable", err: fmt.Errorf("%w: timeout", ErrLedgerUnreachable), want: true},
		{name: "finalize rejected", err: ErrFinalizeRejected, want: true},
		{name: "insufficient stock", err: errors.Join(ErrInsufficientStock, errors.New("habis")), want: true},
		{name: "gateway", err: ErrGatewayUnavailable, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLedgerFailure(tt.err); got != tt.want {
				t.Errorf("IsLedgerFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeRecordExpired(t *testing.T) {
	now := time.Now()
	if !(DedupeRecord{TTLAt: now}).Expired(now) {
		t.Fatal("record with ttl == now must be expired")
	}
	if (DedupeRecord{TTLAt: now.Add(time.Second)}).Expired(now) {
		t.Fatal("record with future ttl must not be expired")
	}
}
