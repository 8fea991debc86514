package analyze

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 1)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if cb.State() != CBClosed {
		t.Fatal("opened before threshold")
	}
	cb.RecordFailure()
	if cb.State() != CBOpen {
		t.Fatal("did not open at threshold")
	}
	if cb.Allow() {
		t.Error("open breaker allowed a call")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CBClosed {
		t.Error("consecutive count not reset by success")
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 1)

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("open breaker allowed a call")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker did not half-open after reset timeout")
	}
	if cb.State() != CBHalfOpen {
		t.Fatalf("state: got %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != CBClosed {
		t.Error("breaker did not close after half-open success")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 2)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != CBOpen {
		t.Error("half-open breaker did not reopen on failure")
	}
}
