package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("fetch order", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "fetch order: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "fetch order: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("auth", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("auth", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "strategy.pair", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [strategy.pair]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestInsufficientBalanceError(t *testing.T) {
	err := &InsufficientBalanceError{
		Currency:  "BTC",
		Need:      decimal.RequireFromString("0.4"),
		Available: decimal.RequireFromString("0.25"),
	}

	expected := "insufficient trading balance: need 0.4 BTC, available 0.25"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
	if IsRetriable(err) {
		t.Error("insufficient balance must not be retriable")
	}
}

func TestFatal(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if Fatal("build", nil) != nil {
			t.Error("Fatal(nil) should be nil")
		}
	})

	t.Run("wraps and unwraps", func(t *testing.T) {
		err := Fatal("recovery", ErrUnrecoverable)
		if !IsFatal(err) {
			t.Error("Expected fatal error")
		}
		if !errors.Is(err, ErrUnrecoverable) {
			t.Error("Expected to unwrap to ErrUnrecoverable")
		}
	})

	t.Run("does not double wrap", func(t *testing.T) {
		inner := Fatal("cancel", errors.New("x"))
		outer := Fatal("build", inner)
		var fe *FatalError
		if !errors.As(outer, &fe) || fe.Stage != "cancel" {
			t.Errorf("Expected original stage to be kept, got %v", outer)
		}
	})

	t.Run("plain errors are not fatal", func(t *testing.T) {
		if IsFatal(errors.New("timeout")) {
			t.Error("plain error should not be fatal")
		}
	})
}
