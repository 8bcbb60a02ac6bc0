package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport or API error of the exchange
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch order", "place order")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InsufficientBalanceError is returned when the ladder needs more of a currency than is free.
type InsufficientBalanceError struct {
	Currency  string
	Need      decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient trading balance: need %s %s, available %s",
		e.Need.String(), e.Currency, e.Available.String())
}

func (e *InsufficientBalanceError) IsRetriable() bool {
	return false
}

// ExternalInterferenceError reports a tracked order that was cancelled or filled
// outside of the bot's control.
type ExternalInterferenceError struct {
	OrderID string
	Side    Side
	Status  OrderStatus
	Reason  string
}

func (e *ExternalInterferenceError) Error() string {
	return fmt.Sprintf("%s order %s is %s: %s", e.Side, e.OrderID, e.Status, e.Reason)
}

func (e *ExternalInterferenceError) IsRetriable() bool {
	return false
}

// FatalError marks an error after which the process must stop issuing exchange mutations.
type FatalError struct {
	Stage string // "startup", "recovery", "build", "cancel", "persist"
	Err   error
}

func (e *FatalError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err into a *FatalError. A nil err stays nil.
func Fatal(stage string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Stage: stage, Err: err}
}

// IsFatal checks if the error must halt the bot
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

var (
	// ErrUnrecoverable is returned once the persisted state is flagged unrecoverable.
	ErrUnrecoverable = errors.New("ladder state is unrecoverable: cancel all orders and clear the persisted state manually")

	// ErrInvalidState is returned when a ladder state violates its invariants.
	ErrInvalidState = errors.New("invalid ladder state")

	// ErrInvalidSymbol is returned when a symbol is not supported or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrOrderNotFound is returned by exchanges that do not know an order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
