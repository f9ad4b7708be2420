package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Payment / subscription errors
	ErrPricingNotFound       = errors.New("no active pricing for plan and currency")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrForbidden             = errors.New("payment belongs to another user")
	ErrInvalidSignature      = errors.New("payment signature verification failed")
	ErrPaymentAlreadyClaimed = errors.New("provider payment already claimed by another record")
	ErrPaymentNotPending     = errors.New("payment is not pending")
	ErrPaymentNotRefundable  = errors.New("payment is not in a refundable state")
	ErrAmountMismatch        = errors.New("gateway amount disagrees with recorded payment")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrGatewayRejected       = errors.New("payment gateway rejected the request")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrUnsupportedCurrency   = errors.New("no gateway configured for currency")
)
