package contract

import "errors"

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("partner service unavailable")
	ErrInvalidArgs        = errors.New("invalid tool arguments")
	ErrTurnBudgetExceeded = errors.New("tool round budget exceeded")
)
