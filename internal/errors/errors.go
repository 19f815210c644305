package errors

import "fmt"

var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrProductNotFound    = fmt.Errorf("product not found")
	ErrOrderNotFound      = fmt.Errorf("order not found")
	ErrInsufficientStock  = fmt.Errorf("insufficient stock")
	ErrNotEnoughReferrals = fmt.Errorf("not enough qualified referrals")
	ErrBonusCooldown      = fmt.Errorf("free phone bonus already received within the last year")
	ErrBelowMinWithdrawal = fmt.Errorf("available cashback below minimal withdrawal")
	ErrEmailExists        = fmt.Errorf("email already registered")
	ErrPhoneExists        = fmt.Errorf("phone already registered")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrUserBlocked        = fmt.Errorf("user is blocked")
	ErrEmptyOrder         = fmt.Errorf("order must contain at least one item")
	ErrInvalidStatus      = fmt.Errorf("unknown order status")
)
