package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySettled   = errors.New("trade already settled")
	ErrConflict         = errors.New("conflicting update")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidTrade     = errors.New("invalid trade parameters")
	ErrInvalidAsset     = errors.New("invalid asset parameters")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLockHeld         = errors.New("lock already held")
)
