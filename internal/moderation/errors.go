package moderation

import "errors"

var (
	ErrNoPermission      = errors.New("requester lacks the required permission")
	ErrInvalidTarget     = errors.New("target cannot be sanctioned")
	ErrInvalidDuration   = errors.New("duration is outside the allowed range")
	ErrDurationTooLong   = errors.New("duration exceeds the platform maximum")
	ErrStorageLoadFailed = errors.New("pending sanctions could not be loaded")
	ErrStorageSaveFailed = errors.New("pending sanctions could not be saved")
)
