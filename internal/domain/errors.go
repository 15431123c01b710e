package domain

import "errors"

var (
	// ErrInvalidRequest is returned for bad input before any computation; never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrActiveSessionConflict means the user already has an active focus session.
	ErrActiveSessionConflict = errors.New("active focus session already exists")
	// ErrStorageUnavailable wraps persistence failures; callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrAdvisorUnavailable is recovered locally by the deterministic slot finder.
	ErrAdvisorUnavailable = errors.New("advisor unavailable")
	// ErrSyncFailed marks a failed presence update; recorded on the session, never fatal.
	ErrSyncFailed = errors.New("status sync failed")
	ErrNotFound   = errors.New("not found")
)
