package storage

import "errors"

var (
	ErrEmptyKey                     = errors.New("storage.empty_key")
	ErrFailedToParseRedisConnString = errors.New("storage.redis_invalid_url")
	ErrRedisNotReady                = errors.New("storage.redis_not_ready")
	ErrFileTier                     = errors.New("storage.file_tier_failed")
	ErrEmptyValue                   = errors.New("storage.empty_value")
)
