package services

import "errors"

// Batch errors
var (
	ErrBatchNotFound       = errors.New("batch: not found")
	ErrBatchEmpty          = errors.New("batch: no files submitted")
	ErrBatchAllRejected    = errors.New("batch: every file was rejected")
	ErrTaskNotFound        = errors.New("batch: task not found")
	ErrServiceShuttingDown = errors.New("batch: service is shutting down")
)

// Asset errors
var (
	ErrAssetNotFound     = errors.New("asset: not found")
	ErrAssetRemoveFailed = errors.New("asset: remote remove failed")
)

// Setting errors
var (
	ErrSettingInvalid = errors.New("setting: invalid value")
)
