package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrInvalidRecord        = errors.New("invalid record")
	ErrCorruptNamespace     = errors.New("corrupt namespace")
	ErrRateLimited          = errors.New("rate limited")
	ErrScanInProgress       = errors.New("scan already in progress")
	ErrMeasuredPrecedence   = errors.New("measured record takes precedence over estimate")
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
	ErrContextDone          = errors.New("context cancelled")
)
