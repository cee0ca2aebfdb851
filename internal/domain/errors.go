package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedMessage = errors.New("malformed queue message")
	ErrRemoteBackend    = errors.New("remote backend request failed")
	ErrNoOpenTrade      = errors.New("no matching open buy trade")
	ErrSyncExhausted    = errors.New("trade sync retries exhausted")
	ErrInvalidAddress   = errors.New("invalid token address")
)
