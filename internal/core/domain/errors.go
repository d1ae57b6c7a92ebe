package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrManagerUnavailable = errors.New("connection manager unavailable")
	ErrReactorStopped     = errors.New("reactor stopped")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrChannelOccupied    = errors.New("channel already occupied")
)
