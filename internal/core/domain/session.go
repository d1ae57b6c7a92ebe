package domain

import (
	"time"
)

type SessionID string
type ClientID string
type ChannelID string

type SessionState string

const (
	SessionNew        SessionState = "new"
	SessionConnecting SessionState = "connecting"
	SessionConnected  SessionState = "connected"
	SessionClosed     SessionState = "closed"
)

type Session struct {
	ID        SessionID
	ClientID  ClientID
	ChannelID ChannelID
	Backend   string
	State     SessionState
	Metadata  map[string]interface{}
	CreatedAt time.Time
	LastSeen  time.Time
}

type MediaProfile struct {
	VideoCodec   string
	AudioCodec   string
	VideoBitrate int // kbps
	AudioBitrate int // kbps
	Width        int
	Height       int
	Framerate    int
	Priority     string
}
