package domain

import "time"

type SessionMetrics struct {
	SessionID        SessionID
	VideoPackets     uint64
	AudioPackets     uint64
	DataMessages     uint64
	KeyframeRequests uint64
	Timestamp        time.Time
}

type RunMetrics struct {
	ActiveSessions    int
	SignalingMessages uint64
	DroppedDispatches uint64
	Uptime            time.Duration
	Timestamp         time.Time
}
