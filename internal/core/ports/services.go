package ports

import (
	"context"

	"peercam/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// SessionOptions carries everything a backend supplies when it opens a
// session. The callbacks are invoked on the reactor.
type SessionOptions struct {
	ClientID  domain.ClientID
	ChannelID domain.ChannelID
	Backend   string
	Metadata  map[string]interface{}

	OnCandidate   func(candidate string)
	OnStateChange func(state webrtc.ICEConnectionState)
	OnClose       func()
}

// ConnectionManager owns every long-lived session for the whole run.
// Backends never hold it directly; access goes through a ManagerHandle.
type ConnectionManager interface {
	CreateSession(ctx context.Context, opts SessionOptions) (*domain.Session, error)
	HandleOffer(ctx context.Context, id domain.SessionID, sdp string) (string, error)
	CreateOffer(ctx context.Context, id domain.SessionID) (string, error)
	HandleAnswer(ctx context.Context, id domain.SessionID, sdp string) error
	AddCandidate(ctx context.Context, id domain.SessionID, candidate string) error
	CloseSession(ctx context.Context, id domain.SessionID) error
	RequestKeyframes(ctx context.Context)
	ActiveSessions() int
}

// ManagerHandle is a non-owning accessor for the ConnectionManager.
// Acquire returns false once the handle is closed; a successful acquire
// must be paired with the release func.
type ManagerHandle interface {
	Acquire() (ConnectionManager, func(), bool)
}

// SignalingBackend is one signaling surface. Construction acquires its
// resources (a listen socket for bound variants); Run starts serving and
// returns immediately. Stopping the reactor cancels everything a backend
// has in flight.
type SignalingBackend interface {
	Name() string
	Run() error
}

// BrokerStatus describes the live state of a broker backend.
type BrokerStatus struct {
	Backend   string           `json:"backend"`
	Connected bool             `json:"connected"`
	ChannelID domain.ChannelID `json:"channel_id"`
	Sessions  int              `json:"sessions"`
}

// BrokerControl is the on-demand trigger surface a broker backend
// exposes on its loopback control API.
type BrokerControl interface {
	Connect() error
	Disconnect() error
	Status() BrokerStatus
}
