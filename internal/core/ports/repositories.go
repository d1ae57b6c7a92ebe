package ports

import (
	"context"

	"peercam/internal/core/domain"
)

type SessionRegistry interface {
	Save(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	UpdateState(ctx context.Context, id domain.SessionID, state domain.SessionState) error
	Delete(ctx context.Context, id domain.SessionID) error
	ListActive(ctx context.Context) ([]*domain.Session, error)
}
