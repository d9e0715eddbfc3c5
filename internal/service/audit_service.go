package service

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/event-admin/internal/events"
)

// AuditService writes an audit trail of authentication events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleInfo)
	a.dispatcher.Subscribe(events.EventRefreshRotated, a.handleDebug)
	a.dispatcher.Subscribe(events.EventLoggedOut, a.handleInfo)
	a.dispatcher.Subscribe(events.EventSessionsRevoked, a.handleInfo)
	a.dispatcher.Subscribe(events.EventRefreshReplayDetected, a.handleWarn)
	a.dispatcher.Subscribe(events.EventRevocationStateChanged, a.handleWarn)
}

func (a *AuditService) handleDebug(_ context.Context, event events.Event) error {
	a.write(zapcore.DebugLevel, event)
	return nil
}

func (a *AuditService) handleInfo(_ context.Context, event events.Event) error {
	a.write(zapcore.InfoLevel, event)
	return nil
}

func (a *AuditService) handleWarn(_ context.Context, event events.Event) error {
	a.write(zapcore.WarnLevel, event)
	return nil
}

func (a *AuditService) write(level zapcore.Level, event events.Event) {
	if ce := a.logger.Check(level, string(event.Type)); ce != nil {
		ce.Write(
			zap.String("event_id", event.ID),
			zap.String("actor_kind", string(event.Actor.Kind)),
			zap.String("actor_id", event.Actor.ID),
			zap.Time("at", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
	}
}
