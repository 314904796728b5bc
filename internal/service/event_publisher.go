package service

import (
	"context"

	"caqm-backend/internal/domain/entity"
)

// EventPublisher announces committed cancellations to other systems.
type EventPublisher interface {
	PublishAppointmentCancelled(ctx context.Context, event entity.AppointmentCancelledEvent) error
	Close() error
}

type noopEventPublisher struct{}

// NewNoopEventPublisher is used when no broker is configured.
func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) PublishAppointmentCancelled(context.Context, entity.AppointmentCancelledEvent) error {
	return nil
}

func (noopEventPublisher) Close() error { return nil }
