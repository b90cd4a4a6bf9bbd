package services

import (
	"context"

	"expensegroups/internal/amqp"
)

// EventPublisher delivers expense change events out of band. *amqp.Client
// implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event amqp.ExpenseEvent) error
}

var _ EventPublisher = (*amqp.Client)(nil)
