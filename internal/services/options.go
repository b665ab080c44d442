// Package services orchestrates the store, the pure calculations in core,
// the overview cache and event publishing.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/cache"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/store"

	"github.com/google/uuid"
)

const msgUserNotFound = "User not found"

// Publisher sends domain events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, e amqp.Event) error
}

var _ Publisher = (*amqp.Client)(nil)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, amqp.Event) error { return nil }

type options struct {
	publisher Publisher
	overviews cache.Cache[Overview]
	now       func() time.Time
	newID     func() string
	logger    *applog.Logger
}

// Option configures any of the services.
type Option func(*options)

func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithOverviewCache shares one overview cache between the services so that
// writes invalidate what the dashboard serves.
func WithOverviewCache(c cache.Cache[Overview]) Option {
	return func(o *options) { o.overviews = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithLogger(l *applog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(component string, opts []Option) options {
	o := options{
		publisher: noopPublisher{},
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    applog.New(applog.Config{Component: component}),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// invalidate drops every cached overview of userID.
func (o options) invalidate(userID string) {
	if o.overviews != nil {
		o.overviews.DeletePrefix(overviewKeyPrefix(userID))
	}
}

func overviewKeyPrefix(userID string) string {
	return userID + "|"
}

// requireUser maps a missing owner to NotFound.
func requireUser(ctx context.Context, users store.UserStore, userID string) error {
	if userID == "" {
		return core.NotFound(msgUserNotFound)
	}
	_, err := users.FindUserByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.NotFound(msgUserNotFound)
	case err != nil:
		return fmt.Errorf("find user: %w", err)
	}
	return nil
}
