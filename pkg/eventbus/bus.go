// Package eventbus est l'abstraction du bus d'événements : un topic exchange partagé,
// publication fire-and-forget et abonnements exclusifs avec ACK/NACK explicites.
package eventbus

import (
	"context"
	"errors"
	"time"
)

// Handler traite une livraison. nil => ACK, erreur => NACK + redélivrance,
// Discard(err) => message abandonné (journalisé).
// La livraison est au moins une fois : un Handler doit être idempotent.
type Handler func(ctx context.Context, d Delivery) error

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, routingKey string, h Handler, opts ...SubscribeOption) (Subscription, error)
}

// Bus est implémenté par le client NATS JetStream et par le bus mémoire.
type Bus interface {
	Publisher
	Subscriber
	DeclareTopic(ctx context.Context, name string, durable bool) error
	Close() error
}

type Subscription interface {
	Unsubscribe() error
}

var (
	ErrTopicNotDeclared = errors.New("topic not declared")
	ErrClosed           = errors.New("event bus closed")
)

const (
	DefaultProcessingTimeout = 30 * time.Second
	DefaultRetryDelay        = 2 * time.Second
	DefaultMaxDeliver        = 5
)

type subscribeOptions struct {
	queue      string
	timeout    time.Duration
	retryDelay time.Duration
	maxDeliver int
}

type SubscribeOption func(*subscribeOptions)

// WithQueue remplace la file anonyme exclusive par une file nommée et durable :
// les messages publiés pendant un redémarrage du consommateur ne sont pas perdus.
func WithQueue(name string) SubscribeOption {
	return func(o *subscribeOptions) { o.queue = name }
}

// WithProcessingTimeout borne la durée d'un Handler. Un Handler bloqué ne gèle plus la file.
func WithProcessingTimeout(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) { o.timeout = d }
}

func WithRetryDelay(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) { o.retryDelay = d }
}

// WithMaxDeliver fixe le nombre de livraisons avant abandon (0 = illimité).
func WithMaxDeliver(n int) SubscribeOption {
	return func(o *subscribeOptions) { o.maxDeliver = n }
}

func newSubscribeOptions(opts []SubscribeOption) subscribeOptions {
	o := subscribeOptions{
		timeout:    DefaultProcessingTimeout,
		retryDelay: DefaultRetryDelay,
		maxDeliver: DefaultMaxDeliver,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type discardError struct{ err error }

func (e *discardError) Error() string { return e.err.Error() }
func (e *discardError) Unwrap() error { return e.err }

// Discard marque une erreur comme définitive : le message est acquitté puis oublié.
func Discard(err error) error {
	if err == nil {
		return nil
	}
	return &discardError{err: err}
}

func IsDiscard(err error) bool {
	var d *discardError
	return errors.As(err, &d)
}
