package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

// ErrConnection : broker injoignable ou circuit ouvert.
var ErrConnection = apperr.ErrConnection

// State reprend les trois états du disjoncteur qui protège la publication.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

type Config struct {
	URL  string
	Name string

	ConnectTimeout time.Duration
	// Backoff exponentiel de la connexion initiale et des reconnexions.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Disjoncteur : nombre d'échecs consécutifs avant ouverture, durée d'ouverture.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Durée de vie côté serveur d'une file anonyme sans client.
	EphemeralInactiveThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "cenackle"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 10 * time.Second
	}
	if c.EphemeralInactiveThreshold <= 0 {
		c.EphemeralInactiveThreshold = time.Minute
	}
	return c
}

// Client est le client NATS JetStream d'un processus : une connexion, un contexte JetStream.
// Il est construit une fois au démarrage puis injecté dans les adapters.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	nc      *nats.Conn
	js      jetstream.JetStream
	topic   string
	durable bool
	// declared passe à true quand le stream existe côté serveur, à false à chaque déconnexion :
	// un redémarrage du broker emporte un stream en mémoire et les files anonymes.
	declared atomic.Bool
	subs     []*natsSubscription
	closed   bool

	// reconnected réveille supervise après une reconnexion ; done se ferme avec Close.
	reconnected chan struct{}
	done        chan struct{}

	listenersMu sync.Mutex
	listeners   []func(healthy bool)

	// Dernier état de santé pas encore transmis ; healthLoop est le seul à appeler les observateurs.
	healthMu    sync.Mutex
	healthState bool
	healthDirty bool
	healthWake  chan struct{}
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:         cfg.withDefaults(),
		logger:      logger.With("component", "eventbus"),
		tracer:      otel.Tracer("github.com/jupiterclapton/cenackle/pkg/eventbus"),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
		healthWake:  make(chan struct{}, 1),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        c.cfg.Name + "-publish",
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("publish circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
			switch to {
			case gobreaker.StateOpen:
				c.notify(false)
			case gobreaker.StateClosed:
				c.notify(c.Connected() && c.declared.Load())
			}
		},
	})
	go c.healthLoop()
	go c.supervise()
	return c
}

// Connect établit la connexion et le contexte JetStream. Idempotent : si la connexion
// existe déjà, rien n'est refait. Les topics et abonnements enregistrés avant la connexion
// sont installés ici.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.nc != nil && !c.nc.IsClosed() {
		return nil
	}

	reconnectBackoff := c.newBackOff()
	nc, err := nats.Connect(c.cfg.URL,
		nats.Name(c.cfg.Name),
		nats.Timeout(c.cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		// Pas de tampon pendant une reconnexion : la publication échoue vite et le disjoncteur le voit.
		nats.ReconnectBufSize(-1),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			if attempts <= 1 {
				reconnectBackoff.Reset()
			}
			return reconnectBackoff.NextBackOff()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("broker connection lost", "error", err)
			c.declared.Store(false)
			c.notify(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			// La topologie est réinstallée par supervise, hors du goroutine de callback NATS.
			c.logger.Info("broker connection restored", "url", nc.ConnectedUrl())
			select {
			case c.reconnected <- struct{}{}:
			default:
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("broker connection closed")
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("%w: jetstream init: %v", ErrConnection, err)
	}

	c.nc, c.js = nc, js
	c.logger.Info("connected to broker", "url", nc.ConnectedUrl())

	if err := c.installLocked(ctx); err != nil {
		c.logger.Error("failed to install topology", "error", err)
	}
	c.notify(c.topic == "" || c.declared.Load())
	return nil
}

// Run tente la connexion en tâche de fond avec un backoff exponentiel, jusqu'au succès
// ou à l'annulation du contexte. Les requêtes n'attendent jamais ce processus.
func (c *Client) Run(ctx context.Context) error {
	eb := c.newBackOff()
	for {
		err := c.Connect(ctx)
		if err == nil || errors.Is(err, ErrClosed) {
			return err
		}
		wait := eb.NextBackOff()
		c.logger.Warn("broker unreachable, retrying", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// supervise réinstalle stream et files après chaque reconnexion.
func (c *Client) supervise() {
	for {
		select {
		case <-c.done:
			return
		case <-c.reconnected:
		}
		c.reinstall()
	}
}

// reinstall redéclare le topic et recrée chaque file, avec backoff tant que ça échoue.
// La santé ne repasse à true qu'une fois la topologie en place.
func (c *Client) reinstall() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.declared.Store(false)
	for _, s := range c.subs {
		s.reset()
	}
	c.mu.Unlock()

	eb := c.newBackOff()
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		err := c.installLocked(ctx)
		cancel()
		topic, subs := c.topic, len(c.subs)
		c.mu.Unlock()

		if err == nil {
			c.logger.Info("topology reinstalled after reconnect", "topic", topic, "subscriptions", subs)
			c.notify(c.Connected())
			return
		}

		wait := eb.NextBackOff()
		c.logger.Warn("failed to reinstall topology, retrying", "error", err, "retry_in", wait)
		timer := time.NewTimer(wait)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	eb.MaxInterval = c.cfg.MaxBackoff
	eb.Reset()
	return eb
}

// DeclareTopic garantit l'existence du topic exchange (un stream JetStream qui capture
// "<name>.>"). Répétable sans effet. Sans connexion, la déclaration est retenue et
// appliquée à la connexion ; ErrConnection est tout de même renvoyée.
func (c *Client) DeclareTopic(ctx context.Context, name string, durable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.topic != "" && c.topic != name {
		return fmt.Errorf("topic already declared as %q", c.topic)
	}
	if c.topic == name && c.durable == durable && c.declared.Load() {
		return nil
	}
	c.topic, c.durable = name, durable
	c.declared.Store(false)

	if c.js == nil {
		return fmt.Errorf("%w: topic %s will be declared on connect", ErrConnection, name)
	}
	if err := c.installLocked(ctx); err != nil {
		return err
	}
	c.notify(c.nc != nil && c.nc.IsConnected())
	return nil
}

func (c *Client) declareLocked(ctx context.Context) error {
	storage := jetstream.MemoryStorage
	if c.durable {
		storage = jetstream.FileStorage
	}

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     c.topic,
		Subjects: []string{c.topic + ".>"},
		Storage:  storage,
		// Un message sans file liée est perdu, comme sur un topic exchange.
		Retention: jetstream.InterestPolicy,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("declare topic %s: %w", c.topic, err)
	}
	c.declared.Store(true)
	c.logger.Info("topic declared", "topic", c.topic, "durable", c.durable)
	return nil
}

func (c *Client) installLocked(ctx context.Context) error {
	if c.topic != "" && !c.declared.Load() {
		if err := c.declareLocked(ctx); err != nil {
			return err
		}
	}
	var errs []error
	for _, s := range c.subs {
		if s.cc != nil {
			continue
		}
		if err := s.install(ctx, c.js, c.topic); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish envoie payload sous routingKey sans attendre de confirmation du broker.
// Un appel = un message ; aucune clé de déduplication n'est ajoutée.
func (c *Client) Publish(ctx context.Context, routingKey string, payload any) error {
	if err := validateRoutingKey(routingKey); err != nil {
		return err
	}

	c.mu.Lock()
	topic := c.topic
	c.mu.Unlock()
	if topic == "" {
		return ErrTopicNotDeclared
	}

	env, err := NewEnvelope(routingKey, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.publish(ctx, topic, routingKey, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: publish circuit %s", ErrConnection, c.State())
	}
	if err != nil {
		return err
	}

	c.logger.Debug("event published", "routing_key", routingKey, "event_id", env.ID, "event_type", env.Type)
	return nil
}

func (c *Client) publish(ctx context.Context, topic, routingKey string, data []byte) error {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()

	if nc == nil || !nc.IsConnected() {
		return fmt.Errorf("%w: not connected", ErrConnection)
	}
	// Sans stream le message partirait vers un sujet que personne ne capture
	if !c.declared.Load() {
		return fmt.Errorf("%w: topic %s not installed", ErrConnection, topic)
	}

	msg := nats.NewMsg(topic + "." + routingKey)
	msg.Data = data
	// Le trace-id de la requête HTTP suit l'événement jusqu'aux consommateurs.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Flush attend que le serveur ait reçu tout ce qui a été publié. Utile avant une sortie
// de processus, Publish n'attendant aucune confirmation.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		return fmt.Errorf("%w: not connected", ErrConnection)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Subscribe crée une file exclusive (consumer JetStream éphémère filtré sur la routing key)
// et livre les messages un par un au Handler. Sans connexion, l'abonnement est installé
// dès que la connexion s'établit.
func (c *Client) Subscribe(ctx context.Context, routingKey string, h Handler, opts ...SubscribeOption) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.topic == "" {
		return nil, ErrTopicNotDeclared
	}
	subject, err := subjectFor(c.topic, routingKey)
	if err != nil {
		return nil, err
	}

	s := &natsSubscription{
		client:  c,
		pattern: routingKey,
		subject: subject,
		handler: h,
		opts:    newSubscribeOptions(opts),
	}

	if c.js == nil || !c.declared.Load() {
		c.subs = append(c.subs, s)
		c.logger.Warn("broker not connected, subscription deferred", "routing_key", routingKey)
		return s, nil
	}
	if err := s.install(ctx, c.js, c.topic); err != nil {
		return nil, err
	}
	c.subs = append(c.subs, s)
	return s, nil
}

func (c *Client) State() State {
	switch c.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc != nil && c.nc.IsConnected()
}

// OnHealthChange enregistre un observateur (ex : health check gRPC). Les observateurs sont
// appelés un par un, dans l'ordre des changements ; des changements rapprochés peuvent être
// fusionnés mais le dernier état est toujours transmis en dernier.
func (c *Client) OnHealthChange(fn func(healthy bool)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// notify ne bloque jamais : appelable depuis un callback NATS ou sous c.mu.
func (c *Client) notify(healthy bool) {
	c.healthMu.Lock()
	c.healthState, c.healthDirty = healthy, true
	c.healthMu.Unlock()

	select {
	case c.healthWake <- struct{}{}:
	default:
	}
}

func (c *Client) healthLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.healthWake:
		}

		c.healthMu.Lock()
		healthy, dirty := c.healthState, c.healthDirty
		c.healthDirty = false
		c.healthMu.Unlock()
		if !dirty {
			continue
		}

		c.listenersMu.Lock()
		listeners := append([]func(bool){}, c.listeners...)
		c.listenersMu.Unlock()
		for _, fn := range listeners {
			fn(healthy)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	subs := c.subs
	c.subs = nil
	nc := c.nc
	c.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	if nc != nil {
		nc.Close()
	}
	return nil
}

func (c *Client) removeLocked(s *natsSubscription) {
	for i, other := range c.subs {
		if other == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

type natsSubscription struct {
	client  *Client
	pattern string
	subject string
	handler Handler
	opts    subscribeOptions

	topic    string
	stream   jetstream.Stream
	consumer string
	cc       jetstream.ConsumeContext
}

func (s *natsSubscription) install(ctx context.Context, js jetstream.JetStream, topic string) error {
	stream, err := js.Stream(ctx, topic)
	if err != nil {
		return fmt.Errorf("lookup topic %s: %w", topic, err)
	}

	maxDeliver := s.opts.maxDeliver
	if maxDeliver <= 0 {
		maxDeliver = -1
	}
	cfg := jetstream.ConsumerConfig{
		Durable:       s.opts.queue,
		FilterSubject: s.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckWait:       s.opts.timeout + 5*time.Second,
		MaxDeliver:    maxDeliver,
		// Un seul message en vol par file.
		MaxAckPending: 1,
	}
	if s.opts.queue == "" {
		cfg.InactiveThreshold = s.client.cfg.EphemeralInactiveThreshold
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bind queue for %s: %w", s.pattern, err)
	}

	cc, err := cons.Consume(s.onMessage,
		jetstream.PullMaxMessages(1),
		jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
			s.client.logger.Warn("consume error", "routing_key", s.pattern, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.pattern, err)
	}

	s.topic, s.stream, s.cc = topic, stream, cc
	s.consumer = cons.CachedInfo().Name
	s.client.logger.Info("subscribed", "routing_key", s.pattern, "queue", s.consumer)
	return nil
}

func (s *natsSubscription) onMessage(msg jetstream.Msg) {
	logger := s.client.logger
	routingKey := routingKeyFromSubject(s.topic, msg.Subject())

	attempt := 1
	if md, err := msg.Metadata(); err == nil {
		attempt = int(md.NumDelivered)
	}

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Headers()))
	ctx, span := s.client.tracer.Start(ctx, "consume "+routingKey, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	env, err := DecodeEnvelope(msg.Data())
	if err != nil {
		span.RecordError(err)
		logger.Error("dropping undecodable message", "routing_key", routingKey, "error", err)
		if err := msg.Term(); err != nil {
			logger.Error("failed to terminate message", "routing_key", routingKey, "error", err)
		}
		return
	}

	d := Delivery{RoutingKey: routingKey, Envelope: env, Attempt: attempt}
	res := dispatch(ctx, logger, s.opts, s.handler, d)

	switch res {
	case outcomeAck:
		err = msg.Ack()
	case outcomeRetry:
		err = msg.NakWithDelay(s.opts.retryDelay)
	default:
		err = msg.Term()
	}
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to settle message", "routing_key", routingKey, "event_id", env.ID, "outcome", res.String(), "error", err)
	}
}

func (s *natsSubscription) stop() {
	if s.cc != nil {
		s.cc.Stop()
	}
}

// reset oublie le consumer courant pour que installLocked le recrée. Appelé sous c.mu.
func (s *natsSubscription) reset() {
	s.stop()
	if s.opts.queue == "" && s.stream != nil && s.consumer != "" {
		// Après une simple coupure réseau l'ancienne file anonyme existe encore ; sinon
		// InactiveThreshold s'en charge.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.stream.DeleteConsumer(ctx, s.consumer)
		cancel()
	}
	s.stream, s.cc, s.consumer = nil, nil, ""
}

// Unsubscribe arrête la consommation. Une file anonyme est supprimée côté serveur.
func (s *natsSubscription) Unsubscribe() error {
	c := s.client
	c.mu.Lock()
	s.stop()
	c.removeLocked(s)
	stream, consumer := s.stream, s.consumer
	c.mu.Unlock()

	if s.opts.queue != "" || stream == nil || consumer == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stream.DeleteConsumer(ctx, consumer); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return fmt.Errorf("delete queue %s: %w", consumer, err)
	}
	return nil
}
