package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/observability"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

const (
	progressEventBufferSize = 64
	recentEventCapacity     = 4096
)

// ProgressEventSink receives transition events after the state change has been committed.
type ProgressEventSink interface {
	Publish(ctx context.Context, events []models.ProgressEvent) error
}

// MultiSink fans events out to every sink and joins their failures.
type MultiSink []ProgressEventSink

// Publish implements ProgressEventSink.
func (m MultiSink) Publish(ctx context.Context, events []models.ProgressEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type auditEventSink struct {
	repo repository.ProgressEventRepository
}

// NewAuditEventSink persists events to the audit trail table.
func NewAuditEventSink(repo repository.ProgressEventRepository) ProgressEventSink {
	return &auditEventSink{repo: repo}
}

func (s *auditEventSink) Publish(ctx context.Context, events []models.ProgressEvent) error {
	return s.repo.CreateBatch(ctx, events)
}

type metricsEventSink struct{}

// NewMetricsEventSink counts transitions per status pair.
func NewMetricsEventSink() ProgressEventSink {
	return metricsEventSink{}
}

func (metricsEventSink) Publish(_ context.Context, events []models.ProgressEvent) error {
	for _, event := range events {
		observability.ProgressTransitionsTotal().
			WithLabelValues(string(event.PreviousStatus), string(event.NewStatus)).
			Inc()
	}
	return nil
}

// ProgressEventBus streams transitions to local subscribers and relays them across
// API nodes over one transport: NATS when connected, otherwise Redis pub/sub.
type ProgressEventBus interface {
	ProgressEventSink
	Subscribe(sessionID uint) (<-chan models.ProgressEvent, func())
	Start(ctx context.Context)
}

type progressEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *progressBroker
	recent       *recentEvents
	nodeID       string
}

type relayTransport int

const (
	relayNone relayTransport = iota
	relayRedis
	relayNATS
)

// recentEvents remembers the last event ids seen so a redelivered envelope is not broadcast twice.
type recentEvents struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	next  int
}

func newRecentEvents(capacity int) *recentEvents {
	return &recentEvents{
		seen:  make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

// fresh records the ids and returns the events not seen before. Events without an id pass through.
func (r *recentEvents) fresh(events []models.ProgressEvent) []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ProgressEvent, 0, len(events))
	for _, event := range events {
		if event.EventID == "" {
			out = append(out, event)
			continue
		}
		if _, dup := r.seen[event.EventID]; dup {
			continue
		}
		if evicted := r.order[r.next]; evicted != "" {
			delete(r.seen, evicted)
		}
		r.order[r.next] = event.EventID
		r.next = (r.next + 1) % len(r.order)
		r.seen[event.EventID] = struct{}{}
		out = append(out, event)
	}
	return out
}

type progressEnvelope struct {
	Source string                 `json:"source"`
	Events []models.ProgressEvent `json:"events"`
	SentAt time.Time              `json:"sent_at"`
}

type progressBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan models.ProgressEvent]struct{}
}

// NewProgressEventBus constructs the bus. Redis and NATS are optional; with neither the
// bus only serves subscribers on this node.
func NewProgressEventBus(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ProgressEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &progressEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "progress_event_bus").Logger(),
		broker: &progressBroker{
			subscribers: make(map[uint]map[chan models.ProgressEvent]struct{}),
		},
		recent: newRecentEvents(recentEventCapacity),
		nodeID: uuid.NewString(),
	}
}

func (b *progressEventBus) transport() relayTransport {
	switch {
	case b.nats != nil && b.natsSubject != "":
		return relayNATS
	case b.redis != nil && b.redisChannel != "":
		return relayRedis
	default:
		return relayNone
	}
}

func (b *progressEventBus) Start(ctx context.Context) {
	switch b.transport() {
	case relayNATS:
		go b.consumeNATS(ctx)
	case relayRedis:
		go b.consumeRedis(ctx)
	}
}

func (b *progressEventBus) Publish(ctx context.Context, events []models.ProgressEvent) error {
	if len(events) == 0 {
		return nil
	}

	b.broker.broadcast(b.recent.fresh(events))

	payload, err := json.Marshal(progressEnvelope{
		Source: b.nodeID,
		Events: events,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	switch b.transport() {
	case relayNATS:
		return b.nats.Publish(b.natsSubject, payload)
	case relayRedis:
		return b.redis.Publish(ctx, b.redisChannel, payload).Err()
	default:
		return nil
	}
}

func (b *progressEventBus) Subscribe(sessionID uint) (<-chan models.ProgressEvent, func()) {
	channel := make(chan models.ProgressEvent, progressEventBufferSize)

	b.broker.subscribe(sessionID, channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.broker.unsubscribe(sessionID, channel)
			observability.StreamClientsActive().Dec()
		})
	}
	return channel, cleanup
}

func (b *progressEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("progress redis subscription closed")
			return
		}
		b.handleEnvelope([]byte(msg.Payload))
	}
}

func (b *progressEventBus) consumeNATS(ctx context.Context) {
	// every node needs every event for its own websocket clients, so no queue group
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEnvelope(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats progress subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain progress nats subscription")
		}
	}()
}

func (b *progressEventBus) handleEnvelope(payload []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid progress event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.broker.broadcast(b.recent.fresh(envelope.Events))
}

func (p *progressBroker) subscribe(sessionID uint, ch chan models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscribers[sessionID]; !exists {
		p.subscribers[sessionID] = make(map[chan models.ProgressEvent]struct{})
	}
	p.subscribers[sessionID][ch] = struct{}{}
}

func (p *progressBroker) unsubscribe(sessionID uint, ch chan models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if subscribers, ok := p.subscribers[sessionID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(p.subscribers, sessionID)
		}
	}
}

func (p *progressBroker) broadcast(events []models.ProgressEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, event := range events {
		for ch := range p.subscribers[event.SessionID] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}
