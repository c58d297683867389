// Package redis is a queue transport: callers push request messages onto a
// Redis list and receive replies on a list of their choosing.
//
// The action name is the "action" field of the message and the payload is
// its "params" object.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/dispatch"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/transport"
)

// Name identifies this transport in logs, metrics and dispatch requests.
const Name = "redis"

// DefaultQueue is the list workers pop requests from.
const DefaultQueue = "switchboard:requests"

// Adapter consumes request messages with a pool of BLPOP workers.
type Adapter struct {
	client      *backend.Client
	ownsClient  bool
	queue       string
	workers     int
	replyTTL    time.Duration
	pollTimeout time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	lc          *transport.Lifecycle
	dispatcher  *dispatch.Dispatcher

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeClient sync.Once
	handled     atomic.Int64
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithQueue overrides DefaultQueue.
func WithQueue(queue string) Option {
	return func(a *Adapter) {
		a.queue = queue
	}
}

// WithWorkers sets the number of concurrent consumers.
func WithWorkers(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithReplyTTL sets the expiration of reply lists. Zero keeps them forever.
func WithReplyTTL(ttl time.Duration) Option {
	return func(a *Adapter) {
		a.replyTTL = ttl
	}
}

// WithPollTimeout bounds each BLPOP so workers notice shutdown.
func WithPollTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.pollTimeout = d
		}
	}
}

// WithLogger configures the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithHooks registers dispatch hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Adapter) {
		a.hooks = a.hooks.Merge(hooks)
	}
}

// New creates an adapter with its own client. The client is closed with the adapter.
func New(address, password string, db int, opts ...Option) *Adapter {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	a := NewFromClient(client, opts...)
	a.ownsClient = true
	return a
}

// NewFromClient creates an adapter over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:      client,
		queue:       DefaultQueue,
		workers:     4,
		replyTTL:    time.Minute,
		pollTimeout: time.Second,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.lc = transport.NewLifecycle(Name, a.logger)
	a.dispatcher = dispatch.New(nil,
		dispatch.WithHooks(a.hooks),
		dispatch.WithLogger(a.logger),
	)
	return a
}

// Name implements transport.Adapter.
func (a *Adapter) Name() string { return Name }

// State implements transport.Adapter.
func (a *Adapter) State() transport.State { return a.lc.State() }

// Queue returns the request list key.
func (a *Adapter) Queue() string { return a.queue }

// Handled returns the number of messages processed so far.
func (a *Adapter) Handled() int64 { return a.handled.Load() }

// RegisterActionMap implements transport.Adapter.
func (a *Adapter) RegisterActionMap(reg *registry.Registry) {
	if reg == nil {
		a.dispatcher.Use(nil)
		return
	}
	a.dispatcher.Use(reg)
}

// Open checks connectivity and starts the workers.
func (a *Adapter) Open(ctx context.Context) error {
	return a.lc.Open(func() error {
		if err := a.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		runCtx, cancel := context.WithCancel(context.Background())
		a.mu.Lock()
		a.cancel = cancel
		a.mu.Unlock()

		for i := 0; i < a.workers; i++ {
			a.wg.Add(1)
			go a.work(runCtx, i)
		}
		a.logger.Info("redis transport consuming", "queue", a.queue, "workers", a.workers)
		return nil
	})
}

// Close stops the workers and waits for in-flight messages until ctx expires.
func (a *Adapter) Close(ctx context.Context) error {
	err := a.lc.Close(func() error {
		a.mu.Lock()
		cancel := a.cancel
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for workers: %w", ctx.Err())
		}
	})

	if a.ownsClient {
		a.closeClient.Do(func() {
			if cerr := a.client.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		})
	}
	return err
}

func (a *Adapter) work(ctx context.Context, id int) {
	defer a.wg.Done()
	logger := a.logger.With("worker", id)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := a.client.BLPop(ctx, a.pollTimeout, a.queue).Result()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue pop failed", "queue", a.queue, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.pollTimeout):
			}
			continue
		}
		if len(res) != 2 {
			continue
		}

		// In-flight messages finish even when shutdown starts.
		a.handle(context.WithoutCancel(ctx), res[1])
	}
}

// handle processes one raw message and pushes its reply.
func (a *Adapter) handle(ctx context.Context, raw string) {
	defer a.handled.Add(1)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("message handling panicked", "queue", a.queue, "panic", r)
		}
	}()

	msg, err := decodeMessage(raw)
	if err != nil {
		a.logger.Warn("dropping undecodable message", "queue", a.queue, "error", err)
		return
	}

	reply := failed(msg.ID, domain.TransportUnavailable())
	if a.lc.IsOpen() {
		resp := a.dispatcher.Dispatch(ctx, domain.Request{
			Action:    msg.Action,
			Payload:   msg.Params,
			Transport: Name,
		})
		if resp.Error != nil {
			reply = failed(msg.ID, resp.Error)
		} else {
			reply = Reply{ID: msg.ID, Status: StatusOK, Data: resp.Result}
		}
	}

	if msg.ReplyTo == "" {
		a.logger.Debug("no reply_to, reply discarded", "id", msg.ID, "action", msg.Action)
		return
	}
	if err := a.reply(ctx, msg.ReplyTo, reply); err != nil {
		a.logger.Error("reply failed", "id", msg.ID, "reply_to", msg.ReplyTo, "error", err)
	}
}

func (a *Adapter) reply(ctx context.Context, key string, reply Reply) error {
	data, err := encodeReply(reply)
	if err != nil {
		a.logger.Error("reply encode failed", "id", reply.ID, "error", err)
		data, err = json.Marshal(failed(reply.ID, domain.SerializationFault(err)))
		if err != nil {
			return err
		}
	}

	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if a.replyTTL > 0 {
		pipe.Expire(ctx, key, a.replyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push reply: %w", err)
	}
	return nil
}

// encodeReply marshals a reply, turning a panicking MarshalJSON into an error.
func encodeReply(reply Reply) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("encode panicked: %v", r)
		}
	}()
	return json.Marshal(reply)
}

func decodeMessage(raw string) (Message, error) {
	var msg Message
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

var _ transport.Adapter = (*Adapter)(nil)
