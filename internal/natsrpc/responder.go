package natsrpc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

const (
	SubjectPrefix = "tools."
	QueueGroup    = "agent-tools"

	// DefaultRequestTimeout bounds a single tool call made over NATS.
	DefaultRequestTimeout = 60 * time.Second

	// MaxInFlight caps concurrent tool calls per responder. Further messages
	// wait in the subscription's pending queue.
	MaxInFlight = 64

	drainTimeout = 30 * time.Second
)

// Responder answers tool calls sent as NATS requests on tools.<name>. The
// request payload is the JSON arguments, the reply is the envelope.
type Responder struct {
	nc         *nats.Conn
	dispatcher interfaces.ToolDispatcher
	timeout    time.Duration
	sub        *nats.Subscription
	slots      chan struct{}
	inflight   sync.WaitGroup
}

func NewResponder(nc *nats.Conn, dispatcher interfaces.ToolDispatcher, timeout time.Duration) *Responder {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Responder{
		nc:         nc,
		dispatcher: dispatcher,
		timeout:    timeout,
		slots:      make(chan struct{}, MaxInFlight),
	}
}

// Start subscribes to every tool subject within the shared queue group, so
// several agent-tools instances split the load.
func (r *Responder) Start() error {
	if r.sub != nil {
		return errors.New("natsrpc: responder already started")
	}
	sub, err := r.nc.QueueSubscribe(SubjectPrefix+"*", QueueGroup, r.handle)
	if err != nil {
		return err
	}
	r.sub = sub

	telemetry.Logger.Info("Subscribed to tool requests on NATS",
		zap.String("subject", SubjectPrefix+"*"),
		zap.String("queue", QueueGroup),
	)
	return nil
}

// Stop drains the subscription and waits for in-flight requests to be
// answered.
func (r *Responder) Stop() error {
	if r.sub == nil {
		return nil
	}
	sub := r.sub
	r.sub = nil

	err := sub.Drain()
	if err == nil {
		// Drain is asynchronous: pending messages are still delivered to
		// handle until the subscription closes.
		deadline := time.Now().Add(drainTimeout)
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
	r.inflight.Wait()
	return err
}

// handle runs each request on its own goroutine so a slow backend call does
// not hold up the other tools. At most MaxInFlight run at once.
func (r *Responder) handle(msg *nats.Msg) {
	name := ToolName(msg.Subject)

	if msg.Reply == "" {
		telemetry.Logger.Warn("Dropping tool request without reply subject", zap.String("tool", name))
		return
	}

	r.slots <- struct{}{}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() { <-r.slots }()

		if err := msg.Respond(r.reply(name, msg.Data)); err != nil {
			telemetry.Logger.Error("Failed to respond to tool request",
				zap.String("tool", name),
				zap.Error(err),
			)
		}
	}()
}

func (r *Responder) reply(name string, data []byte) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	return []byte(r.dispatcher.Dispatch(ctx, name, data))
}

// ToolName extracts the tool name from a tools.<name> subject.
func ToolName(subject string) string {
	return strings.TrimPrefix(subject, SubjectPrefix)
}
