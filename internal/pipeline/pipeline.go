// Package pipeline orchestrates one request/response cycle: persist the user
// turn, stream the model reply in the background, aggregate it, persist the
// assistant turn and publish exactly one Delivery for the UI to consume.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/quentinlg/ollamadesk/internal/aggregate"
	"github.com/quentinlg/ollamadesk/internal/llm"
	"github.com/quentinlg/ollamadesk/internal/logger"
	"github.com/quentinlg/ollamadesk/internal/session"
)

// ErrEmptyMessage rejects a send with no text and no attachment. It is
// reported synchronously, before any state mutation.
var ErrEmptyMessage = errors.New("message is empty")

// Delivery is the completed outcome of one Send. Exactly one Delivery is
// published per Send, on success and on failure alike.
type Delivery struct {
	Model  string
	Answer string
	Think  string
	OK     bool
}

// FSM states of one in-flight request.
type FSMState stateless.State

var (
	StateStreaming   FSMState = "Streaming"
	StateAggregating FSMState = "Aggregating"
	StatePersisted   FSMState = "Persisted"
	StateDelivered   FSMState = "Delivered" // Terminal: success
	StateFailed      FSMState = "Failed"    // Terminal: error at any stage
)

// FSM triggers.
type FSMTrigger stateless.Trigger

var (
	TriggerStart          FSMTrigger = "Start"
	TriggerStreamFinished FSMTrigger = "StreamFinished"
	TriggerResultReady    FSMTrigger = "ResultReady"
	TriggerPersistDone    FSMTrigger = "PersistDone"
	TriggerErrorOccurred  FSMTrigger = "ErrorOccurred"
)

// Pipeline bridges the session store, the model runtime and the aggregator.
// Each Send runs in its own goroutine; deliveries from concurrent sends on
// different conversations interleave freely on the results channel.
//
// Concurrent Send calls against the same Conversation are a caller error:
// the store serializes nothing per conversation, so the UI must wait for a
// Delivery before sending again on the same conversation.
type Pipeline struct {
	store   *session.Store
	client  llm.Client
	timeout time.Duration
	results chan Delivery
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds the model runtime call of every request. Zero means no
// timeout, which matches the reference behavior.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// New creates a Pipeline publishing to a buffered results channel.
func New(store *session.Store, client llm.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		client:  client,
		results: make(chan Delivery, 16),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Results is the delivery channel. Consumers must drain it without blocking
// their event loop (non-blocking receive or a dedicated goroutine).
func (p *Pipeline) Results() <-chan Delivery {
	return p.results
}

// Send validates and persists the user turn synchronously, then launches the
// model call in the background. The outcome arrives on Results, never here.
func (p *Pipeline) Send(conv *session.Conversation, text string) error {
	return p.send(conv, text, "")
}

// SendWithAttachment is Send with an attachment reference; the text may then
// be empty. The reference is recorded inline in the user turn.
func (p *Pipeline) SendWithAttachment(conv *session.Conversation, text, attachment string) error {
	return p.send(conv, text, attachment)
}

func (p *Pipeline) send(conv *session.Conversation, text, attachment string) error {
	content := strings.TrimSpace(text)
	if content == "" && attachment == "" {
		return ErrEmptyMessage
	}
	if attachment != "" {
		if content != "" {
			content += "\n"
		}
		content += "[attachment: " + attachment + "]"
	}

	if _, err := p.store.Append(conv, session.RoleUser, content); err != nil {
		return err
	}

	// The user turn is durable; everything past this point is asynchronous.
	history := make([]session.Message, len(conv.Messages))
	copy(history, conv.Messages)
	go p.process(conv, history)
	return nil
}

// process drives one request through the FSM. Whatever happens, exactly one
// Delivery leaves through the results channel: StateDelivered and StateFailed
// are the only states that publish, and they are terminal.
func (p *Pipeline) process(conv *session.Conversation, history []session.Message) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		agg     aggregate.Aggregator
		res     aggregate.Result
		lastErr error
	)

	fsm := stateless.NewStateMachine(StateStreaming)

	fsm.Configure(StateStreaming).
		PermitReentry(TriggerStart).
		OnEntry(func(ctx context.Context, _ ...any) error {
			logger.L.Debug("request streaming", "conversation", conv.ID, "model", conv.Model)
			if err := p.client.StreamChat(ctx, conv.Model, history, agg.Write); err != nil {
				lastErr = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			return fsm.FireCtx(ctx, TriggerStreamFinished)
		}).
		Permit(TriggerStreamFinished, StateAggregating).
		Permit(TriggerErrorOccurred, StateFailed)

	fsm.Configure(StateAggregating).
		OnEntry(func(ctx context.Context, _ ...any) error {
			var err error
			res, err = agg.Finalize()
			if errors.Is(err, aggregate.ErrEmptyResult) {
				// Still a visible assistant turn from the transcript's
				// point of view.
				logger.L.Warn("model produced no usable answer", "conversation", conv.ID)
				res.Answer = aggregate.FallbackAnswer
			} else if err != nil {
				lastErr = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			return fsm.FireCtx(ctx, TriggerResultReady)
		}).
		Permit(TriggerResultReady, StatePersisted).
		Permit(TriggerErrorOccurred, StateFailed)

	fsm.Configure(StatePersisted).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if _, err := p.store.Append(conv, session.RoleAssistant, res.Answer); err != nil {
				lastErr = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			return fsm.FireCtx(ctx, TriggerPersistDone)
		}).
		Permit(TriggerPersistDone, StateDelivered).
		Permit(TriggerErrorOccurred, StateFailed)

	fsm.Configure(StateDelivered).
		OnEntry(func(_ context.Context, _ ...any) error {
			p.results <- Delivery{Model: conv.Model, Answer: res.Answer, Think: res.Think, OK: true}
			return nil
		})

	fsm.Configure(StateFailed).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Error("request failed", "conversation", conv.ID, "error", lastErr)
			answer := "Error: " + lastErr.Error()
			// Keep the transcript consistent with what the user sees; if even
			// this append fails there is nothing durable left to do.
			if _, err := p.store.Append(conv, session.RoleAssistant, answer); err != nil {
				logger.L.Error("failed to persist error turn", "conversation", conv.ID, "error", err)
			}
			p.results <- Delivery{Model: conv.Model, Answer: answer, OK: false}
			return nil
		})

	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		logger.L.Error("request state machine error", "conversation", conv.ID, "error", err)
	}
}
