package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkgrove/linkgrove/internal/entitlement"
	"github.com/linkgrove/linkgrove/internal/logging"
	"github.com/linkgrove/linkgrove/internal/notification"
	"github.com/linkgrove/linkgrove/internal/walletsdk"
)

var (
	// ErrHandshakeInFlight indicates the user already has an active
	// handshake; a second one must not race it.
	ErrHandshakeInFlight = errors.New("payment handshake already in flight")

	// ErrNoIntent indicates a phase callback arrived for a user with no
	// tracked handshake.
	ErrNoIntent = errors.New("no payment handshake in flight")

	// ErrStaleCallback indicates a callback whose payment id or phase does
	// not match the tracked intent. Stale callbacks are discarded and never
	// produce a grant.
	ErrStaleCallback = errors.New("stale payment callback discarded")

	// ErrAlreadySettled guards the point of no return: once completion has
	// begun the handshake can no longer be cancelled.
	ErrAlreadySettled = errors.New("payment already settled")

	// ErrUnresolvedIncomplete indicates an incomplete payment from a prior
	// session that lacks a transaction id and so cannot be completed
	// server-side; the handshake must restart from scratch.
	ErrUnresolvedIncomplete = errors.New("incomplete payment has no transaction id")

	// ErrPaymentMismatch rejects a client-reported incomplete payment that
	// does not match the platform's record of it.
	ErrPaymentMismatch = errors.New("payment does not match platform record")
)

// Granter records an entitlement once a handshake settles. Satisfied by
// *entitlement.Store.
type Granter interface {
	Grant(ctx context.Context, userID, planID string, ttl time.Duration) (entitlement.Grant, error)
}

// Orchestrator drives the three-phase payment handshake. It tracks at most
// one intent per user and dispatches phase callbacks against it, discarding
// anything stale. A grant is written if and only if the completion phase
// succeeds.
type Orchestrator struct {
	authority Authority
	inspector Inspector
	granter   Granter
	notifier  notification.Notifier
	grantTTL  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	intents map[string]*Intent
}

// NewOrchestrator builds a payment orchestrator. inspector may be nil, in
// which case incomplete payments are never resumed.
func NewOrchestrator(authority Authority, inspector Inspector, granter Granter, notifier notification.Notifier, grantTTL time.Duration, logger *slog.Logger) *Orchestrator {
	if authority == nil {
		authority = StaticAuthority{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		authority: authority,
		inspector: inspector,
		granter:   granter,
		notifier:  notifier,
		grantTTL:  grantTTL,
		logger:    logger,
		intents:   make(map[string]*Intent),
	}
}

// BeginInput captures the data needed to start a handshake.
type BeginInput struct {
	UserID       string
	PlanID       string
	AmountMicros int64
	Memo         string
	Metadata     map[string]string

	// SDK, when present, is asked to create the payment. A client-driven
	// SDK reports walletsdk.ErrClientDriven and the phases arrive over
	// HTTP instead.
	SDK walletsdk.SDK
}

// Begin registers a fresh intent for the user and initiates the handshake.
// A terminal intent (settled, cancelled, failed) is replaced; an active one
// is not.
func (o *Orchestrator) Begin(ctx context.Context, input BeginInput) error {
	if input.AmountMicros <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	o.mu.Lock()
	if existing, ok := o.intents[input.UserID]; ok && existing.phase.active() {
		o.mu.Unlock()
		return ErrHandshakeInFlight
	}
	intent := &Intent{
		UserID:       input.UserID,
		PlanID:       input.PlanID,
		AmountMicros: input.AmountMicros,
		Memo:         input.Memo,
		Metadata:     input.Metadata,
		StartedAt:    time.Now().UTC(),
		phase:        phaseInit,
	}
	o.intents[input.UserID] = intent
	o.mu.Unlock()

	o.logger.Info("payment handshake started", "user_id", input.UserID, "plan_id", input.PlanID, "amount_micros", input.AmountMicros)

	if input.SDK == nil {
		return nil
	}

	data := walletsdk.PaymentData{
		AmountMicros: input.AmountMicros,
		Memo:         input.Memo,
		Metadata:     input.Metadata,
	}
	err := input.SDK.CreatePayment(ctx, data, walletsdk.Callbacks{
		OnReadyForServerApproval: func(paymentID string) {
			if err := o.HandleApproval(ctx, input.UserID, paymentID); err != nil {
				o.logger.Warn("approval callback rejected", "user_id", input.UserID, "payment_id", paymentID, "error", err)
			}
		},
		OnReadyForServerCompletion: func(paymentID, txid string) {
			if err := o.HandleCompletion(ctx, input.UserID, paymentID, txid); err != nil {
				o.logger.Warn("completion callback rejected", "user_id", input.UserID, "payment_id", paymentID, "error", err)
			}
		},
		OnCancel: func(paymentID string) {
			if err := o.HandleCancel(ctx, input.UserID, paymentID); err != nil {
				o.logger.Warn("cancel callback rejected", "user_id", input.UserID, "payment_id", paymentID, "error", err)
			}
		},
		OnError: func(cause error, p *walletsdk.Payment) {
			paymentID := ""
			if p != nil {
				paymentID = p.PaymentID
			}
			o.HandleError(ctx, input.UserID, paymentID, cause)
		},
	})
	if err != nil && !errors.Is(err, walletsdk.ErrClientDriven) {
		o.dropIntent(input.UserID, intent)
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// HandleApproval processes the phase-2 callback: the wallet is ready for
// server approval. The first approval binds the SDK-assigned payment id to
// the intent.
func (o *Orchestrator) HandleApproval(ctx context.Context, userID, paymentID string) error {
	if paymentID == "" {
		return ErrStaleCallback
	}

	o.mu.Lock()
	intent, ok := o.intents[userID]
	if !ok {
		o.mu.Unlock()
		return ErrNoIntent
	}
	if intent.phase != phaseInit {
		o.mu.Unlock()
		return ErrStaleCallback
	}
	if intent.PaymentID != "" && intent.PaymentID != paymentID {
		o.mu.Unlock()
		return ErrStaleCallback
	}
	intent.PaymentID = paymentID
	intent.phase = phaseAwaitingApproval
	o.mu.Unlock()

	if err := o.authority.ApprovePayment(ctx, paymentID); err != nil {
		o.failIntent(userID, paymentID, err)
		return fmt.Errorf("server approval: %w", err)
	}

	o.mu.Lock()
	if cur, ok := o.intents[userID]; ok && cur.PaymentID == paymentID && cur.phase == phaseAwaitingApproval {
		cur.phase = phaseAwaitingCompletion
	}
	o.mu.Unlock()

	o.logger.Info("payment approved", "user_id", userID, "payment_id", paymentID)
	return nil
}

// HandleCompletion processes the phase-3 callback: the transaction is
// broadcast and carries a txid. Only after the completion authority confirms
// it is the entitlement written.
func (o *Orchestrator) HandleCompletion(ctx context.Context, userID, paymentID, txid string) error {
	if txid == "" {
		return fmt.Errorf("%w: empty txid", ErrStaleCallback)
	}

	o.mu.Lock()
	intent, ok := o.intents[userID]
	if !ok {
		o.mu.Unlock()
		return ErrNoIntent
	}
	if intent.PaymentID != paymentID {
		o.mu.Unlock()
		return ErrStaleCallback
	}
	if intent.phase == phaseSettled {
		o.mu.Unlock()
		return ErrAlreadySettled
	}
	if intent.phase != phaseAwaitingCompletion || intent.TxID != "" {
		o.mu.Unlock()
		return ErrStaleCallback
	}
	// Attaching the txid freezes the intent; duplicate completions are
	// rejected above from here on.
	intent.TxID = txid
	planID := intent.PlanID
	o.mu.Unlock()

	if err := o.authority.CompletePayment(ctx, paymentID, txid); err != nil {
		o.failIntent(userID, paymentID, err)
		return fmt.Errorf("server completion: %w", err)
	}

	o.mu.Lock()
	if cur, ok := o.intents[userID]; ok && cur.PaymentID == paymentID {
		cur.phase = phaseSettled
	}
	o.mu.Unlock()

	o.logger.Info("payment settled", "user_id", userID, "payment_id", paymentID, "txid", txid)

	grant, err := o.granter.Grant(ctx, userID, planID, o.grantTTL)
	if err != nil {
		// The transaction is final; surface the persistence failure
		// without undoing the settlement.
		return fmt.Errorf("record entitlement: %w", err)
	}

	if o.notifier != nil {
		_ = o.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentSettled,
			Destination: userID,
			Body:        fmt.Sprintf("Your %s plan is active until %s", grant.PlanID, grant.ExpiresAt.Format(time.RFC3339)),
		})
	}
	return nil
}

// HandleCancel processes a user-abandoned handshake. Not an error: the user
// returns to plan selection with no entitlement and no partial write. There
// is no cancelling once completion has begun.
func (o *Orchestrator) HandleCancel(_ context.Context, userID, paymentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	intent, ok := o.intents[userID]
	if !ok {
		return ErrNoIntent
	}
	if intent.PaymentID != "" && paymentID != "" && intent.PaymentID != paymentID {
		return ErrStaleCallback
	}
	if intent.phase == phaseSettled || intent.TxID != "" {
		return ErrAlreadySettled
	}

	intent.phase = phaseCancelled
	o.logger.Info("payment cancelled", "user_id", userID, "payment_id", paymentID)
	return nil
}

// HandleError records a failed handshake. The attempt is terminal; a retry
// starts from phase 1 with a fresh payment id.
func (o *Orchestrator) HandleError(_ context.Context, userID, paymentID string, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	intent, ok := o.intents[userID]
	if !ok {
		o.logger.Warn("error callback without handshake", "user_id", userID, "payment_id", paymentID, "error", cause)
		return
	}
	if intent.PaymentID != "" && paymentID != "" && intent.PaymentID != paymentID {
		o.logger.Warn("stale error callback discarded", "user_id", userID, "payment_id", paymentID)
		return
	}
	if intent.phase == phaseSettled {
		return
	}

	intent.phase = phaseFailed
	o.logger.Warn("payment handshake failed", "user_id", userID, "payment_id", paymentID, "phase", intent.phase.String(), "error", cause)
}

// ResumeIncomplete finishes a payment a previous session left in flight.
// Only explicitly configured callers use this; it requires a broadcast
// transaction. The client-reported payment is never trusted on its own: the
// platform's record must carry the same txid, and the plan granted is the
// one in the platform's metadata, not the client's.
func (o *Orchestrator) ResumeIncomplete(ctx context.Context, userID string, p walletsdk.Payment) error {
	if p.TxID == "" {
		return ErrUnresolvedIncomplete
	}
	if o.inspector == nil {
		return fmt.Errorf("%w: no introspection source configured", ErrPaymentMismatch)
	}

	rec, err := o.inspector.Payment(ctx, p.PaymentID)
	if err != nil {
		return fmt.Errorf("look up payment %s: %w", p.PaymentID, err)
	}
	if rec.Transaction.TxID == "" || rec.Transaction.TxID != p.TxID {
		return fmt.Errorf("%w: txid mismatch for %s", ErrPaymentMismatch, p.PaymentID)
	}
	planID := rec.Metadata["plan_id"]
	if planID == "" {
		return fmt.Errorf("incomplete payment %s carries no plan metadata", p.PaymentID)
	}

	if err := o.authority.CompletePayment(ctx, p.PaymentID, p.TxID); err != nil {
		return fmt.Errorf("complete incomplete payment: %w", err)
	}

	if _, err := o.granter.Grant(ctx, userID, planID, o.grantTTL); err != nil {
		return fmt.Errorf("record entitlement: %w", err)
	}

	o.logger.Info("incomplete payment resumed", "user_id", userID, "payment_id", p.PaymentID, "txid", p.TxID)
	return nil
}

// Active reports whether the user currently holds a live handshake slot.
func (o *Orchestrator) Active(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	intent, ok := o.intents[userID]
	return ok && intent.phase.active()
}

func (o *Orchestrator) failIntent(userID, paymentID string, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.intents[userID]; ok && cur.PaymentID == paymentID {
		cur.phase = phaseFailed
	}
	o.logger.Warn("payment handshake failed", "user_id", userID, "payment_id", paymentID, "error", cause)
}

func (o *Orchestrator) dropIntent(userID string, intent *Intent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.intents[userID]; ok && cur == intent {
		delete(o.intents, userID)
	}
}
