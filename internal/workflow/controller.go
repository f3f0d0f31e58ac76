package workflow

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
	"github.com/linkgrove/linkgrove/internal/payment"
	"github.com/linkgrove/linkgrove/internal/plans"
	"github.com/linkgrove/linkgrove/internal/profile"
	"github.com/linkgrove/linkgrove/internal/verify"
	"github.com/linkgrove/linkgrove/internal/walletsdk"
)

var (
	// ErrSDKMissing indicates the wallet SDK boundary is absent, a fatal
	// precondition failure.
	ErrSDKMissing = errors.New("wallet sdk is not available")

	// ErrAuthIncomplete indicates the SDK call nominally succeeded but
	// returned no access token or no user identity.
	ErrAuthIncomplete = errors.New("wallet returned no token or user identity")

	// ErrRunInFlight rejects a second run for a user whose previous run has
	// not finished.
	ErrRunInFlight = errors.New("authentication run already in flight")
)

// Deps wires the collaborators the controller sequences.
type Deps struct {
	Verifier     verify.Verifier
	Profiles     *profile.Service
	Orchestrator *payment.Orchestrator
	Grants       *entitlement.Store
	Notifier     notification.Notifier

	// PaymentSDK, when set, creates payments server-side (sandbox). When
	// nil the browser drives payment creation and the orchestrator waits
	// for HTTP phase callbacks.
	PaymentSDK walletsdk.SDK

	GrantTTL time.Duration
	Logger   *slog.Logger
}

// Controller sequences the wallet authentication and payment-provisioning
// workflow: authenticate, verify, upsert profile, then suspend until the
// caller resumes with a plan selection.
type Controller struct {
	deps Deps

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewController builds the workflow controller. The verifier is fixed here
// and never swapped mid-workflow.
func NewController(deps Deps) (*Controller, error) {
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile service is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("payment orchestrator is required")
	}
	if deps.Grants == nil {
		return nil, fmt.Errorf("entitlement store is required")
	}
	if deps.GrantTTL <= 0 {
		return nil, fmt.Errorf("grant ttl must be positive")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Controller{deps: deps, inflight: make(map[string]struct{})}, nil
}

// Options configures one workflow run.
type Options struct {
	// SDK is the wallet boundary for this run. Required.
	SDK walletsdk.SDK

	// Scopes requested from the wallet. Defaults to username + payments.
	Scopes []string

	// ResumeIncomplete lets the controller complete a payment a previous
	// session left in flight. Off by default: surfaced, never silently
	// finished on the user's behalf.
	ResumeIncomplete bool
}

// Run executes the workflow up to its plan-selection suspension point.
// Failures before the profile write abort the whole run; the returned result
// names the failed step.
func (c *Controller) Run(ctx context.Context, opts Options) Result {
	if opts.SDK == nil {
		return failure(StepAuthenticate, ErrSDKMissing)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{walletsdk.ScopeUsername, walletsdk.ScopePayments}
	}

	var incomplete *walletsdk.Payment
	session, err := opts.SDK.Authenticate(ctx, scopes, func(p walletsdk.Payment) {
		incomplete = &p
		c.deps.Logger.Warn("wallet reported an incomplete payment", "payment_id", p.PaymentID, "txid", p.TxID)
	})
	if err != nil {
		return failure(StepAuthenticate, fmt.Errorf("authenticate: %w", err))
	}
	if session.AccessToken == "" || session.User.UID == "" {
		return failure(StepAuthenticate, ErrAuthIncomplete)
	}

	uid := session.User.UID
	if !c.acquire(uid) {
		return failure(StepAuthenticate, ErrRunInFlight)
	}
	defer c.release(uid)

	// Verification happens before any profile mutation so unverified
	// identities are never persisted under the strict profile.
	if err := c.deps.Verifier.Verify(ctx, session); err != nil {
		return failure(StepVerify, err)
	}

	rec, isNew, err := c.deps.Profiles.Upsert(ctx, profile.UpsertInput{
		ExternalID:    uid,
		Username:      session.User.Username,
		WalletAddress: session.WalletAddress,
	})
	if err != nil {
		return failure(StepUpsertProfile, err)
	}

	if incomplete != nil {
		if opts.ResumeIncomplete {
			if err := c.deps.Orchestrator.ResumeIncomplete(ctx, uid, *incomplete); err != nil {
				c.deps.Logger.Warn("could not resume incomplete payment", "payment_id", incomplete.PaymentID, "error", err)
			}
		} else {
			c.deps.Logger.Info("incomplete payment left for the user to resolve", "payment_id", incomplete.PaymentID)
		}
	}

	c.deps.Logger.Info("authentication workflow complete", "uid", uid, "is_new_user", isNew)
	return Result{Success: true, Step: StepComplete, User: rec, IsNewUser: isNew}
}

// PlanOutcome describes the result of a plan selection: either an immediate
// grant (free tier) or a payment directive for the client.
type PlanOutcome struct {
	Plan            plans.Definition
	Granted         bool
	Grant           *entitlement.Grant
	PaymentRequired bool
	AmountMicros    int64
	Memo            string
}

// SelectPlan resumes a suspended workflow with the chosen plan. Free plans
// grant immediately; paid plans start a payment handshake whose completion
// writes the grant.
func (c *Controller) SelectPlan(ctx context.Context, userID, planID string) (PlanOutcome, error) {
	plan, err := plans.Lookup(planID)
	if err != nil {
		return PlanOutcome{}, stepFailure(StepSelectPlan, err)
	}

	if _, err := c.deps.Profiles.Get(ctx, userID); err != nil {
		return PlanOutcome{}, stepFailure(StepSelectPlan, fmt.Errorf("load profile: %w", err))
	}
	if err := c.deps.Profiles.SelectPlan(ctx, userID, planID); err != nil {
		return PlanOutcome{}, stepFailure(StepSelectPlan, fmt.Errorf("store plan selection: %w", err))
	}

	if plan.Free() {
		grant, err := c.deps.Grants.Grant(ctx, userID, planID, c.deps.GrantTTL)
		if err != nil {
			return PlanOutcome{}, stepFailure(StepEntitle, fmt.Errorf("grant free plan: %w", err))
		}
		if c.deps.Notifier != nil {
			_ = c.deps.Notifier.Send(ctx, notification.Message{
				Kind:        notification.KindPlanGranted,
				Destination: userID,
				Body:        fmt.Sprintf("Your %s plan is active", plan.Name),
			})
		}
		return PlanOutcome{Plan: plan, Granted: true, Grant: &grant}, nil
	}

	memo := fmt.Sprintf("LinkGrove %s plan", plan.Name)
	err = c.deps.Orchestrator.Begin(ctx, payment.BeginInput{
		UserID:       userID,
		PlanID:       planID,
		AmountMicros: plan.PriceMicros,
		Memo:         memo,
		Metadata:     map[string]string{"plan_id": planID},
		SDK:          c.deps.PaymentSDK,
	})
	if err != nil {
		return PlanOutcome{}, stepFailure(StepPayment, err)
	}

	return PlanOutcome{
		Plan:            plan,
		PaymentRequired: true,
		AmountMicros:    plan.PriceMicros,
		Memo:            memo,
	}, nil
}

// CurrentGrant exposes the user's valid grant, if any, for session gating.
func (c *Controller) CurrentGrant(ctx context.Context, userID string) (*entitlement.Grant, error) {
	return c.deps.Grants.CurrentGrant(ctx, userID)
}

func (c *Controller) acquire(uid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[uid]; busy {
		return false
	}
	c.inflight[uid] = struct{}{}
	return true
}

func (c *Controller) release(uid string) {
	c.mu.Lock()
	delete(c.inflight, uid)
	c.mu.Unlock()
}
