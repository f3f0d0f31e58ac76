package walletsdk

import (
	"context"
	"errors"
	"testing"
)

func TestBridgeReplaysClientSession(t *testing.T) {
	incomplete := &Payment{PaymentID: "pay-9", TxID: "tx-9", Metadata: map[string]string{"plan_id": "pro"}}
	bridge := NewBridge(ClientAuth{
		AccessToken:       "token-1",
		User:              User{UID: "uid-1", Username: "ada"},
		WalletAddress:     "GBADA",
		IncompletePayment: incomplete,
	})

	var reported *Payment
	res, err := bridge.Authenticate(context.Background(), []string{ScopeUsername}, func(p Payment) {
		reported = &p
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.AccessToken != "token-1" || res.User.UID != "uid-1" || res.WalletAddress != "GBADA" {
		t.Fatalf("unexpected session: %+v", res)
	}
	if reported == nil || reported.PaymentID != "pay-9" {
		t.Fatalf("incomplete payment not surfaced: %+v", reported)
	}
}

func TestBridgePaymentsAreClientDriven(t *testing.T) {
	bridge := NewBridge(ClientAuth{})
	err := bridge.CreatePayment(context.Background(), PaymentData{AmountMicros: 1}, Callbacks{})
	if !errors.Is(err, ErrClientDriven) {
		t.Fatalf("expected ErrClientDriven, got %v", err)
	}
}

func TestSandboxAuthRejection(t *testing.T) {
	sb := &Sandbox{RejectAuth: true}
	if _, err := sb.Authenticate(context.Background(), nil, nil); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestSandboxHandshakeOutcomes(t *testing.T) {
	type events struct {
		approvals   int
		completions int
		cancels     int
		errs        int
	}

	run := func(outcome Outcome) events {
		var ev events
		sb := &Sandbox{PaymentOutcome: outcome}
		err := sb.CreatePayment(context.Background(), PaymentData{AmountMicros: 10}, Callbacks{
			OnReadyForServerApproval:   func(string) { ev.approvals++ },
			OnReadyForServerCompletion: func(string, string) { ev.completions++ },
			OnCancel:                   func(string) { ev.cancels++ },
			OnError:                    func(error, *Payment) { ev.errs++ },
		})
		if err != nil {
			t.Fatalf("create payment: %v", err)
		}
		return ev
	}

	if ev := run(OutcomeComplete); ev.approvals != 1 || ev.completions != 1 || ev.cancels != 0 {
		t.Fatalf("complete outcome fired wrong callbacks: %+v", ev)
	}
	if ev := run(OutcomeCancelAfterApproval); ev.approvals != 1 || ev.completions != 0 || ev.cancels != 1 {
		t.Fatalf("cancel outcome fired wrong callbacks: %+v", ev)
	}
	if ev := run(OutcomeError); ev.errs != 1 || ev.approvals != 0 {
		t.Fatalf("error outcome fired wrong callbacks: %+v", ev)
	}
}
