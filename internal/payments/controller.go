package payments

import (
	"context"
	"log"

	"github.com/payper/backend/internal/models"
)

// State is the orchestration position of one payment submission.
type State string

const (
	StateDraft      State = "draft"
	StateReserving  State = "reserving"
	StateConfirming State = "confirming"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Event is a step outcome fed into the transition function.
type Event string

const (
	EventRecordCreated    Event = "record_created"
	EventIntentReserved   Event = "intent_reserved"
	EventGatewayFailed    Event = "gateway_failed"
	EventConfirmSucceeded Event = "confirm_succeeded"
	EventConfirmDeclined  Event = "confirm_declined"
	EventConfirmFaulted   Event = "confirm_faulted"
	EventRequiresAction   Event = "requires_action"
)

// Transition is the pure state machine behind the controller. It
// returns the next state and whether the event is legal in the given
// state. Requires-action keeps the submission in confirming.
func Transition(s State, ev Event) (State, bool) {
	switch s {
	case StateDraft:
		if ev == EventRecordCreated {
			return StateReserving, true
		}
	case StateReserving:
		switch ev {
		case EventIntentReserved:
			return StateConfirming, true
		case EventGatewayFailed:
			return StateFailed, true
		}
	case StateConfirming:
		switch ev {
		case EventConfirmSucceeded:
			return StateCompleted, true
		case EventConfirmDeclined, EventConfirmFaulted:
			return StateFailed, true
		case EventRequiresAction:
			return StateConfirming, true
		}
	}
	return s, false
}

// Result is what the caller receives for a finished orchestration.
type Result struct {
	Transaction *models.Transaction
	State       State
	// ReconciliationFault is set when the processor confirmed the
	// charge but the final ledger write failed. The payment is still
	// a success from the user's point of view.
	ReconciliationFault bool
}

// Controller drives one payment submission through the ledger, the
// intent gateway and the card confirmation step, applying the recovery
// policy on failure. It is the only component that transitions a
// ledger record's status after creation.
type Controller struct {
	ledger     Ledger
	gateway    IntentGateway
	confirmer  CardConfirmer
	recovery   *RecoveryPolicy
	reconciler Reconciler
}

func NewController(ledger Ledger, gateway IntentGateway, confirmer CardConfirmer, recovery *RecoveryPolicy, reconciler Reconciler) *Controller {
	return &Controller{
		ledger:     ledger,
		gateway:    gateway,
		confirmer:  confirmer,
		recovery:   recovery,
		reconciler: reconciler,
	}
}

// Pay runs the full sequence for one submission. submissionID
// identifies the originating form session so the retry bound spans
// resubmissions; each call still produces its own transaction record.
//
// Ledger finalize and rollback writes run on a detached context: a
// caller that abandons the request after the intent is reserved must
// not strand a pending record.
func (c *Controller) Pay(ctx context.Context, submissionID string, draft Draft, method PaymentMethod) (*Result, error) {
	if err := c.recovery.Allow(ctx, submissionID); err != nil {
		return nil, err
	}

	if draft.Kind == models.KindPeerToPeer {
		return c.payPeerToPeer(ctx, submissionID, draft)
	}

	detached := context.WithoutCancel(ctx)

	// Draft -> Reserving: durable record first, nothing external yet.
	state := StateDraft
	tx, err := c.ledger.Create(ctx, draft)
	if err != nil {
		// Stays in draft; not counted against the retry budget.
		return nil, err
	}
	state, _ = Transition(state, EventRecordCreated)

	// Reserving -> Confirming: no money has moved if this fails, so
	// recovery is a plain rollback.
	secret, err := c.gateway.RequestIntent(ctx, IntentRequest{
		AmountMinorUnits: draft.Amount,
		Currency:         draft.Currency,
		UserID:           draft.SenderID,
		MerchantID:       draft.RecipientID,
		Description:      draft.Note,
	})
	if err != nil {
		state, _ = Transition(state, EventGatewayFailed)
		c.rollback(detached, tx.ID)
		c.countFailure(detached, submissionID)
		return &Result{Transaction: tx, State: state}, err
	}
	state, _ = Transition(state, EventIntentReserved)

	for {
		res, err := c.confirmer.Confirm(ctx, secret, method)
		if err != nil {
			state, _ = Transition(state, EventConfirmFaulted)
			c.rollback(detached, tx.ID)
			c.countFailure(detached, submissionID)
			return &Result{Transaction: tx, State: state}, err
		}

		switch res.Outcome {
		case OutcomeRequiresAction:
			// Legitimate long suspension: no ledger mutation, no
			// deadline of our own, just wait for the next result.
			state, _ = Transition(state, EventRequiresAction)
			log.Printf("[PAYMENT] Transaction %s awaiting cardholder action", tx.ID)
			continue

		case OutcomeDeclined:
			state, _ = Transition(state, EventConfirmDeclined)
			c.rollback(detached, tx.ID)
			c.countFailure(detached, submissionID)
			return &Result{Transaction: tx, State: state}, ErrCardDeclined

		case OutcomeSucceeded:
			state, _ = Transition(state, EventConfirmSucceeded)
			updated, err := c.ledger.Update(detached, tx.ID, Patch{
				Status:             models.StatusCompleted,
				ProcessorReference: res.ProcessorReference,
			})
			result := &Result{State: state}
			if err != nil {
				// The processor has confirmed the charge; the payment
				// must never surface as failed from here on. Hand the
				// divergence to reconciliation instead.
				log.Printf("[RECONCILE] Transaction %s confirmed by processor (%s) but finalize failed: %v",
					tx.ID, res.ProcessorReference, err)
				tx.Status = models.StatusCompleted
				tx.ProcessorReference = res.ProcessorReference
				result.Transaction = tx
				result.ReconciliationFault = true
				if c.reconciler != nil {
					c.reconciler.Enqueue(detached, tx)
				}
			} else {
				result.Transaction = updated
			}
			c.recovery.Reset(detached, submissionID)
			return result, nil

		default:
			state, _ = Transition(state, EventConfirmFaulted)
			c.rollback(detached, tx.ID)
			c.countFailure(detached, submissionID)
			return &Result{Transaction: tx, State: state},
				&ClientFault{Reason: "unknown confirmation outcome"}
		}
	}
}

// payPeerToPeer is the collapsed path: no processor, a single
// completed insert, nothing to compensate.
func (c *Controller) payPeerToPeer(ctx context.Context, submissionID string, draft Draft) (*Result, error) {
	tx, err := c.ledger.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.recovery.Reset(ctx, submissionID)
	return &Result{Transaction: tx, State: StateCompleted}, nil
}

// rollback moves the record to failed. A duplicate signal finds the
// record already failed and the ledger treats that as a no-op, so this
// is safe to attempt more than once.
func (c *Controller) rollback(ctx context.Context, id string) {
	if _, err := c.ledger.Update(ctx, id, Patch{Status: models.StatusFailed}); err != nil {
		log.Printf("[PAYMENT] Rollback of transaction %s failed: %v", id, err)
	}
}

func (c *Controller) countFailure(ctx context.Context, submissionID string) {
	if err := c.recovery.RecordFailure(ctx, submissionID); err != nil {
		log.Printf("[PAYMENT] Failed to record retry attempt for submission %s: %v", submissionID, err)
	}
}
