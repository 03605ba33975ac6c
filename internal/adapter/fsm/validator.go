package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events converts domain.Edges into looplab/fsm EventDesc format. Each
// event is named after its destination stage and groups every source
// stage that may reach it (each destination currently has one source,
// but the grouping keeps the table correct if edges are added).
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	grouped := make(map[domain.Stage][]string)
	order := make([]domain.Stage, 0)

	for _, e := range domain.Edges {
		if _, exists := grouped[e.To]; !exists {
			order = append(order, e.To)
		}
		grouped[e.To] = append(grouped[e.To], string(e.From))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, dst := range order {
		out = append(out, loopfsm.EventDesc{
			Name: string(dst),
			Src:  grouped[dst],
			Dst:  string(dst),
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Validate call, initialized
// with the tenant's current stage. This is necessary because looplab/fsm
// is stateful (it tracks the current state internally).
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks that moving from the current stage to the target stage
// follows a permitted edge. Returns a domain.TransitionError otherwise.
func (v *Validator) Validate(ctx context.Context, from, to domain.Stage) error {
	machine := loopfsm.NewFSM(string(from), events, nil)

	if err := machine.Event(ctx, string(to)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		var unknownEvent loopfsm.UnknownEventError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) || errors.As(err, &unknownEvent) {
			return &domain.TransitionError{From: from, To: to}
		}
		return err
	}

	return nil
}
