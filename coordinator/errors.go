package coordinator

import (
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
)

var (
	ErrNoParticipants    = errors.New("experiment has no participants")
	ErrNotJoined         = errors.New("principal has not joined the experiment")
	ErrWrongExperiment   = errors.New("participant belongs to another experiment")
	ErrRoundAggregated   = errors.New("round already aggregated")
	ErrRoundMismatch     = errors.New("requested round is not the current round")
	ErrNotStarted        = errors.New("experiment has not been started")
	ErrAlreadyStarted    = errors.New("experiment has already been started")
	ErrEpochs            = errors.New("epochs out of range")
	ErrLearningRate      = errors.New("learning rate must be a positive finite number")
	ErrEmptyBatch        = errors.New("empty input batch")
	ErrUnbuildableModel  = errors.New("cannot reconstruct model")
	ErrMissingPrincipal  = errors.New("missing principal")
	ErrUnknownDuplicates = errors.New("unknown duplicate policy")
)

// wrap tags err with a taxonomy sentinel so callers can match either.
func wrap(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func invalidState(err error) error {
	return wrap(pkgerrors.ErrInvalidState, err)
}

func invalidArgument(err error) error {
	return wrap(pkgerrors.ErrInvalidArgument, err)
}
