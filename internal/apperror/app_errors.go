package apperror

import "errors"

var (
	ErrUnauthenticated = errors.New("invalid authentication")

	ErrGameNotFound    = errors.New("game not found")
	ErrGameFull        = errors.New("game is full")
	ErrNotInGame       = errors.New("player not in game")
	ErrAlreadyWon      = errors.New("game is already won")
	ErrGameFinished    = errors.New("game is already finished")
	ErrNeedBothPlayers = errors.New("need both players for turn")
	ErrNotYourTurn     = errors.New("it's not your turn")

	ErrInvalidColumn   = errors.New("invalid column")
	ErrColumnFull      = errors.New("column is full")
	ErrMissingArgument = errors.New("missing argument")

	ErrTransactionAborted = errors.New("transaction aborted after retries")
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindPrecondition
	KindNotFound
	KindArgument
	KindTransient
)

var kinds = map[error]Kind{
	ErrUnauthenticated:    KindAuth,
	ErrGameNotFound:       KindNotFound,
	ErrGameFull:           KindPrecondition,
	ErrNotInGame:          KindPrecondition,
	ErrAlreadyWon:         KindPrecondition,
	ErrGameFinished:       KindPrecondition,
	ErrNeedBothPlayers:    KindPrecondition,
	ErrNotYourTurn:        KindPrecondition,
	ErrInvalidColumn:      KindArgument,
	ErrColumnFull:         KindArgument,
	ErrMissingArgument:    KindArgument,
	ErrTransactionAborted: KindTransient,
}

// KindOf - classifies an error chain by the first known sentinel it wraps.
func KindOf(err error) Kind {
	sentinel := Cause(err)
	if sentinel == nil {
		return KindInternal
	}

	return kinds[sentinel]
}

// Cause - the known sentinel wrapped by err, or nil.
func Cause(err error) error {
	if err == nil {
		return nil
	}

	for sentinel := range kinds {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	return nil
}

func (that Kind) String() string {
	switch that {
	case KindAuth:
		return "auth"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not-found"
	case KindArgument:
		return "argument"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}
