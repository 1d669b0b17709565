package character

import (
	"errors"
	"fmt"
)

// Kind classifies session failures.
type Kind int

const (
	LibraryLoadTimeout Kind = iota
	CapabilityUnsupported
	AssetFetchFailure
	InitFailure
	RenderFrameFailure
	LoopRescheduleFailure
	AnimationSwitchFailure
)

var kindNames = map[Kind]string{
	LibraryLoadTimeout:     "library load timeout",
	CapabilityUnsupported:  "capability unsupported",
	AssetFetchFailure:      "asset fetch failure",
	InitFailure:            "init failure",
	RenderFrameFailure:     "render frame failure",
	LoopRescheduleFailure:  "loop reschedule failure",
	AnimationSwitchFailure: "animation switch failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether the kind moves a session to Failed. The other kinds
// are only logged.
func (k Kind) Fatal() bool {
	switch k {
	case LibraryLoadTimeout, CapabilityUnsupported, AssetFetchFailure, InitFailure:
		return true
	}
	return false
}

var (
	ErrLibraryTimeout        = errors.New("graphics or animation library did not load in time")
	ErrCapabilityUnsupported = errors.New("graphics surfaces are not supported")
	ErrClosed                = errors.New("session closed")
	ErrUnknownAnimation      = errors.New("unknown animation")
	ErrNotReady              = errors.New("session not ready")
	ErrSwitchInFlight        = errors.New("animation switch in flight")
)

// Error is a session failure of a given kind.
type Error struct {
	Kind    Kind
	Session string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Session, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, session string, err error) *Error {
	return &Error{Kind: kind, Session: session, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind, true
	}
	return 0, false
}
