package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownMode marks a persisted mode value this build does not recognise.
var ErrUnknownMode = errors.New("domain: unknown user mode")

// UserMode is the per-user conversational state governing how the next
// free-text message is interpreted.
type UserMode int

const (
	ModeIdle UserMode = iota
	ModeAwaitingMemoInput
	ModeAwaitingURLInput
	ModeAwaitingMemoDelete
	ModeAwaitingURLDelete
)

var modeNames = map[UserMode]string{
	ModeIdle:               "idle",
	ModeAwaitingMemoInput:  "waiting_memo_input",
	ModeAwaitingURLInput:   "waiting_url_input",
	ModeAwaitingMemoDelete: "waiting_memo_delete",
	ModeAwaitingURLDelete:  "waiting_url_delete",
}

// String returns the persisted representation of the mode.
func (m UserMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("UserMode(%d)", int(m))
}

// ParseUserMode maps a persisted mode value back to a UserMode. The empty
// string is Idle.
func ParseUserMode(s string) (UserMode, error) {
	if s == "" {
		return ModeIdle, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeIdle, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// AwaitingInput reports whether the next message is data to record, and into
// which list.
func (m UserMode) AwaitingInput() (ListKind, bool) {
	switch m {
	case ModeAwaitingMemoInput:
		return ListMemo, true
	case ModeAwaitingURLInput:
		return ListURL, true
	}
	return "", false
}

// AwaitingDelete reports whether the next message is a delete index, and for
// which list.
func (m UserMode) AwaitingDelete() (ListKind, bool) {
	switch m {
	case ModeAwaitingMemoDelete:
		return ListMemo, true
	case ModeAwaitingURLDelete:
		return ListURL, true
	}
	return "", false
}
