package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"line-memo-relay/internal/domain"
)

// RecordStore is the per-user list storage the engine mutates.
type RecordStore interface {
	Append(ctx context.Context, userID string, kind domain.ListKind, text string) error
	List(ctx context.Context, userID string, kind domain.ListKind) ([]string, error)
	DeleteAt(ctx context.Context, userID string, kind domain.ListKind, index int) error
}

// ModeStore holds each user's conversational mode. Absence means Idle.
type ModeStore interface {
	GetMode(ctx context.Context, userID string) (domain.UserMode, error)
	SetMode(ctx context.Context, userID string, mode domain.UserMode) error
	ClearMode(ctx context.Context, userID string) error
}

// ConversationEngine turns one message from a user into a reply, moving the
// user's mode and mutating their lists as needed.
type ConversationEngine struct {
	records RecordStore
	modes   ModeStore
	logger  *slog.Logger
}

func NewConversationEngine(records RecordStore, modes ModeStore, logger *slog.Logger) (*ConversationEngine, error) {
	if records == nil {
		return nil, errors.New("usecase: record store must not be nil")
	}
	if modes == nil {
		return nil, errors.New("usecase: mode store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationEngine{records: records, modes: modes, logger: logger}, nil
}

// Respond applies text to the user's state and returns the reply.
//
// Awaiting modes take priority over command text: while awaiting input the
// message is recorded verbatim even if it spells a command.
func (e *ConversationEngine) Respond(ctx context.Context, userID, text string) (string, error) {
	mode, err := e.modes.GetMode(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUnknownMode) {
			return "", newError(ErrorStore, "mode_read_error", err)
		}
		e.logger.Warn("unknown stored mode, treating as idle", "userId", userID, "err", err)
		mode = domain.ModeIdle
	}

	if kind, ok := mode.AwaitingInput(); ok {
		return e.record(ctx, userID, kind, text)
	}
	if kind, ok := mode.AwaitingDelete(); ok {
		return e.deleteEntry(ctx, userID, kind, text)
	}

	cmd := ParseCommand(text)
	switch cmd {
	case CommandListMemo, CommandListURL:
		return e.list(ctx, userID, cmd.Kind())
	case CommandRecordMemo:
		return e.enter(ctx, userID, domain.ModeAwaitingMemoInput, replyEnterRecord[domain.ListMemo])
	case CommandRecordURL:
		return e.enter(ctx, userID, domain.ModeAwaitingURLInput, replyEnterRecord[domain.ListURL])
	case CommandDeleteMemo:
		return e.enter(ctx, userID, domain.ModeAwaitingMemoDelete, replyEnterDelete)
	case CommandDeleteURL:
		return e.enter(ctx, userID, domain.ModeAwaitingURLDelete, replyEnterDelete)
	default:
		return replyNeutral, nil
	}
}

func (e *ConversationEngine) enter(ctx context.Context, userID string, mode domain.UserMode, reply string) (string, error) {
	if err := e.modes.SetMode(ctx, userID, mode); err != nil {
		return "", newError(ErrorStore, "mode_write_error", err)
	}
	return reply, nil
}

func (e *ConversationEngine) list(ctx context.Context, userID string, kind domain.ListKind) (string, error) {
	entries, err := e.records.List(ctx, userID, kind)
	if err != nil {
		return "", newError(ErrorStore, "list_read_error", err)
	}
	return RenderList(entries), nil
}

func (e *ConversationEngine) record(ctx context.Context, userID string, kind domain.ListKind, text string) (string, error) {
	if err := e.records.Append(ctx, userID, kind, text); err != nil {
		return "", newError(ErrorStore, "list_append_error", err)
	}
	if err := e.modes.ClearMode(ctx, userID); err != nil {
		return "", newError(ErrorStore, "mode_clear_error", err)
	}
	return replyRecorded[kind], nil
}

func (e *ConversationEngine) deleteEntry(ctx context.Context, userID string, kind domain.ListKind, text string) (string, error) {
	index, ok := parseIndex(text)
	if !ok {
		return replyNotANumber, nil
	}
	if index == 0 {
		if err := e.modes.ClearMode(ctx, userID); err != nil {
			return "", newError(ErrorStore, "mode_clear_error", err)
		}
		return replyDeleteCancel, nil
	}

	err := e.records.DeleteAt(ctx, userID, kind, index)
	if errors.Is(err, domain.ErrIndexOutOfRange) {
		return replyInvalidIndex, nil
	}
	if err != nil {
		return "", newError(ErrorStore, "list_delete_error", err)
	}
	if err := e.modes.ClearMode(ctx, userID); err != nil {
		return "", newError(ErrorStore, "mode_clear_error", err)
	}

	entries, err := e.records.List(ctx, userID, kind)
	if err != nil {
		return "", newError(ErrorStore, "list_read_error", err)
	}
	return fmt.Sprintf(replyDeletedFormat, index, RenderList(entries)), nil
}

// parseIndex reads a delete index. Full-width digits and spaces, common from
// Japanese input methods, are folded to ASCII first.
func parseIndex(text string) (int, bool) {
	s := strings.TrimSpace(width.Narrow.String(text))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
