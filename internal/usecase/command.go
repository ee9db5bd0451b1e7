package usecase

import "line-memo-relay/internal/domain"

// Command is a recognised chat command. Any other text is CommandUnrecognized.
type Command int

const (
	CommandUnrecognized Command = iota
	CommandListMemo
	CommandRecordMemo
	CommandDeleteMemo
	CommandListURL
	CommandRecordURL
	CommandDeleteURL
)

// commandTexts maps the exact message text to its command. Matching is
// exact: no trimming, no case folding.
var commandTexts = map[string]Command{
	"メモ":       CommandListMemo,
	"メモ記録モード":  CommandRecordMemo,
	"メモ削除モード":  CommandDeleteMemo,
	"URL":      CommandListURL,
	"URL記録モード": CommandRecordURL,
	"URL削除モード": CommandDeleteURL,
}

// ParseCommand returns the command named by text.
func ParseCommand(text string) Command {
	return commandTexts[text]
}

// Kind returns the list the command operates on.
func (c Command) Kind() domain.ListKind {
	switch c {
	case CommandListMemo, CommandRecordMemo, CommandDeleteMemo:
		return domain.ListMemo
	case CommandListURL, CommandRecordURL, CommandDeleteURL:
		return domain.ListURL
	}
	return ""
}
