package usecase

import (
	"fmt"
	"strings"

	"line-memo-relay/internal/domain"
)

const (
	replyNeutral       = "☺️"
	replyNoData        = "データが存在しません。"
	replyEnterDelete   = "削除したい番号を送ってください。（0でキャンセル）"
	replyDeleteCancel  = "削除をキャンセルしました。"
	replyNotANumber    = "数字で削除したい番号を送ってください。（0でキャンセル）"
	replyInvalidIndex  = "無効な番号です。再度番号を送ってください。（0でキャンセル）"
	replyDeletedFormat = "番号 %d を削除しました。\n\n%s"
)

var replyEnterRecord = map[domain.ListKind]string{
	domain.ListMemo: "メモ記録モードに入りました。次のメッセージを記録します。",
	domain.ListURL:  "URL記録モードに入りました。次のメッセージを記録します。",
}

var replyRecorded = map[domain.ListKind]string{
	domain.ListMemo: "メモを記録しました。",
	domain.ListURL:  "URLを記録しました。",
}

// RenderList formats entries as "{n}. {entry}" lines. Entries that are blank
// after trimming are skipped and do not consume a number.
func RenderList(entries []string) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, e))
	}
	if len(lines) == 0 {
		return replyNoData
	}
	return strings.Join(lines, "\n")
}
