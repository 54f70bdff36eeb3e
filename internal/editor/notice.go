package editor

import (
	"errors"

	"memocal/internal/calsync"
	"memocal/internal/ics"
	"memocal/internal/model"
)

const (
	msgGoogleCreate     = "Googleカレンダーへの追加に失敗しました。"
	msgGoogleUpdate     = "Googleカレンダーへの更新に失敗しました。"
	msgGoogleDelete     = "Googleカレンダーからの削除に失敗しました。"
	msgFileCreate       = "カレンダーファイルの作成に失敗しました。"
	msgFileDelete       = "カレンダーファイルの削除に失敗しました。"
	msgFileManualDelete = "アプリ上からは削除されましたが、カレンダー本体の予定はご自身で手動削除をお願いします。"
	msgList             = "カレンダーの予定の取得に失敗しました。"
)

func failureMessage(op calsync.Op, target model.SyncTarget, err error) string {
	if errors.Is(err, ics.ErrEncode) {
		return msgFileCreate
	}
	switch {
	case op == calsync.OpList:
		return msgList
	case target == model.TargetGoogle && op == calsync.OpCreate:
		return msgGoogleCreate
	case target == model.TargetGoogle && op == calsync.OpUpdate:
		return msgGoogleUpdate
	case target == model.TargetGoogle:
		return msgGoogleDelete
	case op == calsync.OpDelete:
		return msgFileDelete
	}
	return msgFileCreate
}
