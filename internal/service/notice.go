package service

import (
	"context"
	"log/slog"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

// noticeLog is the composer's notification sink for one session. The HTTP
// response carries the notice itself; this only records it.
type noticeLog struct {
	logger *slog.Logger
}

func (l noticeLog) Notify(n model.Notice) {
	level := slog.LevelInfo
	if n.Level == model.NoticeError {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "composer notice", "level", n.Level, "message", n.Message)
}
