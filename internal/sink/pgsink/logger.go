package pgsink

import (
	"context"
	"fmt"
	"strings"

	sqldblogger "github.com/simukti/sqldb-logger"
	"go.uber.org/zap"
)

// sqlLogger 把 sqldb-logger 的事件转发到 zap。
// 语句级日志一律降为 debug；只有错误按 error 输出。
type sqlLogger struct {
	l *zap.Logger
}

func (s sqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	switch level {
	case sqldblogger.LevelError:
		s.l.Error(msg, fields...)
	default:
		s.l.Debug(msg, fields...)
	}
}

// gooseLogger 实现 goose.Logger。
// Fatal* 不退出进程：迁移失败由 goose.Up 的返回值上报。
type gooseLogger struct {
	l *zap.Logger
}

func (g gooseLogger) Print(v ...interface{})   { g.l.Info(strings.TrimSpace(fmt.Sprint(v...))) }
func (g gooseLogger) Println(v ...interface{}) { g.l.Info(strings.TrimSpace(fmt.Sprintln(v...))) }
func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatal(v ...interface{}) { g.l.Error(strings.TrimSpace(fmt.Sprint(v...))) }
func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
