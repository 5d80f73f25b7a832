package bolt

import (
	"context"
	"fmt"
	"log/slog"

	bolt "go.etcd.io/bbolt"
)

// boltLogger adapts slog.Logger to the bbolt Logger interface.
type boltLogger struct {
	logger *slog.Logger
}

var _ bolt.Logger = (*boltLogger)(nil)

func (bl *boltLogger) log(level slog.Level, msg string) {
	bl.logger.Log(context.Background(), level, msg, "engine", "bolt")
}

func (bl *boltLogger) Debug(v ...any) {
	bl.log(slog.LevelDebug, fmt.Sprint(v...))
}

func (bl *boltLogger) Debugf(format string, v ...any) {
	bl.log(slog.LevelDebug, fmt.Sprintf(format, v...))
}

func (bl *boltLogger) Info(v ...any) {
	bl.log(slog.LevelInfo, fmt.Sprint(v...))
}

func (bl *boltLogger) Infof(format string, v ...any) {
	bl.log(slog.LevelInfo, fmt.Sprintf(format, v...))
}

func (bl *boltLogger) Warning(v ...any) {
	bl.log(slog.LevelWarn, fmt.Sprint(v...))
}

func (bl *boltLogger) Warningf(format string, v ...any) {
	bl.log(slog.LevelWarn, fmt.Sprintf(format, v...))
}

func (bl *boltLogger) Error(v ...any) {
	bl.log(slog.LevelError, fmt.Sprint(v...))
}

func (bl *boltLogger) Errorf(format string, v ...any) {
	bl.log(slog.LevelError, fmt.Sprintf(format, v...))
}

// Fatal and Panic must not return.
func (bl *boltLogger) Fatal(v ...any) {
	bl.Panic(v...)
}

func (bl *boltLogger) Fatalf(format string, v ...any) {
	bl.Panicf(format, v...)
}

func (bl *boltLogger) Panic(v ...any) {
	msg := fmt.Sprint(v...)
	bl.log(slog.LevelError, msg)
	panic(msg)
}

func (bl *boltLogger) Panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	bl.log(slog.LevelError, msg)
	panic(msg)
}
