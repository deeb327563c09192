package log

import (
	"log/slog"
	"time"
)

func FlowID[T ~string](id T) slog.Attr {
	return slog.String("flow_id", string(id))
}

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func UserID[T ~string](id T) slog.Attr {
	return slog.String("user_id", string(id))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func URL(u string) slog.Attr {
	return slog.String("url", u)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
