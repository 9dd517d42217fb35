package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ProgressCallback receives progress of a batch run. Calls are made from
// the collecting goroutine only.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnError(file string, err error)
	OnComplete()
}

// LogProgress logs batch progress with slog every Interval files.
type LogProgress struct {
	Logger   *slog.Logger
	Level    slog.Level
	Interval int

	lastLog int
	start   time.Time
}

// NewLogProgress logs to logger, or slog.Default when it is nil.
func NewLogProgress(logger *slog.Logger, level slog.Level) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{Logger: logger, Level: level, Interval: 10}
}

func (l *LogProgress) OnStart(total int) {
	l.start = time.Now()
	l.lastLog = 0
	l.Logger.Log(context.Background(), l.Level, "Batch started", "total", total)
}

func (l *LogProgress) OnProgress(current, total int) {
	if current-l.lastLog < l.Interval && current != total {
		return
	}
	l.lastLog = current
	elapsed := time.Since(l.start)
	l.Logger.Log(context.Background(), l.Level, "Batch progress",
		"current", current,
		"total", total,
		"percent", fmt.Sprintf("%.1f", float64(current)/float64(total)*100),
		"rate", fmt.Sprintf("%.1f/s", float64(current)/elapsed.Seconds()),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgress) OnError(file string, err error) {
	l.Logger.Log(context.Background(), slog.LevelWarn, "Batch file failed", "file", file, "error", err)
}

func (l *LogProgress) OnComplete() {
	l.Logger.Log(context.Background(), l.Level, "Batch completed", "elapsed", time.Since(l.start).Round(time.Millisecond))
}
