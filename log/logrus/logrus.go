package logrus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/cachelib"
)

var _ cachelib.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f cachelib.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f cachelib.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f cachelib.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f cachelib.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}

// RotateConfig describes a JSON log file rotated by size.
type RotateConfig struct {
	Path       string // required
	Level      string // logrus level name; "" => info
	MaxSizeMB  int    // 0 => lumberjack default (100)
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotating returns a logger writing JSON lines to cfg.Path through
// lumberjack. The returned closer releases the file.
func NewRotating(cfg RotateConfig) (LogrusLogger, io.Closer, error) {
	if cfg.Path == "" {
		return LogrusLogger{}, nil, fmt.Errorf("logrus: empty log path")
	}
	level := logrus.InfoLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return LogrusLogger{}, nil, fmt.Errorf("logrus: parse level: %w", err)
		}
		level = lv
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return LogrusLogger{}, nil, fmt.Errorf("logrus: create log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(rotator)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	return LogrusLogger{E: logrus.NewEntry(l).WithField("component", "cachelib")}, rotator, nil
}
