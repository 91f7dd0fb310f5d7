// Package zaplog backs internal/logging.Service with a go.uber.org/zap
// SugaredLogger. zap is part of the teacher's own dependency graph (it
// arrives indirectly through go.etcd.io/etcd/client/v3) but the teacher
// never imports it directly; this package promotes it to a direct,
// directly-exercised dependency rather than hand-rolling a level-filtered
// writer around the standard log package.
package zaplog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
)

// Service adapts a zap.SugaredLogger to logging.Service.
type Service struct {
	sugar     *zap.SugaredLogger
	component string
	minLevel  logging.Level
}

// New builds a Service that writes JSON-structured events to path (or to
// stderr when path is empty). minLevel events below this severity are
// dropped before they ever reach zap.
func New(path string, minLevel logging.Level) (*Service, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(cfg)

	var ws zapcore.WriteSyncer
	if path == "" {
		ws = zapcore.AddSync(os.Stderr)
	} else {
		if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		ws = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, ws, zapcore.DebugLevel)
	logger := zap.New(core)

	return &Service{sugar: logger.Sugar(), minLevel: minLevel}, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func (s *Service) With(component string) logging.Service {
	return &Service{sugar: s.sugar, component: component, minLevel: s.minLevel}
}

func (s *Service) fields(e logging.Event) []any {
	fields := make([]any, 0, 2+2*len(e.Metadata))
	component := e.Component
	if component == "" {
		component = s.component
	}
	fields = append(fields, "component", component)
	for k, v := range e.Metadata {
		fields = append(fields, k, v)
	}
	return fields
}

func (s *Service) Debug(e logging.Event) {
	if s.minLevel > logging.DebugLevel {
		return
	}
	s.sugar.Debugw(e.Message, s.fields(e)...)
}

func (s *Service) Info(e logging.Event) {
	if s.minLevel > logging.InfoLevel {
		return
	}
	s.sugar.Infow(e.Message, s.fields(e)...)
}

func (s *Service) Warn(e logging.Event) {
	if s.minLevel > logging.WarnLevel {
		return
	}
	s.sugar.Warnw(e.Message, s.fields(e)...)
}

func (s *Service) Error(e logging.Event) {
	if s.minLevel > logging.ErrorLevel {
		return
	}
	s.sugar.Errorw(e.Message, s.fields(e)...)
}

var _ logging.Service = (*Service)(nil)
