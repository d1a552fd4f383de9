package dispatch

import (
	"context"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// LogSink writes the rendered notification to the structured logger. It is
// always available and never fails, making it a safe default and a useful
// companion to DesktopSink on headless hosts.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a Sink that logs every dispatch at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, r Rendered, flags Flags) error {
	s.logger.Info("notification",
		zap.String("title", r.Title),
		zap.String("body", r.Body),
		zap.String("url", r.URL),
		zap.Bool("persistent", flags.Persistent),
	)
	return nil
}

func (s *LogSink) Name() string             { return "log" }
func (s *LogSink) SupportsPersistent() bool { return true }

// DesktopSink delivers a native OS desktop notification via beeep, the same
// cross-platform notifier library used elsewhere in the GitHub-notifier
// ecosystem this project descends from.
type DesktopSink struct {
	iconPath string
}

// NewDesktopSink returns a Sink that raises a native desktop notification.
// iconPath may be empty, in which case beeep falls back to no icon.
func NewDesktopSink(iconPath string) *DesktopSink {
	return &DesktopSink{iconPath: iconPath}
}

func (s *DesktopSink) Send(_ context.Context, r Rendered, _ Flags) error {
	return beeep.Notify(r.Title, r.Body, s.iconPath)
}

func (s *DesktopSink) Name() string { return "desktop" }

// SupportsPersistent is false: beeep has no cross-platform way to request a
// non-auto-dismissing notification, so the Persistent flag is accepted but
// silently ignored.
func (s *DesktopSink) SupportsPersistent() bool { return false }

// DummySink discards everything. It exists for tests and for running the
// engine with notifications disabled without special-casing a nil Sink.
type DummySink struct {
	Sent []Rendered
}

func NewDummySink() *DummySink {
	return &DummySink{}
}

func (s *DummySink) Send(_ context.Context, r Rendered, _ Flags) error {
	s.Sent = append(s.Sent, r)
	return nil
}

func (s *DummySink) Name() string             { return "dummy" }
func (s *DummySink) SupportsPersistent() bool { return true }

// MultiSink fans a single render out to every configured sink, collecting
// (not short-circuiting on) individual failures.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Send(ctx context.Context, r Rendered, flags Flags) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Send(ctx, r, flags); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) SupportsPersistent() bool {
	for _, s := range m.sinks {
		if s.SupportsPersistent() {
			return true
		}
	}
	return false
}
