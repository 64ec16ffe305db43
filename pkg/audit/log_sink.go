package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSink writes decisions as structured log entries. Denials log at warn,
// allows at info, transient errors at error.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a sink writing to logger. A nil logger gets a default
// JSON-formatted logrus logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, d *Decision) error {
	fields := logrus.Fields{
		"decision_id": d.ID,
		"principal":   d.PrincipalID,
		"org":         d.OrgID,
		"module":      d.Module,
		"action":      d.Action,
		"outcome":     d.Outcome,
	}
	if d.Layer != LayerNone {
		fields["layer"] = d.Layer
	}
	if d.Reason != "" {
		fields["reason"] = d.Reason
	}
	if d.ResourceOrgID != nil {
		fields["resource_org"] = *d.ResourceOrgID
	}
	if d.Trial {
		fields["trial"] = true
	}

	entry := s.logger.WithFields(fields)
	switch d.Outcome {
	case OutcomeAllow:
		entry.Info("access allowed")
	case OutcomeError:
		entry.Error("access decision failed")
	default:
		entry.Warn("access denied")
	}
	return nil
}
