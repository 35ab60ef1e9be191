package service

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes outgoing mail to the log instead of sending it.  The
// body is only logged at debug level since it carries codes and links.
type LogMailer struct{ log *zap.Logger }

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("mail queued", zap.String("to", to), zap.String("subject", subject))
	m.log.Debug("mail body", zap.String("to", to), zap.String("body", body))
	return nil
}
