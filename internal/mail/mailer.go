package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes outgoing mail to the log instead of delivering it. It is
// the default Mailer; a real provider slots in behind the same interface.
type LogMailer struct {
	from   string
	logger *slog.Logger
}

func NewLogMailer(from string, logger *slog.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("outgoing email",
		"from", m.from,
		"to", to,
		"subject", subject,
		"body_bytes", len(body),
	)
	return nil
}
