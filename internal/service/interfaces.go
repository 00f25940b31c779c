package service

import "context"

// Mailer is the external email-dispatch collaborator. Delivery is best
// effort: the auth flows never block on it.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
