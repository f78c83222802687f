package server

import (
	"context"
	"errors"

	"github.com/dukerupert/freightdocs/internal/email"
)

var errEmailNotConfigured = errors.New("email not configured")

// unconfiguredMailer fails every send so reminders report per-recipient failures.
type unconfiguredMailer struct{}

func (unconfiguredMailer) SendMissingDocuments(context.Context, email.MissingDocuments) error {
	return errEmailNotConfigured
}
