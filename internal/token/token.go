// Package token issues and checks the self-contained invite and unsubscribe
// tokens that appear in outbound email links.
package token

import (
	"crypto/rand"
	"errors"
	"io"
	"time"
)

const (
	DefaultInviteExpiry      = 72 * time.Hour
	DefaultUnsubscribeExpiry = 30 * 24 * time.Hour
)

// ErrNoSecret is returned when an unsubscribe token is requested without a signing secret.
var ErrNoSecret = errors.New("unsubscribe secret not configured")

// Service generates and validates tokens. The zero value is not usable; use New.
type Service struct {
	unsubscribeKey    []byte
	unsubscribeExpiry time.Duration
	now               func() time.Time
	rand              io.Reader
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand overrides the nonce source.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithUnsubscribeExpiry overrides how long unsubscribe links stay valid.
func WithUnsubscribeExpiry(d time.Duration) Option {
	return func(s *Service) { s.unsubscribeExpiry = d }
}

// New creates a token service. unsubscribeSecret may be empty, in which case
// unsubscribe tokens can be neither issued nor accepted.
func New(unsubscribeSecret string, opts ...Option) *Service {
	s := &Service{
		unsubscribeExpiry: DefaultUnsubscribeExpiry,
		now:               time.Now,
		rand:              rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	if unsubscribeSecret != "" {
		s.unsubscribeKey = deriveKey(unsubscribeSecret)
	}
	return s
}
