package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Messages reported in InviteValidation.Error.
const (
	ErrMsgInvalidFormat    = "Invalid token format"
	ErrMsgExpired          = "Token has expired"
	ErrMsgInvalidSignature = "Token signature is invalid"
	ErrMsgValidationFailed = "Failed to validate token"
)

// InviteValidation is the outcome of checking an invite token. A failed check is
// reported through Valid and Error, never as a Go error.
type InviteValidation struct {
	Valid   bool
	TeamID  int64
	Email   string
	Expired bool
	Error   string
}

// GenerateInviteToken encodes teamID, email, an expiry and a random nonce together
// with a SHA-256 digest over those fields. A non-positive expiresIn uses DefaultInviteExpiry.
func (s *Service) GenerateInviteToken(teamID int64, email string, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = DefaultInviteExpiry
	}
	if strings.Contains(email, ":") {
		return "", fmt.Errorf("email %q contains a field separator", email)
	}

	nonce := make([]byte, 16)
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	expiresAt := s.now().Add(expiresIn).UnixMilli()
	payload := strings.Join([]string{
		strconv.FormatInt(teamID, 10),
		email,
		strconv.FormatInt(expiresAt, 10),
		hex.EncodeToString(nonce),
	}, ":")

	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + inviteDigest(payload))), nil
}

// ValidateInviteToken checks format, then expiry, then the digest. Fields are
// compared as sent; teamId is only parsed once the digest matches.
func (s *Service) ValidateInviteToken(token string) InviteValidation {
	raw, err := decodeBase64URL(token)
	if err != nil {
		return InviteValidation{Error: ErrMsgValidationFailed}
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 5 {
		return InviteValidation{Error: ErrMsgInvalidFormat}
	}
	teamField, email, expField, nonce, digest := parts[0], parts[1], parts[2], parts[3], parts[4]

	// A non-numeric expiry is left for the digest check to reject.
	if expiresAt, err := strconv.ParseInt(expField, 10, 64); err == nil && s.now().UnixMilli() > expiresAt {
		return InviteValidation{Expired: true, Error: ErrMsgExpired}
	}

	payload := strings.Join([]string{teamField, email, expField, nonce}, ":")
	if subtle.ConstantTimeCompare([]byte(inviteDigest(payload)), []byte(digest)) != 1 {
		return InviteValidation{Error: ErrMsgInvalidSignature}
	}

	teamID, err := strconv.ParseInt(teamField, 10, 64)
	if err != nil {
		return InviteValidation{Error: ErrMsgValidationFailed}
	}
	return InviteValidation{Valid: true, TeamID: teamID, Email: email}
}

func inviteDigest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// decodeBase64URL accepts base64url with or without padding. Unused trailing
// bits must be zero so that every encoded character is significant.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
