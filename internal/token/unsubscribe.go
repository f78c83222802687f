package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// UnsubscribeSubject identifies who is opting out. Exactly one of UserID or Email is set.
type UnsubscribeSubject struct {
	UserID int64
	Email  string
}

// UnsubscribeValidation is the outcome of checking an unsubscribe token.
// An empty Category means a global opt-out.
type UnsubscribeValidation struct {
	Valid    bool
	UserID   int64
	Email    string
	Category string
	Expired  bool
	Error    string
}

type unsubscribePayload struct {
	UserID   int64  `json:"uid,omitempty"`
	Email    string `json:"email,omitempty"`
	Category string `json:"cat,omitempty"`
	Exp      int64  `json:"exp"`
}

func deriveKey(secret string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("freightdocs unsubscribe v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails after 255*HashLen bytes
		panic(err)
	}
	return key
}

// GenerateUnsubscribeToken signs an opt-out link for subject. category may be
// empty for a global opt-out.
func (s *Service) GenerateUnsubscribeToken(subject UnsubscribeSubject, category string) (string, error) {
	if s.unsubscribeKey == nil {
		return "", ErrNoSecret
	}
	if (subject.UserID == 0) == (subject.Email == "") {
		return "", fmt.Errorf("unsubscribe subject needs exactly one of user id or email")
	}

	body, err := json.Marshal(unsubscribePayload{
		UserID:   subject.UserID,
		Email:    subject.Email,
		Category: category,
		Exp:      s.now().Add(s.unsubscribeExpiry).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + base64.RawURLEncoding.EncodeToString(s.sign(encoded)), nil
}

// ValidateUnsubscribeToken verifies the signature before decoding the payload.
func (s *Service) ValidateUnsubscribeToken(token string) UnsubscribeValidation {
	if s.unsubscribeKey == nil {
		return UnsubscribeValidation{Error: ErrMsgValidationFailed}
	}

	encoded, sigPart, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sigPart == "" {
		return UnsubscribeValidation{Error: ErrMsgInvalidFormat}
	}

	sig, err := decodeBase64URL(sigPart)
	if err != nil {
		return UnsubscribeValidation{Error: ErrMsgValidationFailed}
	}
	if !hmac.Equal(sig, s.sign(encoded)) {
		return UnsubscribeValidation{Error: ErrMsgInvalidSignature}
	}

	body, err := decodeBase64URL(encoded)
	if err != nil {
		return UnsubscribeValidation{Error: ErrMsgValidationFailed}
	}
	var p unsubscribePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return UnsubscribeValidation{Error: ErrMsgValidationFailed}
	}
	if p.UserID == 0 && p.Email == "" {
		return UnsubscribeValidation{Error: ErrMsgInvalidFormat}
	}

	if s.now().Unix() > p.Exp {
		return UnsubscribeValidation{Expired: true, Error: ErrMsgExpired}
	}

	return UnsubscribeValidation{
		Valid:    true,
		UserID:   p.UserID,
		Email:    p.Email,
		Category: p.Category,
	}
}

func (s *Service) sign(encodedPayload string) []byte {
	mac := hmac.New(sha256.New, s.unsubscribeKey)
	mac.Write([]byte(encodedPayload))
	return mac.Sum(nil)
}
