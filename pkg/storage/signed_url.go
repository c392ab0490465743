package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed share token")
	ErrBadSignature   = errors.New("invalid share token signature")
	ErrTokenExpired   = errors.New("share token expired")
)

// ShareClaims is what a share token binds together.
type ShareClaims struct {
	Subject     string
	Fingerprint string
	ExpiresAt   time.Time
}

// SignedURLSigner creates and validates HMAC-signed, expiring share tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a URL-safe token for subject and fingerprint.
func (s *SignedURLSigner) Generate(subject, fingerprint string) (string, time.Time, error) {
	if subject == "" || fingerprint == "" {
		return "", time.Time{}, fmt.Errorf("subject and fingerprint required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	payload := strings.Join([]string{
		encode(subject),
		encode(fingerprint),
		strconv.FormatInt(expiresAt.Unix(), 10),
	}, ".")
	return payload + "." + s.sign(payload), expiresAt, nil
}

// Parse verifies the signature and expiry and returns the embedded claims.
func (s *SignedURLSigner) Parse(token string) (ShareClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return ShareClaims{}, ErrMalformedToken
	}
	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[3])) {
		return ShareClaims{}, ErrBadSignature
	}

	subject, err := decode(parts[0])
	if err != nil {
		return ShareClaims{}, ErrMalformedToken
	}
	fingerprint, err := decode(parts[1])
	if err != nil {
		return ShareClaims{}, ErrMalformedToken
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ShareClaims{}, ErrMalformedToken
	}

	claims := ShareClaims{Subject: subject, Fingerprint: fingerprint, ExpiresAt: time.Unix(exp, 0).UTC()}
	if s.now().After(claims.ExpiresAt) {
		return ShareClaims{}, ErrTokenExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encode(v string) string { return base64.RawURLEncoding.EncodeToString([]byte(v)) }

func decode(v string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	return string(raw), err
}
