package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrMalformedToken = errors.New("malformed seat token")
	ErrBadSignature   = errors.New("seat token signature mismatch")
	ErrExpiredToken   = errors.New("seat token expired")
)

// Claims identify one seat at one table.
type Claims struct {
	GameID   string    `json:"game_id"`
	Player   string    `json:"player"`
	Host     bool      `json:"host"`
	IssuedAt time.Time `json:"issued_at"`
}

// Signer issues and verifies seat tokens of the form
// base64url(claims) "." base64url(blake2b-256 keyed MAC).
type Signer struct {
	key    [32]byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner keys the MAC with the given secret. maxAge <= 0 disables expiry.
func NewSigner(secret string, maxAge time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Signer{
		key:    blake2b.Sum256([]byte(secret)),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// RandomSecret returns 32 random bytes, base64url encoded.
func RandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *Signer) Issue(gameID, player string, host bool) (string, error) {
	body, err := json.Marshal(Claims{
		GameID:   gameID,
		Player:   player,
		Host:     host,
		IssuedAt: s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + base64.RawURLEncoding.EncodeToString(s.sign(payload)), nil
}

func (s *Signer) Verify(token string) (Claims, error) {
	payload, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || payload == "" || sig == "" {
		return Claims{}, ErrMalformedToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	if !hmac.Equal(got, s.sign(payload)) {
		return Claims{}, ErrBadSignature
	}
	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	var c Claims
	if err := json.Unmarshal(body, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if c.GameID == "" || c.Player == "" {
		return Claims{}, ErrMalformedToken
	}
	if s.maxAge > 0 && s.now().Sub(c.IssuedAt) > s.maxAge {
		return Claims{}, ErrExpiredToken
	}
	return c, nil
}

func (s *Signer) sign(payload string) []byte {
	// blake2b.New256 only fails on keys longer than 64 bytes.
	h, _ := blake2b.New256(s.key[:])
	h.Write([]byte(payload))
	return h.Sum(nil)
}
