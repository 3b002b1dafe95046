package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
)

// Claims is the verified payload of an inbound bearer credential.
type Claims struct {
	Email     string
	Name      string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier validates bearer credentials. Two compact encodings are
// accepted: a 5-segment AES-GCM encrypted envelope and a 3-segment HS256
// signed token. The verifier holds only immutable configuration and is
// safe for concurrent use.
type Verifier struct {
	signingSecret []byte
	encryptionKey []byte
	clk           clock.Clock
}

// NewVerifier derives the encryption key from the configured secret the
// same way the issuing side does (SHA-256 of the raw secret).
func NewVerifier(signingSecret, encryptionSecret string, clk clock.Clock) *Verifier {
	v := &Verifier{clk: clk}
	if clk == nil {
		v.clk = clock.SystemClock{}
	}
	if signingSecret = strings.TrimSpace(signingSecret); signingSecret != "" {
		v.signingSecret = []byte(signingSecret)
	}
	if encryptionSecret = strings.TrimSpace(encryptionSecret); encryptionSecret != "" {
		sum := sha256.Sum256([]byte(encryptionSecret))
		v.encryptionKey = sum[:]
	}
	return v
}

// Verify validates a raw credential and returns its claims.
//
// A 5-segment credential is decrypted first; when decryption fails the
// signed path is attempted on the same input so credentials from either
// issuer keep working. Failures from both steps are retained in the
// returned error for diagnostics.
func (v *Verifier) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalidFormat
	}

	switch strings.Count(raw, ".") + 1 {
	case 5:
		claims, encErr := v.verifyEncrypted(raw)
		if encErr == nil {
			return claims, nil
		}
		if !errors.Is(encErr, errDecryptFailed) {
			// Decryption succeeded but the claims are unusable;
			// the signed path cannot rescue that.
			return Claims{}, encErr
		}
		signed, sigErr := v.verifySigned(raw)
		if sigErr != nil {
			return Claims{}, fmt.Errorf("%w (signed fallback after: %v)", sigErr, encErr)
		}
		return signed, nil
	case 3:
		return v.verifySigned(raw)
	default:
		return Claims{}, ErrInvalidFormat
	}
}

type signedClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (v *Verifier) verifySigned(raw string) (Claims, error) {
	if len(v.signingSecret) == 0 {
		return Claims{}, ErrInvalidSignature
	}
	if strings.Count(raw, ".")+1 != 3 {
		return Claims{}, ErrInvalidFormat
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clk.Now),
		jwt.WithExpirationRequired(),
	)
	var claims signedClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.signingSecret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrInvalidFormat
		default:
			return Claims{}, ErrInvalidSignature
		}
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return Claims{}, ErrMissingClaim
	}

	out := Claims{
		Email:   email,
		Name:    strings.TrimSpace(claims.Name),
		Subject: claims.Subject,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

type encryptedClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Subject   string `json:"sub,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// verifyEncrypted opens a compact encrypted envelope of the form
// header.encryptedKey.iv.ciphertext.tag with a direct AES-256-GCM key.
func (v *Verifier) verifyEncrypted(raw string) (Claims, error) {
	if len(v.encryptionKey) == 0 {
		return Claims{}, errDecryptFailed
	}

	segments := strings.Split(raw, ".")
	if len(segments) != 5 {
		return Claims{}, ErrInvalidFormat
	}

	iv, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad iv segment", errDecryptFailed)
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(segments[3])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad ciphertext segment", errDecryptFailed)
	}
	tag, err := base64.RawURLEncoding.DecodeString(segments[4])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad tag segment", errDecryptFailed)
	}

	block, err := aes.NewCipher(v.encryptionKey)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errDecryptFailed, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errDecryptFailed, err)
	}
	plain, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errDecryptFailed, err)
	}

	var claims encryptedClaims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errDecryptFailed, err)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return Claims{}, ErrMissingClaim
	}
	if claims.ExpiresAt > 0 && v.clk.Now().After(time.Unix(claims.ExpiresAt, 0)) {
		return Claims{}, ErrExpired
	}

	out := Claims{
		Email:   email,
		Name:    strings.TrimSpace(claims.Name),
		Subject: claims.Subject,
	}
	if claims.IssuedAt > 0 {
		out.IssuedAt = time.Unix(claims.IssuedAt, 0).UTC()
	}
	if claims.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(claims.ExpiresAt, 0).UTC()
	}
	return out, nil
}
