package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Password reset tokens are stateless: userId:expiresAtEpochMillis:signature,
// signed with HMAC-SHA256 keyed by the user's current password hash. Changing
// the password rotates the key and invalidates every outstanding token
// without a server-side revocation list.

// NewResetToken builds a reset token for the user valid until expiresAt.
func NewResetToken(userID, passwordHash string, expiresAt time.Time) string {
	payload := fmt.Sprintf("%s:%d", userID, expiresAt.UnixMilli())
	return payload + ":" + signReset(passwordHash, payload)
}

// ParseResetToken validates a reset token against the user's current
// password hash. It returns the user id on success, ErrExpiredToken past
// the deadline, and ErrInvalidToken for any malformed or mis-signed value.
func ParseResetToken(token, passwordHash string, now time.Time) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	userID, rawExpiry, signature := parts[0], parts[1], parts[2]
	if userID == "" {
		return "", ErrInvalidToken
	}

	expiresMillis, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}

	payload := userID + ":" + rawExpiry
	expected := signReset(passwordHash, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}

	if now.UnixMilli() >= expiresMillis {
		return "", ErrExpiredToken
	}
	return userID, nil
}

// ResetTokenUserID extracts the user id without verifying, so the caller
// can load the password hash needed for verification.
func ResetTokenUserID(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrInvalidToken
	}
	return parts[0], nil
}

func signReset(passwordHash, payload string) string {
	mac := hmac.New(sha256.New, []byte(passwordHash))
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
