package profile

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	salt = []byte("acolher.core.profile.invite_token")

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator signs invite tokens with the application secret.
// A token stops verifying once the invite is accepted or after `timeout`.
type tokenGenerator struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// EncodeUID base64 encodes the ID of an Invite.
func EncodeUID(inv Invite) string {
	return base64.RawURLEncoding.EncodeToString([]byte(inv.ID))
}

// decodeUID base64 decodes an UID made by EncodeUID.
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeToken generates an acceptance token for inv.
func (tg tokenGenerator) makeToken(inv Invite) string {
	return tg.makeTokenWithTimestamp(inv, numDaysSince2001(tg.now()))
}

// verifyToken checks that token was made for inv and has not expired.
func (tg tokenGenerator) verifyToken(inv Invite, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that the token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(tg.makeTokenWithTimestamp(inv, ts)), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(tg.now()) - ts) > int(tg.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (tg tokenGenerator) makeTokenWithTimestamp(inv Invite, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, tg.sign(hashValue(inv, ts)))
}

func (tg tokenGenerator) sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, salt...), tg.secret...))
	h := hmac.New(sha256.New, key[:])
	_, _ = h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func hashValue(inv Invite, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(inv.ID)
	val.WriteString(inv.Email)
	val.WriteString(inv.InstitutionID)
	val.WriteString(inv.Role)
	if inv.AcceptedAt.Valid {
		val.WriteString(inv.AcceptedAt.Time.UTC().String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
