package deeplink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Action is what a scanned card asks the server to do.
type Action string

const (
	ActionAddPoints Action = "addpoints"
	ActionRedeem    Action = "redeem"
)

// Valid reports whether the action is one the server dispatches.
func (a Action) Valid() bool {
	switch a {
	case ActionAddPoints, ActionRedeem:
		return true
	default:
		return false
	}
}

var (
	ErrMalformed = errors.New("malformed deep link token")
	ErrSignature = errors.New("invalid deep link signature")
	ErrExpired   = errors.New("deep link expired")
)

// Link is the verified content of a token.
type Link struct {
	Action    Action
	StudentID string
	ExpiresAt time.Time
}

// Signer creates and validates HMAC-SHA256 signed student deep links.
type Signer struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewSigner constructs a signer with the provided secret, TTL and public base URL.
func NewSigner(secret string, ttl time.Duration, baseURL string) *Signer {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Signer{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Sign returns a token binding the action to the student.
func (s *Signer) Sign(action Action, studentID string) (string, time.Time, error) {
	if !action.Valid() {
		return "", time.Time{}, fmt.Errorf("unsupported action %q", action)
	}
	if studentID == "" || strings.Contains(studentID, ".") {
		return "", time.Time{}, fmt.Errorf("invalid student id")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.mac(string(action), studentID, ts)
	return strings.Join([]string{string(action), studentID, ts, signature}, "."), expiresAt, nil
}

// URL renders the scannable link for a token, carrying the student id as `sid`.
func (s *Signer) URL(action Action, studentID, token string) string {
	q := url.Values{}
	q.Set("action", string(action))
	q.Set("sid", studentID)
	q.Set("token", token)
	return s.baseURL + "?" + q.Encode()
}

// Parse validates a token and returns the embedded link.
func (s *Signer) Parse(token string) (Link, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Link{}, ErrMalformed
	}
	action, studentID, ts, signature := Action(parts[0]), parts[1], parts[2], parts[3]
	if !action.Valid() || studentID == "" {
		return Link{}, ErrMalformed
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Link{}, ErrMalformed
	}

	expected := s.mac(string(action), studentID, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Link{}, ErrSignature
	}
	expiresAt := time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return Link{}, ErrExpired
	}
	return Link{Action: action, StudentID: studentID, ExpiresAt: expiresAt}, nil
}

func (s *Signer) mac(action, studentID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(action + "|" + studentID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
