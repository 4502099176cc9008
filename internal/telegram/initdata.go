// Package telegram is the host bridge: it turns the initData string the
// Telegram WebApp hands the mini-app into a verified player identity.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"casino-miniapp/internal/models"
)

var (
	ErrEmptyInitData = errors.New("telegram: init data is empty")
	ErrMissingHash   = errors.New("telegram: init data has no hash")
	ErrBadSignature  = errors.New("telegram: init data signature mismatch")
	ErrExpired       = errors.New("telegram: init data is too old")
	ErrMissingUser   = errors.New("telegram: init data carries no user")
)

// InitData is the verified content of a WebApp launch.
type InitData struct {
	User         *models.TelegramUser
	AuthDate     time.Time
	QueryID      string
	StartParam   string
	ChatInstance string
}

// Validator checks initData against the bot token it was signed with.
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator derives the WebApp secret key from botToken. A zero maxAge
// disables the age check.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Validator{
		secret: mac.Sum(nil),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (v *Validator) Validate(raw string) (*InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInitData
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrBadSignature
	}
	if !hmac.Equal(v.sign(values), want) {
		return nil, ErrBadSignature
	}

	data := &InitData{
		QueryID:      values.Get("query_id"),
		StartParam:   values.Get("start_param"),
		ChatInstance: values.Get("chat_instance"),
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		secs, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram: invalid auth_date: %w", err)
		}
		data.AuthDate = time.Unix(secs, 0).UTC()
	}
	if v.maxAge > 0 && (data.AuthDate.IsZero() || v.now().Sub(data.AuthDate) > v.maxAge) {
		return nil, ErrExpired
	}

	if rawUser := values.Get("user"); rawUser != "" {
		var user models.TelegramUser
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			return nil, fmt.Errorf("telegram: invalid user payload: %w", err)
		}
		if user.ID != 0 {
			data.User = &user
		}
	}

	return data, nil
}

// Identify validates raw and returns the launching user, failing with
// ErrMissingUser when the launch carried none.
func (v *Validator) Identify(raw string) (*models.TelegramUser, error) {
	data, err := v.Validate(raw)
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, ErrMissingUser
	}
	return data.User, nil
}

// Sign computes the hash field for values. It ignores any hash already
// present.
func (v *Validator) Sign(values url.Values) string {
	return hex.EncodeToString(v.sign(values))
}

func (v *Validator) sign(values url.Values) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
