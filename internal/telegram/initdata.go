// Package telegram verifies mini-app init data and talks to the Telegram Bot
// API.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidInitData is returned when init data does not carry a valid
// signature for the bot token.
var ErrInvalidInitData = errors.New("telegram: invalid init data")

// webAppDataKey keys the HMAC that derives the init data secret from the bot token.
const webAppDataKey = "WebAppData"

// SignInitData returns the hex signature of dataCheckString for botToken.
// dataCheckString is the URL-encoded, "&"-joined form the widget forwards;
// it is signed in its decoded, newline-joined form.
func SignInitData(botToken, dataCheckString string) (string, error) {
	decoded, err := url.PathUnescape(strings.ReplaceAll(dataCheckString, "&", "\n"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(decoded))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyInitData checks initDataHash against dataCheckString.
func VerifyInitData(botToken, initDataHash, dataCheckString string) error {
	if botToken == "" {
		return fmt.Errorf("%w: bot token not configured", ErrInvalidInitData)
	}
	if initDataHash == "" || dataCheckString == "" {
		return fmt.Errorf("%w: missing hash or data check string", ErrInvalidInitData)
	}
	expected, err := SignInitData(botToken, dataCheckString)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(strings.ToLower(initDataHash)), []byte(expected)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidInitData)
	}
	return nil
}

// WebAppUser is the "user" field of mini-app init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// InitDataUser extracts the user from a data check string. Only trust the
// result after VerifyInitData succeeded.
func InitDataUser(dataCheckString string) (WebAppUser, error) {
	values, err := url.ParseQuery(dataCheckString)
	if err != nil {
		return WebAppUser{}, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	raw := values.Get("user")
	if raw == "" {
		return WebAppUser{}, fmt.Errorf("%w: no user field", ErrInvalidInitData)
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return WebAppUser{}, fmt.Errorf("%w: user: %v", ErrInvalidInitData, err)
	}
	if user.ID == 0 {
		return WebAppUser{}, fmt.Errorf("%w: user has no id", ErrInvalidInitData)
	}
	return user, nil
}
