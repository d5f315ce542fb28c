package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/wolfman30/booking-widget/internal/catalog"
)

var (
	// ErrPayloadWhitespace is returned when a payload field would contain
	// whitespace and so could not be split back into its fields.
	ErrPayloadWhitespace = errors.New("booking: payload field contains whitespace")
	// ErrInvalidPayload is returned for payload strings that do not carry
	// exactly five well-formed fields.
	ErrInvalidPayload = errors.New("booking: invalid payload")
)

// Payload is the booking intent carried through the payment flow as
// "<userID> <initMessageID> <serviceIDs JSON> <date> <time>".
type Payload struct {
	UserID        string
	InitMessageID string
	ServiceIDs    []catalog.ServiceID
	Date          string
	Time          string
}

// EncodePayload serializes p. The service id array is compact JSON.
func EncodePayload(p Payload) (string, error) {
	if len(p.ServiceIDs) == 0 {
		return "", fmt.Errorf("%w: no service ids", ErrInvalidPayload)
	}
	ids, err := catalog.EncodeIDs(p.ServiceIDs)
	if err != nil {
		return "", fmt.Errorf("booking: encode service ids: %w", err)
	}
	fields := []struct {
		name, value string
	}{
		{"user id", p.UserID},
		{"init message id", p.InitMessageID},
		{"service ids", string(ids)},
		{"date", p.Date},
		{"time", p.Time},
	}
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			return "", fmt.Errorf("%w: empty %s", ErrInvalidPayload, f.name)
		}
		if strings.ContainsFunc(f.value, unicode.IsSpace) {
			return "", fmt.Errorf("%w: %s %q", ErrPayloadWhitespace, f.name, f.value)
		}
		values = append(values, f.value)
	}
	return strings.Join(values, " "), nil
}

// ParsePayload splits a payload on whitespace into its five fields.
func ParsePayload(s string) (Payload, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return Payload{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidPayload, len(fields))
	}
	var ids []catalog.ServiceID
	if err := json.Unmarshal([]byte(fields[2]), &ids); err != nil {
		return Payload{}, fmt.Errorf("%w: service ids: %v", ErrInvalidPayload, err)
	}
	if len(ids) == 0 {
		return Payload{}, fmt.Errorf("%w: no service ids", ErrInvalidPayload)
	}
	for _, id := range ids {
		if id.IsZero() {
			return Payload{}, fmt.Errorf("%w: null service id", ErrInvalidPayload)
		}
	}
	return Payload{
		UserID:        fields[0],
		InitMessageID: fields[1],
		ServiceIDs:    ids,
		Date:          fields[3],
		Time:          fields[4],
	}, nil
}
