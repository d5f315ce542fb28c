// Package catalog holds the sellable services and the free-slot calendar a
// booking widget session is built from.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the ISO calendar date format used for free-slot keys.
const DateLayout = "2006-01-02"

// ErrInvalidCatalog marks catalog data that cannot back a booking session.
var ErrInvalidCatalog = errors.New("catalog: invalid catalog")

// ServiceID is a backend service identifier kept in its JSON form, either a
// number or a string, so it serializes exactly as the backend supplied it.
type ServiceID struct {
	raw json.RawMessage
}

// StringID builds a string identifier.
func StringID(s string) ServiceID {
	b, _ := marshalVerbatim(s)
	return ServiceID{raw: b}
}

// EncodeIDs renders ids as compact JSON with the id text left as supplied.
func EncodeIDs(ids []ServiceID) ([]byte, error) {
	return marshalVerbatim(ids)
}

// marshalVerbatim is json.Marshal without HTML escaping of <, > and &.
func marshalVerbatim(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IntID builds a numeric identifier.
func IntID(n int64) ServiceID {
	return ServiceID{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// IsZero reports whether the identifier was never set.
func (id ServiceID) IsZero() bool {
	return len(id.raw) == 0
}

// String returns the identifier without JSON quoting.
func (id ServiceID) String() string {
	if id.IsZero() {
		return ""
	}
	var s string
	if id.raw[0] == '"' && json.Unmarshal(id.raw, &s) == nil {
		return s
	}
	return string(id.raw)
}

func (id ServiceID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *ServiceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		id.raw = nil
		return nil
	}
	switch {
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("catalog: service id: %w", err)
		}
		*id = StringID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("catalog: service id must be a number or string: %w", err)
		}
		id.raw = json.RawMessage(n.String())
	}
	return nil
}

// Service is one sellable service. Index is its position in the supplied list
// and is the key the selection is tracked by.
type Service struct {
	Index int
	ID    ServiceID
	Title string
	Price float64
}

type serviceFields struct {
	Title string          `json:"title"`
	Price json.RawMessage `json:"price"`
}

// serviceEntry accepts both the Django serializer shape ("model", "pk",
// "fields") and the widget shape ("index", "id", "fields").
type serviceEntry struct {
	Model  string        `json:"model,omitempty"`
	PK     *ServiceID    `json:"pk,omitempty"`
	Index  *int          `json:"index,omitempty"`
	ID     *ServiceID    `json:"id,omitempty"`
	Fields serviceFields `json:"fields"`
}

func (s *Service) UnmarshalJSON(b []byte) error {
	var entry serviceEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return err
	}
	switch {
	case entry.ID != nil && !entry.ID.IsZero():
		s.ID = *entry.ID
	case entry.PK != nil:
		s.ID = *entry.PK
	}
	s.Index = -1
	if entry.Index != nil {
		s.Index = *entry.Index
	}
	s.Title = entry.Fields.Title
	price, err := parsePrice(entry.Fields.Price)
	if err != nil {
		return err
	}
	s.Price = price
	return nil
}

func (s Service) MarshalJSON() ([]byte, error) {
	index := s.Index
	id := s.ID
	return json.Marshal(serviceEntry{
		Index: &index,
		ID:    &id,
		Fields: serviceFields{
			Title: s.Title,
			Price: json.RawMessage(strconv.FormatFloat(s.Price, 'f', -1, 64)),
		},
	})
}

// parsePrice accepts a JSON number or a decimal string such as "25.00".
func parsePrice(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("catalog: service price is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("catalog: service price: %w", err)
		}
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("catalog: service price %q: %w", text, err)
	}
	return price, nil
}

// DaySlots lists the bookable times of one date.
type DaySlots struct {
	Date  string
	Times []string
}

// FreeSlots maps dates to bookable times, keeping the order the dates were
// supplied in.
type FreeSlots []DaySlots

func (f *FreeSlots) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("catalog: free dates: %w", err)
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("catalog: free dates must be an object of date to times")
	}
	out := FreeSlots{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("catalog: free dates: %w", err)
		}
		date, _ := keyTok.(string)
		var times []string
		if err := dec.Decode(&times); err != nil {
			return fmt.Errorf("catalog: free dates for %s: %w", date, err)
		}
		out = append(out, DaySlots{Date: date, Times: times})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("catalog: free dates: %w", err)
	}
	*f = out
	return nil
}

func (f FreeSlots) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, day := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(day.Date)
		if err != nil {
			return nil, err
		}
		times := day.Times
		if times == nil {
			times = []string{}
		}
		value, err := json.Marshal(times)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Times returns the bookable times of date.
func (f FreeSlots) Times(date string) ([]string, bool) {
	for _, day := range f {
		if day.Date == date {
			return day.Times, true
		}
	}
	return nil, false
}

// Catalog is the immutable data a booking session is built from.
type Catalog struct {
	Services  []Service `json:"services"`
	FreeSlots FreeSlots `json:"free_dates"`
}

// Parse decodes and validates a catalog document of the form
// {"services": [...], "free_dates": {"YYYY-MM-DD": ["HH:MM:SS", ...]}}.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := cat.Normalize(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Normalize assigns positional indexes to services that were supplied
// without one and validates the result.
func (c *Catalog) Normalize() error {
	for i := range c.Services {
		if c.Services[i].Index < 0 {
			c.Services[i].Index = i
		}
	}
	return c.Validate()
}

// Validate checks the invariants a booking session relies on.
func (c *Catalog) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: catalog is nil", ErrInvalidCatalog)
	}
	for i, svc := range c.Services {
		if svc.Index != i {
			return fmt.Errorf("%w: service %d has index %d", ErrInvalidCatalog, i, svc.Index)
		}
		if svc.ID.IsZero() {
			return fmt.Errorf("%w: service %d has no id", ErrInvalidCatalog, i)
		}
		// Ids travel in a space-separated invoice payload.
		if bytes.ContainsFunc(svc.ID.raw, unicode.IsSpace) {
			return fmt.Errorf("%w: service %d id %s contains whitespace", ErrInvalidCatalog, i, svc.ID.raw)
		}
		if strings.TrimSpace(svc.Title) == "" {
			return fmt.Errorf("%w: service %d has no title", ErrInvalidCatalog, i)
		}
		if math.IsNaN(svc.Price) || math.IsInf(svc.Price, 0) || svc.Price < 0 {
			return fmt.Errorf("%w: service %d has invalid price %v", ErrInvalidCatalog, i, svc.Price)
		}
	}
	seenDates := make(map[string]struct{}, len(c.FreeSlots))
	for _, day := range c.FreeSlots {
		if _, err := time.Parse(DateLayout, day.Date); err != nil {
			return fmt.Errorf("%w: free date %q is not YYYY-MM-DD", ErrInvalidCatalog, day.Date)
		}
		if _, dup := seenDates[day.Date]; dup {
			return fmt.Errorf("%w: free date %s listed twice", ErrInvalidCatalog, day.Date)
		}
		seenDates[day.Date] = struct{}{}
		seenTimes := make(map[string]struct{}, len(day.Times))
		for _, t := range day.Times {
			if !validTime(t) {
				return fmt.Errorf("%w: time %q on %s is not HH:MM[:SS]", ErrInvalidCatalog, t, day.Date)
			}
			if _, dup := seenTimes[t]; dup {
				return fmt.Errorf("%w: time %s on %s listed twice", ErrInvalidCatalog, t, day.Date)
			}
			seenTimes[t] = struct{}{}
		}
	}
	return nil
}

func validTime(t string) bool {
	if len(t) < 5 {
		return false
	}
	_, err := time.Parse("15:04", t[:5])
	return err == nil
}

// Service returns the service at index.
func (c *Catalog) Service(index int) (Service, bool) {
	if c == nil || index < 0 || index >= len(c.Services) {
		return Service{}, false
	}
	return c.Services[index], true
}

// HasTime reports whether t is a bookable time on date.
func (c *Catalog) HasTime(date, t string) bool {
	times, ok := c.FreeSlots.Times(date)
	if !ok {
		return false
	}
	for _, candidate := range times {
		if candidate == t {
			return true
		}
	}
	return false
}
