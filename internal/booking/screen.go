package booking

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/wolfman30/booking-widget/internal/catalog"
)

// Section is the active step of the booking flow.
type Section int

const (
	SectionServiceSelection Section = iota
	SectionDateTimeSelection
)

func (s Section) String() string {
	switch s {
	case SectionServiceSelection:
		return "service_selection"
	case SectionDateTimeSelection:
		return "date_time_selection"
	default:
		return fmt.Sprintf("section(%d)", int(s))
	}
}

func (s Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Section) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("booking: section: %w", err)
	}
	switch name {
	case "service_selection":
		*s = SectionServiceSelection
	case "date_time_selection":
		*s = SectionDateTimeSelection
	default:
		return fmt.Errorf("booking: unknown section %q", name)
	}
	return nil
}

// Main button labels for each section.
const (
	LabelSelectDateTime = "SELECT DATE AND TIME"
	LabelBook           = "BOOK"
)

// Option is one selectable entry of a rendered list. Key identifies the
// entry in events sent back to the controller.
type Option struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Detail   string `json:"detail,omitempty"`
	Selected bool   `json:"selected"`
}

// Screen is the declarative state of every panel, rendered after each
// transition.
type Screen struct {
	Section          Section  `json:"section"`
	ServicePanel     bool     `json:"service_panel"`
	DateTimePanel    bool     `json:"date_time_panel"`
	TimePanel        bool     `json:"time_panel"`
	Services         []Option `json:"services"`
	Dates            []Option `json:"dates"`
	Times            []Option `json:"times"`
	MainButtonText   string   `json:"main_button_text"`
	MainButtonActive bool     `json:"main_button_active"`
	BackButtonActive bool     `json:"back_button_active"`
}

// ServiceOptions lists every service in catalog order, keyed by index.
func ServiceOptions(services []catalog.Service, sel *Selection) []Option {
	out := make([]Option, 0, len(services))
	for _, svc := range services {
		out = append(out, Option{
			Key:      strconv.Itoa(svc.Index),
			Label:    svc.Title,
			Detail:   strconv.FormatFloat(svc.Price, 'f', 2, 64),
			Selected: sel.Has(svc.Index),
		})
	}
	return out
}

// DateOptions lists every free date in supplied order, keyed by the ISO date
// and labelled relative to now.
func DateOptions(slots catalog.FreeSlots, sel *Selection, now time.Time) []Option {
	out := make([]Option, 0, len(slots))
	for _, day := range slots {
		out = append(out, Option{
			Key:      day.Date,
			Label:    FormatDate(day.Date, now),
			Selected: day.Date == sel.Date(),
		})
	}
	return out
}

// TimeOptions lists the times of the selected date in supplied order. It is
// empty until a date is selected.
func TimeOptions(slots catalog.FreeSlots, sel *Selection) []Option {
	if sel.Date() == "" {
		return []Option{}
	}
	times, _ := slots.Times(sel.Date())
	out := make([]Option, 0, len(times))
	for _, t := range times {
		out = append(out, Option{
			Key:      t,
			Label:    FormatTime(t),
			Selected: t == sel.Time(),
		})
	}
	return out
}
