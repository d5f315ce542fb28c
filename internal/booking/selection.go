package booking

// Selection tracks the services, date and time a user has picked. Service
// indexes are unique and kept in the order they were added.
type Selection struct {
	services []int
	date     string
	time     string
}

// Toggle adds index when absent and removes it when present. It reports
// whether index is selected afterwards.
func (s *Selection) Toggle(index int) bool {
	for i, existing := range s.services {
		if existing == index {
			s.services = append(s.services[:i], s.services[i+1:]...)
			return false
		}
	}
	s.services = append(s.services, index)
	return true
}

// Has reports whether the service at index is selected.
func (s Selection) Has(index int) bool {
	for _, existing := range s.services {
		if existing == index {
			return true
		}
	}
	return false
}

// Services returns the selected indexes in insertion order.
func (s Selection) Services() []int {
	out := make([]int, len(s.services))
	copy(out, s.services)
	return out
}

func (s Selection) HasServices() bool { return len(s.services) > 0 }

func (s Selection) Date() string { return s.date }

func (s Selection) Time() string { return s.time }

// SetDate selects date and clears any selected time.
func (s *Selection) SetDate(date string) {
	s.date = date
	s.time = ""
}

func (s *Selection) SetTime(t string) { s.time = t }

// ClearDateTime drops the selected date and time.
func (s *Selection) ClearDateTime() {
	s.date = ""
	s.time = ""
}

// Complete reports whether both a date and a time are selected.
func (s Selection) Complete() bool {
	return s.date != "" && s.time != ""
}

func (s Selection) clone() Selection {
	return Selection{services: s.Services(), date: s.date, time: s.time}
}
