package shop

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnknownShop is returned by Registry lookups for an unregistered shop.
var ErrUnknownShop = errors.New("unknown shop")

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Hours is one day's opening window.
type Hours struct {
	Open  Clock
	Close Clock
}

// Config is the static description of one LINE storefront.
type Config struct {
	ID                  string
	Name                string
	WebhookPath         string
	ChannelSecret       string
	ChannelAccessToken  string
	PhoneNumber         string
	Email               string
	FaxNumber           string
	MinArrangementPrice int
	Location            *time.Location
	// WorkingHours has no entry for days the shop is closed.
	WorkingHours map[time.Weekday]Hours
}

// Loc returns the shop time zone, UTC when unset.
func (c *Config) Loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// IsOutsideWorkingHours reports whether t falls outside the shop's opening
// window for t's weekday in the shop time zone. Both ends of the window are
// inside. A weekday without an entry is closed all day.
func (c *Config) IsOutsideWorkingHours(t time.Time) bool {
	local := t.In(c.Loc())
	hours, ok := c.WorkingHours[local.Weekday()]
	if !ok {
		return true
	}

	// Wall-clock comparison, so daylight-saving days keep their window.
	now := Clock(local.Hour()*60 + local.Minute())
	if now < hours.Open || now > hours.Close {
		return true
	}
	// Anything past the closing minute is after closing.
	return now == hours.Close && (local.Second() > 0 || local.Nanosecond() > 0)
}

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "日曜日",
	time.Monday:    "月曜日",
	time.Tuesday:   "火曜日",
	time.Wednesday: "水曜日",
	time.Thursday:  "木曜日",
	time.Friday:    "金曜日",
	time.Saturday:  "土曜日",
}

// ScheduleLines renders the weekly table, Monday first, one line per day.
func (c *Config) ScheduleLines() []string {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	lines := make([]string, 0, len(days))
	for _, d := range days {
		h, ok := c.WorkingHours[d]
		if !ok {
			lines = append(lines, fmt.Sprintf("%s: 定休日", weekdayNames[d]))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s〜%s", weekdayNames[d], h.Open, h.Close))
	}
	return lines
}

// Registry indexes shops by id and by webhook path.
type Registry struct {
	byID   map[string]*Config
	byPath map[string]*Config
}

// NewRegistry builds a registry, rejecting duplicate ids or webhook paths.
func NewRegistry(shops []*Config) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]*Config, len(shops)),
		byPath: make(map[string]*Config, len(shops)),
	}
	for _, s := range shops {
		if s == nil {
			continue
		}
		if s.ID == "" || s.WebhookPath == "" {
			return nil, fmt.Errorf("shop %q: id and webhook path are required", s.Name)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate shop id %q", s.ID)
		}
		path := strings.Trim(s.WebhookPath, "/")
		if _, dup := r.byPath[path]; dup {
			return nil, fmt.Errorf("duplicate webhook path %q", s.WebhookPath)
		}
		r.byID[s.ID] = s
		r.byPath[path] = s
	}
	return r, nil
}

// ByPath resolves the shop served at the given webhook path segment.
func (r *Registry) ByPath(path string) (*Config, error) {
	s, ok := r.byPath[strings.Trim(path, "/")]
	if !ok {
		return nil, fmt.Errorf("%w: path %q", ErrUnknownShop, path)
	}
	return s, nil
}

// ByID resolves a shop by its LINE basic id.
func (r *Registry) ByID(id string) (*Config, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %q", ErrUnknownShop, id)
	}
	return s, nil
}

// All returns the shops ordered by id.
func (r *Registry) All() []*Config {
	out := make([]*Config, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
