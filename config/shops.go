package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // shop time zones resolve without a system zoneinfo

	"gopkg.in/yaml.v3"

	"line-order-intake/internal/shop"
)

// DefaultTimezone applies to shops that do not name one.
const DefaultTimezone = "Asia/Tokyo"

// ShopEntry is one shop in the shops file. Secrets are referenced by the
// name of the environment variable holding them.
type ShopEntry struct {
	ID                    string                `yaml:"id"`
	Name                  string                `yaml:"name"`
	WebhookPath           string                `yaml:"webhook_path"`
	ChannelSecretEnv      string                `yaml:"channel_secret_env"`
	ChannelAccessTokenEnv string                `yaml:"channel_access_token_env"`
	PhoneNumber           string                `yaml:"phone_number"`
	Email                 string                `yaml:"email"`
	FaxNumber             string                `yaml:"fax_number"`
	MinArrangementPrice   int                   `yaml:"min_arrangement_price"`
	Timezone              string                `yaml:"timezone"`
	WorkingHours          map[string]HoursEntry `yaml:"working_hours"`
}

// HoursEntry is one day's opening window in "HH:MM" form.
type HoursEntry struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type shopsFile struct {
	Shops []ShopEntry `yaml:"shops"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadShops reads the shops file at path and resolves each shop's secrets
// from the environment.
func LoadShops(path string) (*shop.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shops file: %w", err)
	}
	return ParseShops(data, os.Getenv)
}

// ParseShops decodes a shops document. lookup resolves secret env names.
func ParseShops(data []byte, lookup func(string) string) (*shop.Registry, error) {
	var file shopsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode shops file: %w", err)
	}
	if len(file.Shops) == 0 {
		return nil, fmt.Errorf("shops file defines no shops")
	}

	shops := make([]*shop.Config, 0, len(file.Shops))
	for _, entry := range file.Shops {
		cfg, err := entry.toConfig(lookup)
		if err != nil {
			return nil, fmt.Errorf("shop %q: %w", entry.ID, err)
		}
		shops = append(shops, cfg)
	}
	return shop.NewRegistry(shops)
}

func (e ShopEntry) toConfig(lookup func(string) string) (*shop.Config, error) {
	tz := e.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	cfg := &shop.Config{
		ID:                  e.ID,
		Name:                e.Name,
		WebhookPath:         e.WebhookPath,
		PhoneNumber:         e.PhoneNumber,
		Email:               e.Email,
		FaxNumber:           e.FaxNumber,
		MinArrangementPrice: e.MinArrangementPrice,
		Location:            loc,
		WorkingHours:        make(map[time.Weekday]shop.Hours, len(e.WorkingHours)),
	}

	if e.ChannelSecretEnv == "" || e.ChannelAccessTokenEnv == "" {
		return nil, fmt.Errorf("channel_secret_env and channel_access_token_env are required")
	}
	cfg.ChannelSecret = lookup(e.ChannelSecretEnv)
	cfg.ChannelAccessToken = lookup(e.ChannelAccessTokenEnv)
	if cfg.ChannelSecret == "" {
		return nil, fmt.Errorf("%s is not set", e.ChannelSecretEnv)
	}
	if cfg.ChannelAccessToken == "" {
		return nil, fmt.Errorf("%s is not set", e.ChannelAccessTokenEnv)
	}

	for day, hours := range e.WorkingHours {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		open, err := shop.ParseClock(hours.Open)
		if err != nil {
			return nil, fmt.Errorf("%s open: %w", day, err)
		}
		closing, err := shop.ParseClock(hours.Close)
		if err != nil {
			return nil, fmt.Errorf("%s close: %w", day, err)
		}
		if closing < open {
			return nil, fmt.Errorf("%s closes before it opens", day)
		}
		cfg.WorkingHours[wd] = shop.Hours{Open: open, Close: closing}
	}
	return cfg, nil
}
