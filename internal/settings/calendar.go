package settings

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

// DateLayout is the format of every business date in storage and in the API.
const DateLayout = "2006-01-02"

// TimezoneKey is the system setting holding the business timezone.
const TimezoneKey = "timezone"

// zoneAliases accepts the short names the admin screens have always used.
var zoneAliases = map[string]string{
	"IST": "Asia/Kolkata",
	"UTC": "UTC",
	"EST": "America/New_York",
	"PST": "America/Los_Angeles",
	"CET": "Europe/Paris",
}

// LoadZone resolves a short alias or an IANA name.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if alias, ok := zoneAliases[strings.ToUpper(name)]; ok {
		name = alias
	}
	if name == "" {
		return nil, fmt.Errorf("empty timezone")
	}
	return time.LoadLocation(name)
}

// Calendar answers "what is today" in the café's timezone
type Calendar struct {
	db       *gorm.DB
	fallback *time.Location
	now      func() time.Time
}

// NewCalendar builds a calendar whose default zone is used when no valid setting is stored.
func NewCalendar(db *gorm.DB, defaultZone string) *Calendar {
	loc, err := LoadZone(defaultZone)
	if err != nil {
		log.Error().Err(err).Str("timezone", defaultZone).Msg("Invalid default timezone, using UTC")
		loc = time.UTC
	}
	return &Calendar{db: db, fallback: loc, now: time.Now}
}

// Location returns the configured business timezone.
func (c *Calendar) Location(ctx context.Context) *time.Location {
	var setting database.SystemSetting
	err := c.db.WithContext(ctx).Where("setting_name = ?", TimezoneKey).Take(&setting).Error
	if err != nil {
		if !database.IsNotFound(err) {
			log.Error().Err(err).Msg("Failed to read timezone setting")
		}
		return c.fallback
	}
	loc, err := LoadZone(setting.SettingValue)
	if err != nil {
		log.Warn().Err(err).Str("timezone", setting.SettingValue).Msg("Stored timezone is invalid")
		return c.fallback
	}
	return loc
}

// Now returns the current time in the business timezone.
func (c *Calendar) Now(ctx context.Context) time.Time {
	return c.now().In(c.Location(ctx))
}

// Today returns the current business date as YYYY-MM-DD.
func (c *Calendar) Today(ctx context.Context) string {
	return c.Now(ctx).Format(DateLayout)
}

// ParseDate validates a YYYY-MM-DD business date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
