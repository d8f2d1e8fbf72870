package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL   string
	Username     string
	Password     string
	LocationID   string
	DatabasePath string
	Timezone     *time.Location

	SearchDebounce  time.Duration
	NotificationTTL time.Duration
	ReminderLead    time.Duration
	MorningTime     string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVPath     string

	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

func Load() (*Config, error) {
	// Local development keeps settings in a .env file; absence is fine.
	_ = godotenv.Load()

	apiURL := os.Getenv("BOOKLINE_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("BOOKLINE_API_URL is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bookline.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "America/Chicago"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	debounce, err := durationEnv("SEARCH_DEBOUNCE", 300*time.Millisecond)
	if err != nil {
		return nil, err
	}
	ttl, err := durationEnv("NOTIFICATION_TTL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	lead, err := durationEnv("REMINDER_LEAD", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	morningTime := os.Getenv("MORNING_TIME")
	if morningTime == "" {
		morningTime = "09:00"
	}

	var chatID int64
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		chatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number: %w", err)
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		APIBaseURL:      apiURL,
		Username:        os.Getenv("BOOKLINE_USERNAME"),
		Password:        os.Getenv("BOOKLINE_PASSWORD"),
		LocationID:      os.Getenv("BOOKLINE_LOCATION_ID"),
		DatabasePath:    dbPath,
		Timezone:        tz,
		SearchDebounce:  debounce,
		NotificationTTL: ttl,
		ReminderLead:    lead,
		MorningTime:     morningTime,
		CalDAVURL:       os.Getenv("CALDAV_URL"),
		CalDAVUsername:  os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:  os.Getenv("CALDAV_PASSWORD"),
		CalDAVPath:      os.Getenv("CALDAV_CALENDAR_PATH"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:  chatID,
		LogLevel:        logLevel,
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
