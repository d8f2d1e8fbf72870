package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/merridale/bookline/config"
	"github.com/merridale/bookline/internal/auth"
	"github.com/merridale/bookline/internal/clients/bookingapi"
	"github.com/merridale/bookline/internal/clients/caldav"
	"github.com/merridale/bookline/internal/notify"
	"github.com/merridale/bookline/internal/scheduler"
	"github.com/merridale/bookline/internal/service"
	"github.com/merridale/bookline/internal/storage"
	"github.com/merridale/bookline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init storage")
	}
	defer db.Close()

	session, err := auth.NewSession(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("restore session")
	}

	api := bookingapi.NewClient(cfg.APIBaseURL, session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !session.Authenticated() {
		if cfg.Username == "" || cfg.Password == "" {
			logger.Fatal().Msg("no stored session and no credentials configured")
		}
		if err := api.Login(ctx, cfg.Username, cfg.Password); err != nil {
			logger.Fatal().Err(err).Msg("login")
		}
		logger.Info().Msg("logged in")
	}

	var sender notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram sender disabled")
		} else {
			sender = tg
		}
	}
	center := notify.NewCenter(cfg.NotificationTTL, sender, logger)

	var sync *service.CalendarSync
	if cfg.CalDAVURL != "" {
		cdClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		sync = service.NewCalendarSync(cdClient, cfg.CalDAVPath, logger)
	}

	st := store.New()
	appointments := service.NewAppointmentService(api, st, db, center, sync,
		cfg.LocationID, cfg.Timezone, logger)
	roster := service.NewRosterService(api, st, db, center, logger)
	searcher := service.NewSearcher(api, st, cfg.SearchDebounce, logger)
	defer searcher.Flush()

	if err := appointments.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("load cached appointments")
	}
	if err := appointments.LoadGroups(ctx); err != nil {
		logger.Warn().Err(err).Msg("load groups")
	}
	if err := roster.LoadUsers(ctx); err != nil {
		logger.Warn().Err(err).Msg("load roster")
	}

	sched := scheduler.New(st, center, session, api,
		cfg.ReminderLead, cfg.MorningTime, cfg.Timezone, logger)
	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduler")
		}
	}()

	logger.Info().Msg("bookline agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	cancel()
	sched.Stop()
	logger.Info().Msg("bookline agent stopped")
}
