package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glebk/wellness-bot/internal/advisor"
	"github.com/glebk/wellness-bot/internal/bot"
	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/config"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/httpapi"
	"github.com/glebk/wellness-bot/internal/monitor"
	"github.com/glebk/wellness-bot/internal/repository/sqlite"
	"github.com/glebk/wellness-bot/internal/service"
	"github.com/glebk/wellness-bot/internal/slotfinder"
)

// app holds the wiring shared by every command
type app struct {
	cfg      *config.Config
	db       *sqlite.Database
	clock    clock.Clock
	sessions *service.SessionService
	users    *service.UserService
	planner  *slotfinder.Planner
	meetings *sqlite.MeetingRepository
	activity *sqlite.ActivityRepository
}

// openApp opens the database and builds the services.
// status may be nil when nothing shows a presence indicator.
func openApp(cfg *config.Config, status domain.StatusSync) (*app, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	log.Printf("Database initialized at: %s", cfg.DatabasePath)

	clk := clock.System{}
	a := &app{
		cfg:      cfg,
		db:       db,
		clock:    clk,
		meetings: sqlite.NewMeetingRepository(db),
		activity: sqlite.NewActivityRepository(db),
	}
	a.sessions = service.NewSessionService(
		sqlite.NewSessionRepository(db),
		sqlite.NewSuggestionRepository(db, clk),
		status,
		clk,
		service.Config{},
	)
	a.users = service.NewUserService(
		sqlite.NewUserRepository(db),
		cfg.WorkingHours.Location,
		cfg.WorkingHours.StartHour,
		cfg.WorkingHours.EndHour,
	)

	var adv slotfinder.Advisor
	if cfg.AdvisorURL != "" {
		c := advisor.New(cfg.AdvisorURL, cfg.AdvisorTimeout)
		c.APIKey = cfg.AdvisorAPIKey
		adv = c
		log.Printf("Slot advisor enabled at %s", cfg.AdvisorURL)
	}
	a.planner = slotfinder.NewPlanner(adv, cfg.AdvisorTimeout)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func runCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram bot, break monitor and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireToken(); err != nil {
				return err
			}

			api, err := bot.NewAPI(cfg.TelegramToken)
			if err != nil {
				return err
			}

			a, err := openApp(cfg, bot.NewStatusSync(api))
			if err != nil {
				return err
			}
			defer a.Close()

			mcfg := monitor.DefaultConfig()
			mcfg.Interval = cfg.MonitorInterval
			mcfg.WorkStartHour = cfg.WorkingHours.StartHour
			mcfg.WorkEndHour = cfg.WorkingHours.EndHour
			mon := monitor.New(monitor.Deps{
				Sessions: a.sessions,
				Profiles: a.users,
				Meetings: a.meetings,
				Activity: a.activity,
				Notifier: bot.NewNotifier(api),
				Clock:    a.clock,
			}, mcfg)
			defer mon.Stop()

			telegramBot := bot.New(api, bot.Deps{
				Sessions: a.sessions,
				Users:    a.users,
				Monitor:  mon,
				Planner:  a.planner,
				Meetings: a.meetings,
				Clock:    a.clock,
			}, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr: cfg.HTTPAddr,
				Handler: httpapi.New(httpapi.Config{
					Sessions: a.sessions,
					Users:    a.users,
					Planner:  a.planner,
					Meetings: a.meetings,
					Clock:    a.clock,
				}),
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			go func() {
				log.Printf("HTTP API listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("HTTP API stopped: %v", err)
				}
			}()

			log.Println("Bot started. Press Ctrl+C to stop.")
			err = telegramBot.Start(ctx)
			log.Println("Shutting down gracefully...")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP API listen address (env WELLNESS_HTTP_ADDR)")
	_ = viper.BindPFlag(config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))
	return cmd
}
