package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glebk/wellness-bot/internal/calendar"
	"github.com/glebk/wellness-bot/internal/config"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/slotfinder"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

func withApp(fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func slotsCmd() *cobra.Command {
	var (
		userID   int64
		minutes  int
		activity string
		prefer   string
		date     string
		at       string
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Find free slots for an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ctx := cmd.Context()
				user, err := a.users.GetUser(ctx, userID)
				if err != nil {
					return err
				}
				loc := a.users.Location(user)
				startHour, endHour := a.users.WorkHours(user)

				now, err := referenceTime(a.clock.Now().In(loc), date, at)
				if err != nil {
					return err
				}

				meetings, err := a.meetings.GetMeetingsForUserOnDate(ctx, userID, now)
				if err != nil {
					return err
				}
				result, err := a.planner.Plan(ctx, meetings, domain.ActivityRequest{
					DurationMinutes: minutes,
					ActivityType:    domain.ActivityType(activity),
					TimePreference:  domain.TimePreference(prefer),
					Now:             now,
					WorkStart:       timewindow.On(now, startHour, 0),
					WorkEnd:         timewindow.On(now, endHour, 0),
				})
				if err != nil {
					return err
				}

				if viper.GetBool("json") {
					return printJSON(os.Stdout, result)
				}
				renderSlots(os.Stdout, result)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id whose calendar to use")
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 30, "activity length in minutes")
	cmd.Flags().StringVarP(&activity, "activity", "a", string(domain.ActivityGeneral), "walk, lunch, coffee, stretch, meditation, break or general")
	cmd.Flags().StringVarP(&prefer, "prefer", "p", string(domain.PreferAnytime), "morning, afternoon or anytime")
	cmd.Flags().StringVar(&date, "date", "", "day to search, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&at, "at", "", "search from this time of day instead of now")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// referenceTime moves now to another day and/or time of day
func referenceTime(now time.Time, date, at string) (time.Time, error) {
	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: date must look like 2024-03-04", domain.ErrInvalidRequest)
		}
		// a different day is searched from its start
		now = day
	}
	if at != "" {
		return timewindow.ParseTimeOfDay(at, now)
	}
	return now, nil
}

func renderSlots(w io.Writer, result slotfinder.Result) {
	if len(result.Slots) == 0 {
		fmt.Fprintln(w, result.Summary())
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Time", "Kind", "Confidence", "Description"})
	for i, slot := range result.Slots {
		tw.AppendRow(table.Row{
			i + 1,
			timewindow.FormatRange(slot.Start, slot.End),
			slot.Kind,
			fmt.Sprintf("%.1f", slot.Confidence),
			slot.Description,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "source", result.Source})
	tw.Render()

	for _, insight := range result.Insights {
		fmt.Fprintln(w, "- "+insight)
	}
}

func meetingsCmd() *cobra.Command {
	m := &cobra.Command{Use: "meetings", Short: "Manage calendar meetings"}
	m.AddCommand(meetingsImportCmd())
	return m
}

func meetingsImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import meetings from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(func(a *app) error {
				userID, meetings, err := calendar.Parse(f, a.cfg.WorkingHours.Location)
				if err != nil {
					return err
				}
				n, err := calendar.Import(cmd.Context(), a.meetings, meetings)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d meetings for user %d\n", n, userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with meetings")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sessionsCmd() *cobra.Command {
	s := &cobra.Command{Use: "sessions", Short: "Inspect focus and break sessions"}
	s.AddCommand(sessionsListCmd())
	return s
}

func sessionsListCmd() *cobra.Command {
	var (
		userID int64
		days   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				since := a.clock.Now().AddDate(0, 0, -days)
				sessions, err := a.sessions.ListSessions(cmd.Context(), userID, since)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(os.Stdout, sessions)
				}
				renderSessions(os.Stdout, sessions, a.cfg.WorkingHours.Location)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().IntVar(&days, "days", 7, "how many days back to look")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderSessions(w io.Writer, sessions []*domain.Session, loc *time.Location) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Kind", "Status", "Start", "Minutes", "Synced"})
	for _, s := range sessions {
		tw.AppendRow(table.Row{
			s.ID,
			s.Kind,
			s.Status,
			s.StartTime.In(loc).Format("2006-01-02 15:04"),
			s.DurationMinutes,
			s.StatusSynced,
		})
	}
	tw.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
