package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glebk/wellness-bot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "wellness-bot",
	Short: "Workplace wellness assistant",
	Long: `wellness-bot watches your meeting calendar and nudges you toward focus sessions
and breaks over Telegram.

- run: start the Telegram bot, the break monitor and the HTTP API
- slots: find free slots for an activity on a given day
- meetings import: load meetings from a YAML file
- sessions list: show recent focus and break sessions`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (env WELLNESS_DATABASE_PATH)")
	rootCmd.PersistentFlags().String("timezone", "", "default IANA time zone (env WELLNESS_TIMEZONE)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag(config.KeyDatabasePath, rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag(config.KeyTimezone, rootCmd.PersistentFlags().Lookup("timezone"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(meetingsCmd())
	rootCmd.AddCommand(sessionsCmd())
}
