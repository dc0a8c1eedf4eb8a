// hasskill connects an OVOS/Neon voice assistant to Home Assistant. It
// registers voice intents with the host's message bus, resolves spoken
// device names against the Home Assistant API and carries out the commands.
//
// Usage:
//
//	hasskill run [service...]        run the skill (default: all services)
//	hasskill doctor                  check configuration and connectivity
//	hasskill call SERVICE [k=v...]   call a Home Assistant service directly
//	hasskill query VERB [k=v...]     query a running skill over its API
//	hasskill config [example]        print the effective or example settings
//	hasskill version                 print the version
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/services"
)

var rootCmd = &cobra.Command{
	Use:   "hasskill",
	Short: "Home Assistant skill for OVOS/Neon voice assistants",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hasskill", services.Version)
	},
}

func settingsPath() string {
	return viper.GetString("config")
}

func hostConfigPath() string {
	return viper.GetString("host-config")
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.ConfigPath("hasskill.yml"), "settings file")
	rootCmd.PersistentFlags().String("host-config", config.HostConfigPath(), "host-wide configuration file, used when the settings lack credentials")
	rootCmd.PersistentFlags().BoolP("debug", "v", false, "debug logging")
	viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd, doctorCmd, callCmd, queryCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
