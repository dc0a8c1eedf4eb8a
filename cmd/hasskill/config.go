package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/oscillatelabs/hasskill/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings",
	Long: `Print the settings as the skill sees them: the settings file layered
over the host-wide configuration, with defaults filled in. The api_key is
masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.OpenWithFallback(settingsPath(), hostConfigPath())
		if err != nil {
			return err
		}
		if conf.APIKey != "" {
			conf.APIKey = "(set)"
		}
		out, err := yaml.Marshal(conf)
		if err != nil {
			return err
		}
		fmt.Printf("# settings: %s\n", settingsPath())
		fmt.Printf("# host config: %s\n", hostConfigPath())
		fmt.Print(string(out))
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example settings file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.ExampleYaml)
	},
}

func init() {
	configCmd.AddCommand(configExampleCmd)
}
