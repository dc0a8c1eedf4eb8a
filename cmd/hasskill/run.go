package main

import (
	"github.com/spf13/cobra"

	"github.com/oscillatelabs/hasskill/services"
	"github.com/oscillatelabs/hasskill/services/announce"
	"github.com/oscillatelabs/hasskill/services/api"
	"github.com/oscillatelabs/hasskill/services/skill"
)

func registerServices() {
	services.Register(&skill.Service{})
	services.Register(&api.Service{})
	services.Register(&announce.Service{})
}

var runCmd = &cobra.Command{
	Use:   "run [service...]",
	Short: "Run the skill services",
	Long:  "Run the named services, or all of them when none are named.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := services.Setup(settingsPath(), hostConfigPath()); err != nil {
			return err
		}
		registerServices()
		if len(args) == 0 {
			args = services.Names()
		}
		services.Launch(args)
		services.Shutdown()
		return nil
	},
}
