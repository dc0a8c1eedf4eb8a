package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/homeassistant"
	"github.com/oscillatelabs/hasskill/util"
)

var callCmd = &cobra.Command{
	Use:   "call <domain.service> [key=value ...]",
	Short: "Call a Home Assistant service directly",
	Long: `Call a Home Assistant service over the REST API, without a running
skill. Values parse as numbers and booleans where possible.

  hasskill call light.turn_on entity_id=light.kitchen brightness=128
  hasskill call switch.toggle entity_id=switch.fan`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, fields := util.ParseArgs(args)
		parts := strings.SplitN(command, ".", 2)
		if len(parts) != 2 {
			return errors.Errorf("expected domain.service, got %q", command)
		}

		conf, err := config.OpenWithFallback(settingsPath(), hostConfigPath())
		if err != nil {
			return err
		}
		if err := conf.Validate(); err != nil {
			return err
		}
		client := homeassistant.NewClient(conf.Host, homeassistant.NewTokenAuth(conf.APIKey),
			homeassistant.Options{
				Timeout:     conf.TimeoutDuration(),
				InsecureSSL: !conf.VerifySSL,
			})

		ctx, cancel := context.WithTimeout(context.Background(), conf.TimeoutDuration())
		defer cancel()
		changed, err := client.CallService(ctx, parts[0], parts[1], fields)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			fmt.Println("ok, no state changes")
			return nil
		}
		for i := range changed {
			fmt.Printf("%s: %s\n", changed[i].EntityID, changed[i].State)
		}
		return nil
	},
}
