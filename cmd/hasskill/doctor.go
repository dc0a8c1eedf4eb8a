package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/homeassistant"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration and the Home Assistant connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.OpenWithFallback(settingsPath(), hostConfigPath())
		if err != nil {
			return err
		}
		if err := conf.Validate(); err != nil {
			return err
		}
		fmt.Printf("settings: host %s, assist_only %v, confidence threshold %.2f\n",
			conf.Host, conf.AssistOnly, conf.SearchConfidenceThreshold)

		if info, err := homeassistant.InspectToken(conf.APIKey); err != nil {
			fmt.Printf("warning: %s\n", err)
		} else if info.Expired() {
			return errors.Errorf("api_key expired %s", info.ExpiresAt.Format(time.RFC3339))
		} else if !info.ExpiresAt.IsZero() {
			fmt.Printf("token: ok, expires %s\n", info.ExpiresAt.Format("2006-01-02"))
		} else {
			fmt.Println("token: ok")
		}

		timeout := func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), conf.TimeoutDuration())
		}

		auth := homeassistant.NewTokenAuth(conf.APIKey)
		client := homeassistant.NewClient(conf.Host, auth, homeassistant.Options{
			Timeout:     conf.TimeoutDuration(),
			InsecureSSL: !conf.VerifySSL,
		})

		ctx, cancel := timeout()
		defer cancel()
		if err := client.CheckAPI(ctx); err != nil {
			return err
		}
		fmt.Println("rest api: ok")

		ctx, cancel = timeout()
		defer cancel()
		states, err := client.States(ctx)
		if err != nil {
			return err
		}
		supported := 0
		for i := range states {
			if homeassistant.DomainSupported(states[i].Domain()) {
				supported++
			}
		}
		fmt.Printf("states: %d entities, %d in supported domains\n", len(states), supported)

		socket := homeassistant.NewSocket(conf.Host, auth, !conf.VerifySSL)
		ctx, cancel = timeout()
		defer cancel()
		if err := socket.Connect(ctx); err != nil {
			fmt.Printf("warning: websocket api unavailable: %s\n", err)
			if conf.AssistOnly {
				fmt.Println("warning: assist_only needs the websocket api, devices will not be filtered")
			}
			return nil
		}
		defer socket.Close()

		ctx, cancel = timeout()
		defer cancel()
		exposed, err := socket.ExposedEntities(ctx)
		if err != nil {
			fmt.Printf("warning: listing assist entities: %s\n", err)
			return nil
		}
		fmt.Printf("websocket api: ok, %d entities exposed to assist\n", len(exposed))
		return nil
	},
}
