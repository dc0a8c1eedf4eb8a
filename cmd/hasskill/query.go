package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/util"
)

var queryCmd = &cobra.Command{
	Use:   "query <service>.<verb> [key=value ...]",
	Short: "Query a running skill over its HTTP API",
	Long: `Query a running instance through its api service. HASSKILL_API
overrides the default of http://127.0.0.1:<api.port>.

  hasskill query skill.get.device device="kitchen light"
  hasskill query skill.get.devices`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parts := strings.SplitN(args[0], ".", 2)
		if len(parts) != 2 {
			return errors.Errorf("expected service.verb, got %q", args[0])
		}
		params := url.Values{}
		for key, value := range util.KeywordArgs(args[1:]) {
			if key == "" {
				return errors.Errorf("expected key=value, got %q", value)
			}
			params.Set(key, value)
		}

		base, err := apiBase()
		if err != nil {
			return err
		}
		uri := fmt.Sprintf("%s/query/%s/%s", base, parts[0], parts[1])
		if len(params) > 0 {
			uri += "?" + params.Encode()
		}
		resp, err := http.Get(uri)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return errors.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		_, err = io.Copy(os.Stdout, resp.Body)
		return err
	},
}

// apiBase is the address of a running api service. HASSKILL_API overrides
// the port from the settings.
func apiBase() (string, error) {
	if api := os.Getenv("HASSKILL_API"); api != "" {
		return strings.TrimSuffix(api, "/"), nil
	}
	conf, err := config.OpenWithFallback(settingsPath(), hostConfigPath())
	if err != nil {
		return "", err
	}
	if conf.API.Port == 0 {
		return "", errors.New("api.port is not configured, set HASSKILL_API or api.port")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", conf.API.Port), nil
}
