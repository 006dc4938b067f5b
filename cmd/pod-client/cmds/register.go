package cmds

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/podattest/pod/pkg/enclave"
	"github.com/podattest/pod/pkg/quote"
)

var registerCmd = &cobra.Command{
	Use:   "register <login> <spid>",
	Short: "Register with the service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		login, spid := args[0], args[1]

		var q quote.Quote
		err := enclave.With(sealedKeysPath, func(service enclave.Service) error {
			var err error
			q, err = service.GetQuote(spid, enclave.Unlinkable)
			return err
		})
		if err != nil {
			return fmt.Errorf("obtaining quote: %w", err)
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		code, message, err := postJSON(client, baseURL()+"/register", map[string]interface{}{
			"login": login,
			"quote": q,
		})
		if err != nil {
			return err
		}
		if code != http.StatusAccepted {
			return fmt.Errorf("registration rejected: %s", message["description"])
		}

		statusURL := baseURL() + message["status_url"]
		log.Infof("Registration accepted, polling %s", statusURL)

		for {
			code, message, err := getJSON(client, statusURL)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("registration failed: %s", message["description"])
			}
			if message["description"] != "in progress" {
				log.Infof("Registration of %s complete", login)
				return nil
			}
			time.Sleep(pollInterval)
		}
	},
}
