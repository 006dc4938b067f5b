package cmds

import (
	"encoding/base64"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/podattest/pod/pkg/enclave"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate <login>",
	Short: "Authenticate with the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		login := args[0]

		client, err := newClient()
		if err != nil {
			return err
		}

		code, message, err := getJSON(client, baseURL()+"/auth")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("requesting challenge: %s", message["description"])
		}
		challenge, err := base64.StdEncoding.DecodeString(message["challenge"])
		if err != nil {
			return fmt.Errorf("decoding challenge: %w", err)
		}

		var signature []byte
		err = enclave.With(sealedKeysPath, func(service enclave.Service) error {
			var err error
			signature, err = service.Sign(challenge)
			return err
		})
		if err != nil {
			return fmt.Errorf("signing challenge: %w", err)
		}

		code, message, err = postJSON(client, baseURL()+"/auth", map[string]string{
			"login":    login,
			"response": base64.StdEncoding.EncodeToString(signature),
		})
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("authentication failed: %s", message["description"])
		}

		// confirm the session is accepted by the protected endpoint
		code, message, err = getJSON(client, baseURL()+"/")
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return fmt.Errorf("session check failed: %s", message["description"])
		}
		log.Infof("Authenticated as %s", message["user_id"])
		return nil
	},
}
