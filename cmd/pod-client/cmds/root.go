package cmds

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const pollInterval = 500 * time.Millisecond

var (
	serverAddress  string
	serverPort     uint16
	sealedKeysPath string
	insecureTLS    bool
	plainHTTP      bool
)

var rootCmd = &cobra.Command{
	Use:   "pod-client",
	Short: "Demo client for the pod server",
	Long: `Registers and authenticates against a pod server using a local software
enclave that stands in for the SGX pod enclave.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetOutput(os.Stdout)
	rootCmd.PersistentFlags().StringVar(&serverAddress, "address", "127.0.0.1", "Server address to connect to")
	rootCmd.PersistentFlags().Uint16Var(&serverPort, "port", 8080, "Server port to connect to")
	rootCmd.PersistentFlags().StringVar(&sealedKeysPath, "sealed-keys", "pod_data.sealed", "Path to the sealed enclave keys")
	rootCmd.PersistentFlags().BoolVarP(&insecureTLS, "insecure", "k", false, "Skip TLS certificate verification")
	rootCmd.PersistentFlags().BoolVar(&plainHTTP, "plain-http", false, "Talk plain HTTP to the server")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(authenticateCmd)
}

func baseURL() string {
	scheme := "https"
	if plainHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, serverAddress, serverPort)
}

func newClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}
	if insecureTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client, nil
}

// postJSON posts payload and decodes the server's message envelope.
func postJSON(client *http.Client, url string, payload interface{}) (int, map[string]string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	response, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = response.Body.Close() }()
	message := map[string]string{}
	if err := json.NewDecoder(response.Body).Decode(&message); err != nil {
		return response.StatusCode, nil, err
	}
	return response.StatusCode, message, nil
}

func getJSON(client *http.Client, url string) (int, map[string]string, error) {
	response, err := client.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = response.Body.Close() }()
	message := map[string]string{}
	if err := json.NewDecoder(response.Body).Decode(&message); err != nil {
		return response.StatusCode, nil, err
	}
	return response.StatusCode, message, nil
}
