package cmds

import (
	"crypto/rand"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/podattest/pod/pkg/auth"
	"github.com/podattest/pod/pkg/config"
	"github.com/podattest/pod/pkg/ias"
	"github.com/podattest/pod/pkg/registration"
	"github.com/podattest/pod/pkg/server"
	"github.com/podattest/pod/pkg/userdb"
)

const (
	KeyFile       = "pod-server-key.pem"
	CertFile      = "pod-server.crt"
	SessionCookie = "session"
)

var rootCmd = &cobra.Command{
	Use:   "pod-server",
	Short: "Attestation backed enrollment and authentication server",
	Long: `Starts the pod server. Clients enroll with an attestation quote carrying
their public key and later authenticate via a signed challenge.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			panic(err)
		}
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration due to %v", err)
		}
		if cfg.APIKey == "" {
			log.Fatalf("refusing to start: %v", config.ErrMissingAPIKey)
		}

		if bind, err := cmd.Flags().GetString("bind-address"); err == nil && bind != "" {
			cfg.BindAddress = bind
		}
		if port, err := cmd.Flags().GetUint16("port"); err == nil && port != 0 {
			cfg.Port = port
		}
		if dbPath, err := cmd.Flags().GetString("db"); err == nil && dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		noTLS, err := cmd.Flags().GetBool("no-tls")
		if err != nil {
			panic(err)
		}

		log.Infof("Starting pod server")

		db, err := userdb.NewBoltDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("failed to open user database due to %v", err)
		}
		defer func() { _ = db.Close() }()

		hashKey, blockKey, configured, err := cfg.CookieKeys()
		if err != nil {
			log.Fatalf("invalid cookie keys: %v", err)
		}
		if !configured {
			// ephemeral keys: sessions do not survive a restart
			log.Warnf("No cookie keys configured, generating ephemeral ones")
			if _, err := rand.Read(hashKey[:]); err != nil {
				log.Fatalf("error %v", err)
			}
			if _, err := rand.Read(blockKey[:]); err != nil {
				log.Fatalf("error %v", err)
			}
		}

		tlsCert, tlsKey := cfg.TLSCert, cfg.TLSKey
		if noTLS {
			tlsCert, tlsKey = "", ""
		} else if tlsCert == "" || tlsKey == "" {
			domain, err := cmd.Flags().GetString("domain")
			if err != nil {
				panic(err)
			}
			if err := server.GenerateCertificate(domain, "Pod Server", CertFile, KeyFile); err != nil {
				log.Fatalf("failed to generate a selfsigned certificate due to %v", err)
			}
			tlsCert, tlsKey = CertFile, KeyFile
		}

		var iasOpts []ias.Option
		if cfg.VerifyURL != "" {
			iasOpts = append(iasOpts, ias.WithVerifyURL(cfg.VerifyURL))
		}
		if cfg.SigrlURL != "" {
			iasOpts = append(iasOpts, ias.WithSigrlURL(cfg.SigrlURL))
		}
		authority := ias.NewHTTPClient(cfg.APIKey, iasOpts...)

		httpServer := server.NewHTTPServer(cfg.BindAddress, cfg.Port, cfg.HTMLDir, tlsCert, tlsKey)
		server.NewAPI(httpServer.GetRouter(),
			auth.NewSessionStore(SessionCookie, hashKey, blockKey, !noTLS),
			auth.NewAuthenticator(db),
			registration.NewCoordinator(db, authority, cfg.TicketRetention))

		if err := httpServer.Start(); err != nil {
			log.Errorf("could not start the server due to %v", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetOutput(os.Stdout)
	rootCmd.Flags().StringP("domain", "d", "localhost", "The domain where the server is hosted")
	rootCmd.Flags().StringP("bind-address", "i", "", "Bind address of the server")
	rootCmd.Flags().Uint16P("port", "p", 0, "Port where the server is hosted")
	rootCmd.Flags().String("db", "", "Path to the user database file")
	rootCmd.Flags().Bool("no-tls", false, "Serve plain HTTP")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
}
