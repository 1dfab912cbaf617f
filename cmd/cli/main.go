package main

import (
	"log"
	"os"

	"github.com/absmach/siteguard"
	"github.com/absmach/siteguard/cli"
	"github.com/absmach/siteguard/pkg/sdk"
	"github.com/spf13/cobra"
)

const defConfigPath = "siteguard.toml"

func main() {
	var (
		configPath      string
		coordinatorURL  string
		token           string
		tlsVerification bool
	)

	rootCmd := &cobra.Command{
		Use:   "siteguard-cli",
		Short: "SiteGuard CLI",
		Long:  `SiteGuard CLI is a command line interface for sites taking part in federated learning experiments.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if _, err := os.Stat(configPath); err == nil {
				cfg, err := siteguard.LoadConfig(configPath)
				if err != nil {
					log.Fatal(err)
				}
				if !cmd.Flags().Changed("coordinator-url") && cfg.Coordinator.URL != "" {
					coordinatorURL = cfg.Coordinator.URL
				}
				if !cmd.Flags().Changed("tls-verification") {
					tlsVerification = cfg.Coordinator.TLSVerification
				}
				if !cmd.Flags().Changed("token") {
					token = cfg.Site.Token
				}
			}

			s := sdk.NewSDK(sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: tlsVerification,
			})
			cli.SetSDK(s)
			cli.SetToken(token)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defConfigPath, "Config file path")
	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", cli.DefCoordinatorURL, "Coordinator URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Site token")
	rootCmd.PersistentFlags().BoolVarP(&tlsVerification, "tls-verification", "k", cli.DefTLSVerification, "Verify coordinator TLS certificate")

	rootCmd.AddCommand(cli.NewExperimentsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
