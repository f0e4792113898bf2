package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vpuppets-console/config"
	"vpuppets-console/handlers"
)

const version = "1.0.0"

var configPath string

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:     "vpuppets",
		Short:   "Virtual Puppets honeypot fleet console",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console API, monitors and telemetry feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	serveCmd.Flags().String("listen", "", "HTTP listen address")
	serveCmd.Flags().Bool("mock", false, "Use the mock command executor")
	_ = v.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("mock_exec", serveCmd.Flags().Lookup("mock"))

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Sign a console bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			token, err := handlers.GenerateToken([]byte(cfg.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	rootCmd.AddCommand(serveCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
