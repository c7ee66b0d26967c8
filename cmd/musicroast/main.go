package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// Local .env files are the usual way this service is configured in
	// development; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "musicroast",
		Short: "Remote-browser authentication relay for Yandex Music",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
