// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with PROLOG_SERVICE, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("PROLOG_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/prolog-service", "$HOME/.prolog-service", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "prolog-service",
		Short: "An HTTP gateway that evaluates Prolog queries under a bounded concurrency budget",
		Long: `An HTTP gateway that evaluates Prolog queries under a bounded concurrency budget.

Each request carries its own program and query, is evaluated in an isolated
interpreter context, and receives its full answer set as JSON.`,
	}
}
