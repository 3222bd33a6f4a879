package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/dhaneshkk/prolog-service/internal/build"
)

// NewVersionCommand returns the command to print the service version.
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the prolog-service version",
		Long:  "Return the prolog-service version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("prolog-service Version %s Date %s commit id %s ", build.Version, build.Date, build.Commit)
	return nil
}
