package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
)

func runCheckCmd(cmd *cobra.Command, args []string) error {
	opts, err := config.Parse(optionsArg(args))
	if err != nil {
		return err
	}

	for _, note := range opts.Notes {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", note)
	}

	out, err := opts.YAML()
	if err != nil {
		return fmt.Errorf("failed to render options: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
