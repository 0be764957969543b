package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}
