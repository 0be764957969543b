package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <flow-file>",
		Short: "Check a flow file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := readFlowFile(args[0])
			if err != nil {
				return err
			}

			if err := domain.ValidateFlow(flow); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges, ok\n", args[0], len(flow.Nodes), len(flow.Edges))
			return err
		},
	}
}
