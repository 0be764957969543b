package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/initialization"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain/executor"
)

type runOptions struct {
	flowFile  string
	flowID    string
	input     string
	inputFile string
}

func NewRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a flow file once and print the run",
		Example: `  flowengine run --file flow.yaml --input '{"value": 5}'
  flowengine run -f flow.json --input-file seed.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			return runFlowFile(cmd.Context(), cmd.OutOrStdout(), config, *opts)
		},
	}

	cmd.Flags().StringVarP(&opts.flowFile, "file", "f", "", "Flow definition (JSON or YAML)")
	cmd.Flags().StringVar(&opts.flowID, "flow-id", "", "Flow id recorded on the run")
	cmd.Flags().StringVar(&opts.input, "input", "", "Seed input as JSON")
	cmd.Flags().StringVar(&opts.inputFile, "input-file", "", "Read the seed input from a JSON file")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")

	return cmd
}

func runFlowFile(ctx context.Context, out io.Writer, config *initialization.Config, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	flow, err := readFlowFile(opts.flowFile)
	if err != nil {
		return err
	}

	input, err := parseInput(opts.input, opts.inputFile)
	if err != nil {
		return err
	}

	container, err := initialization.NewContainer(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	run, err := container.ExecutorService.ExecuteFlow(ctx, executor.RunFlowParams{
		FlowID: opts.flowID,
		Flow:   flow,
		Input:  input,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	if _, err := fmt.Fprintln(out, string(encoded)); err != nil {
		return err
	}

	if run.Status != domain.RunStatusCompleted {
		return fmt.Errorf("run %s %s: %s", run.ExecutionID, run.Status, run.Error)
	}

	return nil
}
