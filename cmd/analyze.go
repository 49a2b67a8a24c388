package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/geonorge/dokanalyse/internal/orchestrator"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [request.json]",
	Short: "Run one analysis request and print the result",
	Long:  "Reads an analysis request (inputGeometry, requestedBuffer, context, theme, ...) from a file or stdin and writes the response as JSON to stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var err error

		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
			if err != nil {
				return eris.Wrapf(err, "read %s", args[0])
			}
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
		}

		var request orchestrator.Request
		if err := json.Unmarshal(raw, &request); err != nil {
			return eris.Wrap(err, "decode request")
		}

		svcs, err := initServices(cfg, nil)
		if err != nil {
			return err
		}

		resp, err := svcs.orchestrator.Run(cmd.Context(), &request, "")
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
