package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeOutput renders v to w in the format selected by --output.
func writeOutput(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return render(cmd.OutOrStdout(), format, v)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshal results to YAML: %w", err)
		}
		return enc.Close()
	default:
		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	}
}
