package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON, mermaid bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the reconciler and the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}
			defer s.Close()

			if mermaid {
				fmt.Fprintln(cmd.OutOrStdout(), sessionDiagram(s))
				return nil
			}

			report := map[string]any{
				"adapter":    a.cfg.Adapter,
				"uri":        a.cfg.Location(),
				"reconciler": s.State(),
			}
			if a.cfg.Path != "" {
				report["config"] = a.cfg.Path
			}
			if st := backendState(s.Backend); st != nil {
				report["backend"] = st
			}

			plain, err := toPlain(report)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(plain)
			}
			encoder := yaml.NewEncoder(out)
			encoder.SetIndent(2)
			if err := encoder.Encode(plain); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "Output a Mermaid diagram of the components")
	return cmd
}

// toPlain round-trips v through JSON so YAML output uses the json field names.
func toPlain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
