package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"formica/internal/config"
)

func newParamsCmd() *cobra.Command {
	var (
		configPath string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the learning parameters a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.LoadFromPath(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if err := cfg.Params.Validate(); err != nil {
				return fmt.Errorf("invalid params: %w", err)
			}

			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = yaml.Marshal(cfg.Params)
			case "json":
				data, err = json.MarshalIndent(cfg.Params, "", "  ")
				data = append(data, '\n')
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "run config file (yaml or json)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml|json")
	return cmd
}
