package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// Resume drives a single transfer as far as it can go and prints the result.
func Resume(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [transfer-id]",
		Short: "Resume one transfer and print its state",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s resume 1f0c9a2e-3c1b-4f7e-9a55-0d2e6c1b7a10 --config %s`, appName, defaultConfigPath)),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}

			svc, err := buildApp(cmd.Context(), a.Config, a.Logger, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			rec, resumeErr := svc.orchestrator.Resume(cmd.Context(), args[0])
			if rec != nil {
				var out []byte
				if jsn {
					out, err = json.Marshal(rec)
				} else {
					out, err = yaml.Marshal(rec)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return resumeErr
		},
	}
	return addJsonFlag(cmd)
}
