// File: cmd/scenarios.go
package cmd

import (
	"context"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/service"
)

func newScenariosCmd() *cobra.Command {
	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Inspect saved scenarios",
	}

	var url string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved scenarios, optionally for one URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(cmd.Context(), cmd.OutOrStdout(), url)
		},
	}
	listCmd.Flags().StringVar(&url, "url", "", "only list scenarios saved for this URL")

	scenariosCmd.AddCommand(listCmd)
	return scenariosCmd
}

func listScenarios(ctx context.Context, out io.Writer, url string) error {
	logger := observability.GetLogger().Named("scenarios")

	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}

	st, closeStore, err := service.InitializeStore(ctx, cfg.Database(), logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var saved []schemas.SavedScenario
	if url != "" {
		saved, err = st.GetSavedScenariosByURL(ctx, url)
	} else {
		saved, err = st.GetAllSavedScenarios(ctx)
	}
	if err != nil {
		return fmt.Errorf("list saved scenarios: %w", err)
	}
	if saved == nil {
		saved = []schemas.SavedScenario{}
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scenarios: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
