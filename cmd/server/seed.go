package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/payapp-engine/api"
	"github.com/warp/payapp-engine/factory"
)

var seedScenario string

var seedCmd = &cobra.Command{
	Use:   "seed [template.json ...]",
	Short: "Create applications from JSON templates or load a demo scenario",
	Long: `Creates one draft application per template file (see factory/template.go
for the format), or with --scenario resets the store and loads a demo scenario.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedScenario == "" && len(args) == 0 {
			return errors.New("give template files or --scenario")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		rt, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		out := cmd.OutOrStdout()

		if seedScenario != "" {
			handler := api.NewHandler(rt.service, rt.store, rt.log)
			ids, err := handler.LoadScenarioByID(ctx, seedScenario)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		templates := factory.NewTemplateFactory()
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			in, err := templates.ParseTemplate(string(data))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			app, err := rt.service.CreateApplication(ctx, in)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "%s\t%s #%d\tdue %s\n",
				app.ID, app.ProjectID, app.Summary.ApplicationNumber, app.Summary.CurrentPaymentDue)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedScenario, "scenario", "", "demo scenario id (resets the store)")
}
