package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"tab-inspector/internal/bootstrap"
	"tab-inspector/internal/monitor"
	"tab-inspector/internal/usecase"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const commandTimeout = time.Minute

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Track tabs and snapshot them as they change (default)",
	RunE:  runWatch,
}

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List the tabs that would be tracked",
	RunE:  runTabs,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <tab-id>",
	Short: "Snapshot one tab and print its element tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	tabsCmd.Flags().Bool("json", false, "print JSON")
	snapshotCmd.Flags().Bool("json", false, "print the full snapshot as JSON")
	snapshotCmd.Flags().Bool("markdown", false, "print the page markdown instead of the element tree")
	snapshotCmd.Flags().Bool("selectors", false, "print the indexed elements instead of the element tree")
}

func runWatch(*cobra.Command, []string) error {
	app := bootstrap.NewApp()
	if err := app.Err(); err != nil {
		return err
	}

	app.Run()

	return nil
}

func runTabs(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	return withEngine(cmd.Context(), func(ctx context.Context, detector *monitor.Detector, _ *usecase.Service) error {
		refs := detector.References()

		if asJSON {
			return writeJSON(refs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tTITLE")

		for _, r := range refs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.URL, r.Title)
		}

		return w.Flush()
	})
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	asMarkdown, _ := cmd.Flags().GetBool("markdown")
	asSelectors, _ := cmd.Flags().GetBool("selectors")

	return withEngine(cmd.Context(), func(ctx context.Context, _ *monitor.Detector, service *usecase.Service) error {
		snap, err := service.Tabs.Snapshot(ctx, args[0])
		if err != nil {
			return err
		}

		switch {
		case asJSON:
			return writeJSON(snap)
		case asMarkdown:
			_, err = fmt.Fprintln(os.Stdout, snap.Markdown)
		case asSelectors:
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tXPATH\tELEMENT\tFILE INPUT")

			for _, sel := range snap.Selectors {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", sel.Index, sel.XPath, sel.Element, sel.FileInput)
			}

			err = w.Flush()
		default:
			_, err = fmt.Fprintln(os.Stdout, snap.DOM)
		}

		return err
	})
}

// withEngine starts the engine without the poll loop, seeds the tab set
// once and runs fn.
func withEngine(parent context.Context, fn func(ctx context.Context, detector *monitor.Detector, service *usecase.Service) error) error {
	var (
		detector *monitor.Detector
		service  *usecase.Service
	)

	app := bootstrap.NewCommandApp(fx.Populate(&detector, &service))
	if err := app.Err(); err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	if err := detector.Start(ctx); err != nil {
		return err
	}

	return fn(ctx, detector, service)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
