package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/job"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded job outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("job history is disabled, set history.db_path")
			}
			defer store.Close()

			snaps, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(snaps)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list")
	return cmd
}

func printHistory(snaps []job.Snapshot) {
	if len(snaps) == 0 {
		fmt.Println("No jobs recorded")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tKIND\tSTATUS\tUNITS\tDURATION\tSOURCE\tERROR")
	for _, s := range snaps {
		finished := "-"
		if s.FinishedAt != nil {
			finished = s.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		units := fmt.Sprintf("%d/%d", s.Counts[domain.UnitDone], s.Total)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			finished, s.Kind, s.Status, units, s.Duration.Round(time.Millisecond), s.Source, s.Error)
	}
	tw.Flush()
}
