// Package history implements the history command.
package history

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/history"
)

// Command creates the history command with its list, latest and delete
// subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored detections",
	}
	cmd.AddCommand(listCommand(settings), latestCommand(settings), deleteCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var user string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's detections, newest first",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store, err := history.Open(settings.History)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); err == nil {
					err = cerr
				}
			}()

			records, err := store.List(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No detections recorded for %s\n", user)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tDISEASE\tTURNS\tADVICE")
			for i := range records {
				rec := &records[i]
				turns, terr := rec.Turns()
				if terr != nil {
					turns = nil
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Label, len(turns), rec.Advice)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User email to list detections for")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records, 0 lists all")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func latestCommand(settings *conf.Settings) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show a user's most recent detection with its chat transcript",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store, err := history.Open(settings.History)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); err == nil {
					err = cerr
				}
			}()

			rec, err := store.Latest(cmd.Context(), user)
			if err != nil {
				return err
			}
			turns, err := rec.Turns()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %d\n", rec.ID)
			fmt.Fprintf(out, "Time:     %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Disease:  %s\n", rec.Label)
			fmt.Fprintf(out, "Image:    %s\n", rec.ImagePath)
			fmt.Fprintf(out, "Advice:\n%s\n", rec.Advice)
			for _, turn := range turns {
				fmt.Fprintf(out, "%s: %s\n", turn.Sender, turn.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User email to show the latest detection for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a stored detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[0], err)
			}
			store, err := history.Open(settings.History)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); err == nil {
					err = cerr
				}
			}()

			if err := store.Delete(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Printf("Deleted detection %d\n", id)
			return nil
		},
	}
}
