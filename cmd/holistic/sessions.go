package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a recorded session and its frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Sessions().Delete(args[0]); err != nil {
			return fmt.Errorf("delete session %s: %w", args[0], err)
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func listSessions() error {
	sessions, err := db.Sessions().List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tMODE\tFRAMES\tSTARTED\tDURATION")
	fmt.Fprintln(w, "--\t------\t----\t------\t-------\t--------")

	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Source, s.Mode, s.Frames, s.StartedAt.Local().Format("2006-01-02 15:04"), duration)
	}
	return w.Flush()
}
