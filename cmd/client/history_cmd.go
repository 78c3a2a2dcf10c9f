package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openmined/treesync/internal/client/journal"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync rounds from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return errors.New("sync journal is disabled")
			}
			cmd.SilenceUsage = true

			limit, _ := cmd.Flags().GetInt("limit")

			j := journal.New(cfg.JournalPath)
			if err := j.Open(); err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no sync rounds recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries))
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "rounds to show")
	return cmd
}

func renderHistory(entries []*journal.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		kind := e.Kind
		if e.Fallback {
			kind += "*"
		}
		result := shortDigest(e.ResultDigest)
		if e.Failed() {
			result = e.Error
		}
		rows = append(rows, []string{
			humanize.Time(e.StartedAt),
			kind,
			strconv.Itoa(e.Added),
			strconv.Itoa(e.Modified),
			strconv.Itoa(e.Deleted),
			humanize.Comma(int64(e.FileCount)),
			e.Duration.String(),
			result,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("WHEN", "KIND", "ADDED", "MODIFIED", "DELETED", "FILES", "TOOK", "RESULT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(entries) && entries[row].Failed():
				return failedStyle
			}
			return cellStyle
		}).
		Render()
}
