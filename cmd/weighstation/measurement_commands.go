package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weighstation/internal/measurements"
	"weighstation/internal/snapshot"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var page int
	var perPage int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored measurements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if page < 1 {
				page = 1
			}
			if perPage <= 0 {
				perPage = cfg.Web.PerPage
			}
			return ctx.withStore(cmd.Context(), func(store measurements.Store) error {
				items, err := store.List(cmd.Context(), (page-1)*perPage, perPage)
				if err != nil {
					return err
				}
				total, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					if items == nil {
						items = []measurements.Measurement{}
					}
					return writeJSON(cmd, map[string]any{
						"items":    items,
						"page":     page,
						"per_page": perPage,
						"total":    total,
					})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No measurements on this page")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, m := range items {
					rows = append(rows, []string{
						strconv.FormatInt(m.ID, 10),
						strconv.Itoa(m.Weight),
						m.Timestamp,
						dashIfEmpty(m.Machine),
						dashIfEmpty(m.Image),
					})
				}
				pages := (total + perPage - 1) / perPage
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Weight (kg)", "Timestamp", "Machine", "Snapshot"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
					fmt.Sprintf("page %d of %d, %d total", page, pages, total),
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "Rows per page (default web.per_page)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var keepSnapshot bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a measurement and its snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid measurement id %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store measurements.Store) error {
				m, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if m == nil {
					return fmt.Errorf("measurement %d not found", id)
				}
				removed, err := store.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("measurement %d not found", id)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Deleted measurement %d (%d kg)\n", id, m.Weight)
				if m.HasImage() && cfg.Web.DeleteSnapshots && !keepSnapshot {
					if err := snapshot.Remove(cfg.Paths.SnapshotDir, m.Image); err != nil && !errors.Is(err, snapshot.ErrInvalidName) {
						return fmt.Errorf("remove snapshot %s: %w", m.Image, err)
					}
					fmt.Fprintf(out, "Removed snapshot %s\n", m.Image)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepSnapshot, "keep-snapshot", false, "Leave the snapshot file on disk")
	return cmd
}

func newMachinesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "machines",
		Short: "List known machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store measurements.Store) error {
				machines, err := store.Machines(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					if machines == nil {
						machines = []measurements.Machine{}
					}
					return writeJSON(cmd, machines)
				}
				rows := make([][]string, 0, len(machines))
				for _, m := range machines {
					rows = append(rows, []string{strconv.FormatInt(m.ID, 10), m.Name})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name"}, rows, []columnAlignment{alignRight, alignLeft}, ""))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
