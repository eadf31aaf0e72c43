package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/cli"
	"github.com/aof-gg/aofkeeper/internal/replay"
	"github.com/aof-gg/aofkeeper/internal/scheduler"
	"github.com/aof-gg/aofkeeper/internal/storage"
)

var showFragments bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|name>",
	Short: "Print the metadata, players and fragments of a replay",
	Long: `Decode a replay and print its metadata and roster.

The argument is read as a file path when it exists, otherwise as the name
of an archived replay.

Example:
  aofkeeper inspect ./replays/na-3120.aof
  aofkeeper inspect na-3120 --fragments`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rp, err := loadReplay(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cli.PrintMetadata(out, &rp.Metadata, &rp.Data)
		cli.PrintPlayers(out, rp.Players)
		if showFragments {
			cli.PrintFragments(out, "keyframes", rp.Keyframes)
			cli.PrintFragments(out, "chunks", rp.Chunks)
		}
		return nil
	},
}

func loadReplay(ctx context.Context, arg string) (*replay.Replay, error) {
	if raw, err := os.ReadFile(arg); err == nil {
		meta, data, err := aof.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		return &replay.Replay{Metadata: *meta, Data: *data}, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	h, err := openArchive(nil)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	return h.archive.Load(ctx, strings.TrimSuffix(arg, storage.Ext))
}

var validateCmd = &cobra.Command{
	Use:   "validate <file> [file...]",
	Short: "Check that replay files decode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make([]cli.FileResult, 0, len(args))
		for _, path := range args {
			results = append(results, cli.CheckFile(path))
		}

		if failures := cli.PrintResults(cmd.OutOrStdout(), results); failures > 0 {
			return fmt.Errorf("%d of %d replay files failed validation", failures, len(results))
		}
		return nil
	},
}

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived replays, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openArchive(nil)
		if err != nil {
			return err
		}
		defer h.Close()

		entries, err := h.archive.List(listLimit)
		if err != nil {
			return err
		}
		cli.PrintCatalog(cmd.OutOrStdout(), entries)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file> [name]",
	Short: "Copy a replay file into the archive",
	Long: `Decode a replay file and store it in the archive. The name defaults to
the file name without its extension.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if len(args) == 2 {
			name = args[1]
		}

		h, err := openArchive(nil)
		if err != nil {
			return err
		}
		defer h.Close()

		meta, err := h.archive.Import(cmd.Context(), name, raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (game %d, revision %d)\n", name, meta.GameID, meta.FileVersion)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a replay from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openArchive(nil)
		if err != nil {
			return err
		}
		defer h.Close()

		if err := h.archive.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run one replay cleaner pass now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openArchive(nil)
		if err != nil {
			return err
		}
		defer h.Close()

		sched := scheduler.NewScheduler(cfg.GetReplayCleaner(), h.archive, h.store, nil)
		report, err := sched.RunOnce(cmd.Context())
		if errors.Is(err, scheduler.ErrInvalidRetention) {
			return err
		}
		cli.PrintReport(cmd.OutOrStdout(), report)
		return err
	},
}

func init() {
	inspectCmd.Flags().BoolVarP(&showFragments, "fragments", "f", false, "Also list keyframes and chunks")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of replays to list (0 for all)")

	rootCmd.AddCommand(inspectCmd, validateCmd, listCmd, importCmd, deleteCmd, pruneCmd)
}
