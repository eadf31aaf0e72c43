// Package cli implements the interactive console of a running aofkeeper
// and the table renderers shared with the one-shot commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/scheduler"
	"github.com/aof-gg/aofkeeper/internal/storage"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// CLI provides an interactive command-line interface over the archive.
type CLI struct {
	cfg      *config.Config
	archive  *storage.Archive
	sched    *scheduler.Scheduler
	eventBus events.Emitter
	in       io.Reader
	out      io.Writer
	logger   zerolog.Logger
}

// NewCLI creates a new CLI handler reading commands from in and writing
// output to out. cfg may be nil, which disables the set command.
func NewCLI(cfg *config.Config, archive *storage.Archive, sched *scheduler.Scheduler, eventBus events.Emitter, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		cfg:      cfg,
		archive:  archive,
		sched:    sched,
		eventBus: eventBus,
		in:       in,
		out:      out,
		logger:   util.ComponentLogger("cli"),
	}
}

// Start begins the interactive CLI loop. It returns when ctx is cancelled
// or the input is exhausted.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\naofkeeper console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn().Err(err).Msg("console input failed")
		}
	}()

	for {
		fmt.Fprint(c.out, "aofkeeper> ")

		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.cmdStatus()
	case "list", "ls":
		return c.cmdList(args)
	case "inspect", "i":
		return c.cmdInspect(ctx, args)
	case "keyframes", "chunks":
		return c.cmdFragments(ctx, cmd, args)
	case "delete", "rm":
		return c.cmdDelete(ctx, args)
	case "prune":
		return c.cmdPrune(ctx)
	case "set":
		return c.cmdSet(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down aofkeeper...")
		if c.eventBus != nil {
			c.eventBus.Emit(ctx, events.Event{
				Type:   events.EventShutdown,
				Source: "cli",
			})
		}
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  status              Show archive size
  list [n]            List the newest n replays (all when omitted)
  inspect <name>      Show metadata and players of a replay
  keyframes <name>    List the keyframes of a replay
  chunks <name>       List the chunks of a replay
  delete <name>       Delete a replay
  prune               Run the replay cleaner now
  set <section> <key> <value>
                      Change a config value and save it (applies on restart)
  quit                Shut down aofkeeper
  help                Show this help message`)
}

func (c *CLI) cmdStatus() error {
	count, total, err := c.archive.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d replays, %s\n", count, util.FormatBytes(total))
	return nil
}

func (c *CLI) cmdList(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	entries, err := c.archive.List(limit)
	if err != nil {
		return err
	}
	PrintCatalog(c.out, entries)
	return nil
}

func (c *CLI) cmdInspect(ctx context.Context, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}

	rp, err := c.archive.Load(ctx, name)
	if err != nil {
		return err
	}

	PrintMetadata(c.out, &rp.Metadata, &rp.Data)
	PrintPlayers(c.out, rp.Players)
	return nil
}

func (c *CLI) cmdFragments(ctx context.Context, kind string, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}

	rp, err := c.archive.Load(ctx, name)
	if err != nil {
		return err
	}

	frags := rp.Keyframes
	if kind == "chunks" {
		frags = rp.Chunks
	}
	PrintFragments(c.out, kind, frags)
	return nil
}

func (c *CLI) cmdDelete(ctx context.Context, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}

	if err := c.archive.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %s\n", name)
	return nil
}

func (c *CLI) cmdPrune(ctx context.Context) error {
	if c.sched == nil {
		return fmt.Errorf("replay cleaner unavailable")
	}

	report, err := c.sched.RunOnce(ctx)
	if errors.Is(err, scheduler.ErrInvalidRetention) {
		return err
	}
	PrintReport(c.out, report)
	return err
}

func (c *CLI) cmdSet(args []string) error {
	if c.cfg == nil {
		return fmt.Errorf("configuration unavailable")
	}
	if len(args) < 3 {
		return fmt.Errorf("usage: set <section> <key> <value>")
	}

	section, key := args[0], args[1]
	raw := strings.Join(args[2:], " ")

	// Numbers, booleans and lists are given as JSON; anything else is a string.
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	if err := c.cfg.UpdateField(section, key, value); err != nil {
		return err
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	c.logger.Info().Str("section", section).Str("key", key).Str("value", raw).Msg("configuration updated")
	fmt.Fprintf(c.out, "Set %s.%s = %s (takes effect on restart)\n", section, key, raw)

	for _, w := range config.Validate(c.cfg).Warnings {
		fmt.Fprintf(c.out, "Warning: %s: %s\n", w.Field, w.Message)
	}
	return nil
}

func nameArg(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("replay name required")
	}
	return args[0], nil
}
