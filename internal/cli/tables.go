package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/db"
	"github.com/aof-gg/aofkeeper/internal/replay"
	"github.com/aof-gg/aofkeeper/internal/scheduler"
	"github.com/aof-gg/aofkeeper/internal/util"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

// PrintMetadata writes the match metadata as a two column table.
func PrintMetadata(w io.Writer, meta *replay.Metadata, data *replay.Data) {
	tw := newTable(w, []string{"Field", "Value"})
	tw.SetAlignment(tablewriter.ALIGN_LEFT)

	tw.Append([]string{"File version", strconv.Itoa(int(meta.FileVersion))})
	tw.Append([]string{"Region", strconv.Itoa(int(meta.RegionID))})
	tw.Append([]string{"Game ID", strconv.FormatUint(meta.GameID, 10)})
	tw.Append([]string{"Riot version", meta.RiotVersion})
	tw.Append([]string{"Key", meta.Key})
	tw.Append([]string{"Complete", strconv.FormatBool(meta.Complete)})
	tw.Append([]string{"End startup chunk", strconv.Itoa(int(meta.EndStartupChunkID))})
	tw.Append([]string{"Start game chunk", strconv.Itoa(int(meta.StartGameChunkID))})
	tw.Append([]string{"End game chunk", strconv.Itoa(int(meta.EndGameChunkID))})
	tw.Append([]string{"Players", strconv.Itoa(len(meta.Players))})

	if data != nil {
		tw.Append([]string{"Keyframes", fragmentSummary(data.Keyframes)})
		tw.Append([]string{"Chunks", fragmentSummary(data.Chunks)})
	}

	tw.Render()
}

func fragmentSummary(f *replay.Fragments) string {
	return fmt.Sprintf("%d (%s)", f.Len(), util.FormatBytes(int64(f.PayloadSize())))
}

// PrintPlayers writes the roster in file order.
func PrintPlayers(w io.Writer, players []replay.Player) {
	if len(players) == 0 {
		fmt.Fprintln(w, "No players recorded.")
		return
	}

	tw := newTable(w, []string{"ID", "Name", "Team", "League", "Rank", "Champion", "Spell 1", "Spell 2"})
	for _, p := range players {
		tw.Append([]string{
			strconv.Itoa(int(p.ID)),
			p.Name,
			strconv.Itoa(int(p.TeamNr)),
			strconv.Itoa(int(p.LeagueID)),
			strconv.Itoa(int(p.LeagueRank)),
			strconv.Itoa(int(p.ChampionID)),
			strconv.Itoa(int(p.Spell1ID)),
			strconv.Itoa(int(p.Spell2ID)),
		})
	}
	tw.Render()
}

// PrintFragments lists the ids and payload sizes of one fragment stream.
func PrintFragments(w io.Writer, kind string, frags *replay.Fragments) {
	if frags.Len() == 0 {
		fmt.Fprintf(w, "No %s.\n", kind)
		return
	}

	tw := newTable(w, []string{strings.TrimSuffix(kind, "s") + " ID", "Size"})
	for fr := range frags.All() {
		tw.Append([]string{strconv.Itoa(int(fr.ID)), util.FormatBytes(int64(len(fr.Data)))})
	}
	tw.SetFooter([]string{fmt.Sprintf("%d total", frags.Len()), util.FormatBytes(int64(frags.PayloadSize()))})
	tw.Render()
}

// PrintCatalog writes catalog entries, one per row.
func PrintCatalog(w io.Writer, entries []db.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No replays archived.")
		return
	}

	tw := newTable(w, []string{"Name", "Game ID", "Region", "Version", "Rev", "Complete", "Players", "Size", "Saved"})
	for _, e := range entries {
		tw.Append([]string{
			e.Name,
			strconv.FormatUint(e.GameID, 10),
			strconv.Itoa(int(e.RegionID)),
			e.RiotVersion,
			strconv.Itoa(int(e.FileVersion)),
			strconv.FormatBool(e.Complete),
			strconv.Itoa(e.Players),
			util.FormatBytes(e.SizeBytes),
			e.SavedAt.Local().Format(time.DateTime),
		})
	}
	tw.Render()
}

// PrintReport summarizes a cleaner pass.
func PrintReport(w io.Writer, r scheduler.Report) {
	tw := newTable(w, []string{"Removed", "Orphans", "Temp files", "Freed"})
	tw.Append([]string{
		strconv.Itoa(len(r.Removed)),
		strconv.Itoa(r.Orphans),
		strconv.Itoa(r.TempFiles),
		util.FormatBytes(r.FreedBytes),
	})
	tw.Render()

	for _, name := range r.Removed {
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

// FileResult is the outcome of checking one replay file.
type FileResult struct {
	Path     string
	Revision uint8
	Meta     *replay.Metadata
	Err      error
}

// OK reports whether the file decoded.
func (r FileResult) OK() bool {
	return r.Err == nil
}

// CheckFile reads and decodes the replay at path.
func CheckFile(path string) FileResult {
	res := FileResult{Path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	if rev, err := aof.PeekRevision(raw); err == nil {
		res.Revision = rev
	}

	meta, _, err := aof.Decode(raw)
	if err != nil {
		res.Err = err
		return res
	}
	res.Meta = meta
	return res
}

// PrintResults writes one row per checked file and returns the number of
// failures.
func PrintResults(w io.Writer, results []FileResult) int {
	failures := 0

	tw := newTable(w, []string{"File", "Rev", "Game ID", "Status"})
	for _, r := range results {
		rev := "-"
		if r.Revision != 0 {
			rev = strconv.Itoa(int(r.Revision))
		}

		gameID := "-"
		status := "valid"
		if r.OK() {
			gameID = strconv.FormatUint(r.Meta.GameID, 10)
			if !r.Meta.Complete {
				status = "valid (incomplete)"
			}
		} else {
			failures++
			status = r.Err.Error()
		}

		tw.Append([]string{filepath.Base(r.Path), rev, gameID, status})
	}
	tw.Render()

	if failures == 0 && len(results) > 1 {
		fmt.Fprintf(w, "All %d replay files are valid.\n", len(results))
	}
	return failures
}
