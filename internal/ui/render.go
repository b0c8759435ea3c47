package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/speclayout/specmigrate/internal/ledger"
	"github.com/speclayout/specmigrate/internal/migrate"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// RenderPlan prints the mapping table of a plan followed by its orphans,
// dropped references and skipped documents.
func RenderPlan(w io.Writer, p *migrate.Plan) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "%s %s (%s layout)\n", RenderAccent(IconInfo), RenderBold(p.Root), p.Layout)

	if len(p.Entries) == 0 {
		fmt.Fprintf(w, "   %s\n", RenderMuted("nothing to migrate"))
		return
	}

	t := newTable("Old", "New", "Token", "Type", "Target")
	for _, e := range p.Entries {
		if e.Kind != migrate.OpSpec {
			continue
		}
		t.Row(e.OldID, e.Qualified, e.Token, string(e.Type), e.NewPath)
	}
	fmt.Fprintln(w, t.String())

	contexts := len(p.Entries) - p.Specs()
	fmt.Fprintf(w, "   Documents: %d\n", p.Specs())
	if contexts > 0 {
		fmt.Fprintf(w, "   Context files: %d\n", contexts)
	}

	if orphans := p.Orphans(); len(orphans) > 0 {
		fmt.Fprintf(w, "\n%s Orphans (%d)\n", RenderWarn(IconWarn), len(orphans))
		for _, o := range orphans {
			fmt.Fprintf(w, "   %s → %s  %s\n", o.OldID, o.NewID, RenderMuted(o.Reason))
		}
	}
	if len(p.Dropped) > 0 {
		fmt.Fprintf(w, "\n%s Unresolved references (%d)\n", RenderWarn(IconWarn), len(p.Dropped))
		for _, r := range p.Dropped {
			action := "dropped"
			if r.Kept {
				action = "kept"
			}
			fmt.Fprintf(w, "   %s %s: %s %s\n", r.OldID, r.Field, r.Value, RenderMuted(action))
		}
	}
	if len(p.Skipped) > 0 {
		fmt.Fprintf(w, "\n%s Skipped (%d)\n", RenderWarn(IconWarn), len(p.Skipped))
		for _, s := range p.Skipped {
			fmt.Fprintf(w, "   %s  %s\n", s.Path, RenderMuted(s.Err.Error()))
		}
	}
	if p.Load != nil && len(p.Load.Conflicts) > 0 {
		fmt.Fprintf(w, "\n%s Duplicate ids left in place (%d)\n", RenderWarn(IconWarn), len(p.Load.Conflicts))
		for _, c := range p.Load.Conflicts {
			fmt.Fprintf(w, "   %s  %s\n", c.ID, RenderMuted(strings.Join(c.Paths, ", ")))
		}
	}
	if len(p.Unmatched) > 0 {
		fmt.Fprintf(w, "\n%s Context files left in place (%d)\n", RenderWarn(IconWarn), len(p.Unmatched))
		for _, c := range p.Unmatched {
			fmt.Fprintf(w, "   %s\n", c.Rel)
		}
	}
}

// RenderResult prints the end-of-run summary.
func RenderResult(w io.Writer, r *migrate.Result) {
	if r == nil {
		return
	}
	switch {
	case r.NoOp:
		fmt.Fprintf(w, "%s Nothing to migrate (%s layout)\n", RenderPass(IconPass), r.Layout)
		return
	case r.DryRun:
		fmt.Fprintf(w, "\n%s Dry run: %d documents planned, nothing written\n", RenderAccent(IconInfo), r.Planned)
		return
	case r.State == migrate.Failed:
		fmt.Fprintf(w, "\n%s Migration failed: %v\n", RenderFail(IconFail), r.Err)
	default:
		fmt.Fprintf(w, "\n%s Migration complete\n", RenderPass(IconPass))
	}

	fmt.Fprintf(w, "   Migrated: %d of %d\n", r.Migrated, r.Planned)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "   Skipped: %d\n", r.Skipped)
	}
	if r.Conflicts > 0 {
		fmt.Fprintf(w, "   Conflicts: %d\n", r.Conflicts)
	}
	if r.Removed > 0 {
		fmt.Fprintf(w, "   Removed: %d\n", r.Removed)
	}
	if len(r.Dirty) > 0 {
		fmt.Fprintf(w, "   Uncommitted changes: %d\n", len(r.Dirty))
	}
	if r.BackupDir != "" {
		fmt.Fprintf(w, "   Backup: %s\n", r.BackupDir)
	}
	if r.LogPath != "" {
		fmt.Fprintf(w, "   Log: %s\n", r.LogPath)
	}
	if r.ScriptPath != "" {
		fmt.Fprintf(w, "   Rollback: %s\n", r.ScriptPath)
	}
}

// RenderLookup prints ledger rows for an identifier, newest run first.
func RenderLookup(w io.Writer, id string, rows []ledger.Mapping) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "%s No ledger entry for %s\n", RenderWarn(IconWarn), id)
		return
	}
	t := newTable("Run", "Date", "Old", "New", "Token", "Path")
	for _, m := range rows {
		t.Row(
			fmt.Sprintf("%d", m.RunID),
			m.StartedAt.Local().Format(time.DateTime),
			m.OldID,
			m.QualifiedID,
			m.Token,
			m.NewPath,
		)
	}
	fmt.Fprintln(w, t.String())
}

// RenderFix prints the outcome of an id fix-up pass.
func RenderFix(w io.Writer, r *migrate.FixResult, dryRun bool) {
	if r == nil {
		return
	}
	verb := "Updated"
	if dryRun {
		verb = "Would update"
	}
	fmt.Fprintf(w, "%s Checked %d documents\n", RenderPass(IconPass), r.Found)
	fmt.Fprintf(w, "   %s: %d\n", verb, len(r.Updated))
	for _, p := range r.Updated {
		fmt.Fprintf(w, "     %s\n", p)
	}
	if len(r.Skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "   Skipped: %d\n", len(r.Skipped))
	paths := make([]string, 0, len(r.Skipped))
	for p := range r.Skipped {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "     %s  %s\n", p, RenderMuted(r.Skipped[p]))
	}
}
