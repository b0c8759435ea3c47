package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/speclayout/specmigrate/internal/corpus"
)

// Log is the audit record of one migration run, written as JSON.
type Log struct {
	Timestamp time.Time `json:"timestamp"`
	SpecsDir  string    `json:"specs_dir"`
	BackupDir string    `json:"backup_dir"`

	// SpecMappings maps old id to new id.
	SpecMappings map[string]string `json:"spec_mappings"`

	// QualifiedIDs maps old id to the full new path, e.g. E01/F02/T03.
	QualifiedIDs map[string]string `json:"qualified_ids"`

	// UniqueIDs maps old id to the permanent token.
	UniqueIDs map[string]string `json:"unique_ids"`

	Migrations  []FileOp     `json:"migrations"`
	Orphans     []OrphanNote `json:"orphans,omitempty"`
	DroppedRefs []DroppedRef `json:"dropped_refs,omitempty"`
	Skipped     []string     `json:"skipped,omitempty"`

	// Conflicts maps a duplicated old id to the documents claiming it.
	// None of them were migrated.
	Conflicts map[string][]string `json:"conflicts,omitempty"`
}

// FileOp is one file moved to the new layout.
type FileOp struct {
	Type     OpKind      `json:"type"`
	OldID    string      `json:"old_id"`
	NewID    string      `json:"new_id"`
	UniqueID string      `json:"unique_id"`
	SpecType corpus.Type `json:"spec_type,omitempty"`
	OldPath  string      `json:"old_path"`
	NewPath  string      `json:"new_path"`
}

// OrphanNote records a fallback id assignment.
type OrphanNote struct {
	OldID  string `json:"old_id"`
	NewID  string `json:"new_id"`
	Reason string `json:"reason"`
}

// DroppedRef records a reference removed because it had no mapping.
type DroppedRef struct {
	OldID string `json:"old_id"`
	Field string `json:"field"`
	Ref   string `json:"ref"`
}

// newLog builds the log for a plan whose entries were all written.
func newLog(p *Plan, backupDir string, at time.Time) *Log {
	l := &Log{
		Timestamp:    at,
		SpecsDir:     p.Root,
		BackupDir:    backupDir,
		SpecMappings: make(map[string]string),
		QualifiedIDs: make(map[string]string),
		UniqueIDs:    make(map[string]string),
	}
	if p.Resolution != nil {
		for _, a := range p.Resolution.Assignments() {
			l.SpecMappings[a.OldID] = a.NewID
			l.QualifiedIDs[a.OldID] = a.Qualified()
			l.UniqueIDs[a.OldID] = a.Token
		}
		for _, o := range p.Resolution.Orphans {
			l.Orphans = append(l.Orphans, OrphanNote{OldID: o.OldID, NewID: o.NewID, Reason: o.Reason})
		}
	}
	for _, e := range p.Entries {
		l.Migrations = append(l.Migrations, FileOp{
			Type:     e.Kind,
			OldID:    e.OldID,
			NewID:    e.NewID,
			UniqueID: e.Token,
			SpecType: e.Type,
			OldPath:  e.OldPath,
			NewPath:  e.NewPath,
		})
	}
	for _, r := range p.Dropped {
		l.DroppedRefs = append(l.DroppedRefs, DroppedRef{OldID: r.OldID, Field: r.Field, Ref: r.Value})
	}
	for _, s := range p.Skipped {
		l.Skipped = append(l.Skipped, s.Path)
	}
	if p.Load != nil && len(p.Load.Conflicts) > 0 {
		l.Conflicts = make(map[string][]string, len(p.Load.Conflicts))
		for _, c := range p.Load.Conflicts {
			l.Conflicts[c.ID] = c.Paths
		}
	}
	return l
}

// WriteLog writes l as indented JSON through w.
func WriteLog(w Writer, path string, l *Log) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal migration log: %w", err)
	}
	if err := w.WriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write migration log: %w", err)
	}
	return nil
}

// ReadLog loads a migration log written by WriteLog.
func ReadLog(path string) (*Log, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration log: %w", err)
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("invalid migration log %s: %w", path, err)
	}
	return &l, nil
}
