package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseGitPorcelain(t *testing.T) {
	output := []byte(" M specs/1000.md\n" +
		"A  specs/1001/1013.md\n" +
		"?? specs/notes.md\n" +
		"R  specs/old.md -> specs/new.md\n" +
		"MM \"specs/with space.md\"\n")

	want := []FileStatus{
		{Path: "specs/1000.md", Status: StatusModified},
		{Path: "specs/1001/1013.md", Status: StatusAdded},
		{Path: "specs/notes.md", Status: StatusUntracked},
		{Path: "specs/new.md", Status: StatusRenamed},
		{Path: "specs/with space.md", Status: StatusModified},
	}
	if diff := cmp.Diff(want, parseGitPorcelain(output)); diff != "" {
		t.Errorf("parseGitPorcelain() mismatch (-want +got):\n%s", diff)
	}

	if got := parseGitPorcelain(nil); len(got) != 0 {
		t.Errorf("parseGitPorcelain(nil) = %v, want empty", got)
	}
}

func TestParseJJSummary(t *testing.T) {
	output := []byte("M specs/1000.md\nA specs/new file.md\nD specs/gone.md\n\n")

	want := []FileStatus{
		{Path: "specs/1000.md", Status: StatusModified},
		{Path: "specs/new file.md", Status: StatusAdded},
		{Path: "specs/gone.md", Status: StatusDeleted},
	}
	if diff := cmp.Diff(want, parseJJSummary(output)); diff != "" {
		t.Errorf("parseJJSummary() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		want  Type
		isErr bool
	}{
		{name: "git", dirs: []string{".git"}, want: TypeGit},
		{name: "jj", dirs: []string{".jj"}, want: TypeJJ},
		{name: "colocated", dirs: []string{".jj", ".git"}, want: TypeColocate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, d := range tt.dirs {
				if err := os.Mkdir(filepath.Join(root, d), 0755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			}
			nested := filepath.Join(root, "specs", "1000")
			if err := os.MkdirAll(nested, 0755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}

			repo, err := Detect(nested)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if repo.Type != tt.want {
				t.Errorf("Type = %v, want %v", repo.Type, tt.want)
			}
			gotRoot, _ := filepath.EvalSymlinks(repo.Root)
			wantRoot, _ := filepath.EvalSymlinks(root)
			if gotRoot != wantRoot {
				t.Errorf("Root = %s, want %s", repo.Root, root)
			}
		})
	}
}

func TestBackendPreference(t *testing.T) {
	t.Setenv("SPECMIGRATE_VCS", "git")
	if got := PreferredVCS(); got != TypeGit {
		t.Errorf("PreferredVCS() = %v, want git", got)
	}
	t.Setenv("SPECMIGRATE_VCS", "")
	if got := PreferredVCS(); got != TypeJJ {
		t.Errorf("PreferredVCS() = %v, want jj", got)
	}
}

func TestIsSkippable(t *testing.T) {
	if !IsSkippable(ErrNotInVCS) || !IsSkippable(ErrVCSNotAvailable) {
		t.Error("expected ErrNotInVCS and ErrVCSNotAvailable to be skippable")
	}
	if IsSkippable(ErrTimeout) || IsSkippable(nil) {
		t.Error("expected ErrTimeout and nil not to be skippable")
	}
}
