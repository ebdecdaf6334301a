package dispatch

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	a := touch(t, filepath.Join(src, "a.mp4"))
	b := touch(t, filepath.Join(src, "b.avi"))
	sameName := touch(t, filepath.Join(src, "a.avi"))
	notDir := touch(t, filepath.Join(dst, "file.txt"))
	touch(t, filepath.Join(dst, "b.mkv"))

	tests := []struct {
		name      string
		sources   []string
		dest      string
		ext       string
		overwrite bool
		wantErr   error
		outputs   []string
	}{
		{name: "no inputs", dest: dst, ext: "mkv", wantErr: ErrNoInputs},
		{name: "missing input", sources: []string{filepath.Join(src, "gone.mp4")}, dest: dst, ext: "mkv", wantErr: ErrInputMissing},
		{name: "directory as input", sources: []string{src}, dest: dst, ext: "mkv", wantErr: ErrInputMissing},
		{name: "missing destination", sources: []string{a}, dest: filepath.Join(dst, "nope"), ext: "mkv", wantErr: ErrDestinationInvalid},
		{name: "destination is a file", sources: []string{a}, dest: notDir, ext: "mkv", wantErr: ErrDestinationInvalid},
		{
			name: "stream copy keeps source extension", sources: []string{a, b}, dest: dst, ext: "",
			outputs: []string{filepath.Join(dst, "a.mp4"), filepath.Join(dst, "b.avi")},
		},
		{name: "stream copy next to source", sources: []string{a}, ext: "", overwrite: true, wantErr: ErrDestinationInvalid},
		{name: "output exists", sources: []string{a, b}, dest: dst, ext: "mkv", wantErr: ErrOutputExists},
		{
			name: "overwrite allowed", sources: []string{a, b}, dest: dst, ext: ".mkv", overwrite: true,
			outputs: []string{filepath.Join(dst, "a.mkv"), filepath.Join(dst, "b.mkv")},
		},
		{
			name: "next to source", sources: []string{a}, ext: "webm",
			outputs: []string{filepath.Join(src, "a.webm")},
		},
		{name: "would replace input", sources: []string{a}, ext: "mp4", overwrite: true, wantErr: ErrDestinationInvalid},
		{name: "two inputs one output", sources: []string{a, sameName}, dest: dst, ext: "webm", wantErr: ErrDestinationInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Inspect(tt.sources, tt.dest, tt.ext, tt.overwrite)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Inspect() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if plan.Count != len(tt.sources) || !slices.Equal(plan.Sources, tt.sources) {
				t.Errorf("plan = %+v", plan)
			}
			if !slices.Equal(plan.Outputs, tt.outputs) {
				t.Errorf("Outputs = %v, want %v", plan.Outputs, tt.outputs)
			}
			for i, out := range plan.Outputs {
				if plan.Destinations[i] != filepath.Dir(out) {
					t.Errorf("Destinations[%d] = %q, want %q", i, plan.Destinations[i], filepath.Dir(out))
				}
			}
		})
	}
}

func TestInspectLeavesNoProbeFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	a := touch(t, filepath.Join(src, "a.mp4"))

	if _, err := Inspect([]string{a}, dst, "mkv", false); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("destination not empty after inspect: %v", entries)
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"/x/movie.mp4":      "movie.mkv",
		"/x/archive.tar.gz": "archive.tar.mkv",
		"/x/noext":          "noext.mkv",
	}
	for in, want := range tests {
		if got := OutputName(in, ".mkv"); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputNameKeepsSourceExtensionForCopy(t *testing.T) {
	if got := OutputName("/x/movie.mp4", ""); got != "movie.mp4" {
		t.Errorf("OutputName() = %q, want movie.mp4", got)
	}
}
