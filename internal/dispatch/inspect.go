package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Inspection errors
var (
	ErrNoInputs           = errors.New("no input files")
	ErrInputMissing       = errors.New("input file not found")
	ErrDestinationInvalid = errors.New("invalid destination")
	ErrOutputExists       = errors.New("output file already exists")
)

// Plan pairs every source with the file it will be written to.
type Plan struct {
	Sources      []string
	Destinations []string // output directory per source
	Outputs      []string // <destination>/<basename>.<ext>
	Count        int
}

// Inspect checks sources and destination before a batch starts.
// An empty destDir writes each output next to its source and an empty ext
// keeps each source's extension, as stream copy does. Existing outputs are
// refused unless overwrite is set; an output never replaces its source.
func Inspect(sources []string, destDir, ext string, overwrite bool) (Plan, error) {
	if len(sources) == 0 {
		return Plan{}, ErrNoInputs
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")

	plan := Plan{Count: len(sources)}
	checked := make(map[string]error)
	seen := make(map[string]string)

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			return Plan{}, fmt.Errorf("%w: %s", ErrInputMissing, src)
		}

		dir := destDir
		if dir == "" {
			dir = filepath.Dir(src)
		}
		if _, done := checked[dir]; !done {
			checked[dir] = checkWritable(dir)
		}
		if err := checked[dir]; err != nil {
			return Plan{}, err
		}

		out := filepath.Join(dir, OutputName(src, ext))
		if sameFile(src, out) {
			return Plan{}, fmt.Errorf("%w: %s would replace its input", ErrDestinationInvalid, out)
		}
		if prev, dup := seen[out]; dup {
			return Plan{}, fmt.Errorf("%w: %s and %s both write %s", ErrDestinationInvalid, prev, src, out)
		}
		seen[out] = src
		if !overwrite {
			if _, err := os.Stat(out); err == nil {
				return Plan{}, fmt.Errorf("%w: %s", ErrOutputExists, out)
			}
		}

		plan.Sources = append(plan.Sources, src)
		plan.Destinations = append(plan.Destinations, dir)
		plan.Outputs = append(plan.Outputs, out)
	}
	return plan, nil
}

// OutputName returns the base name of src with its extension replaced.
// An empty ext keeps the name unchanged.
func OutputName(src, ext string) string {
	base := filepath.Base(src)
	if ext = strings.TrimSpace(ext); ext == "" {
		// stream copy keeps the source container
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + strings.TrimPrefix(ext, ".")
}

// checkWritable verifies dir exists and accepts new files.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist", ErrDestinationInvalid, dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDestinationInvalid, dir)
	}
	f, err := os.CreateTemp(dir, ".ffpanel-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable", ErrDestinationInvalid, dir)
	}
	f.Close()
	os.Remove(f.Name())
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
