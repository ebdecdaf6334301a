package presets

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

// DoublePassToken separates the two passes of a stored profile command.
const DoublePassToken = "DOUBLE_PASS"

// SourceExtension is stored as the extension of profiles whose outputs
// keep each input's extension, such as stream copies.
const SourceExtension = "copy"

// LogName is the job log written when running a profile.
const LogName = "Videomass_PresetsManager.log"

// Preset store errors
var (
	ErrPresetNotFound  = errors.New("preset not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile name already in use")
	ErrCorruptPreset   = errors.New("preset file is corrupt; restore it to the defaults")
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrUnknownPreset   = errors.New("file does not match any known preset")
)

// Profile is a named ffmpeg argument template.
type Profile struct {
	Name             string   `toml:"name" json:"name"`
	Description      string   `toml:"description" json:"description"`
	Command          string   `toml:"command" json:"command"`
	Extension        string   `toml:"extension" json:"extension"`
	SupportedFormats []string `toml:"supported_formats,omitempty" json:"supported_formats,omitempty"`
}

// Validate checks the fields every stored profile needs.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case strings.TrimSpace(p.Command) == "":
		return fmt.Errorf("%w: command is required", ErrInvalidProfile)
	case strings.TrimSpace(p.Extension) == "":
		return fmt.Errorf("%w: extension is required", ErrInvalidProfile)
	case strings.Count(p.Command, DoublePassToken) > 1:
		return fmt.Errorf("%w: %s may appear once", ErrInvalidProfile, DoublePassToken)
	}
	return nil
}

// OutputExtension returns the extension outputs are written with. It is
// empty when outputs keep the input extension.
func (p Profile) OutputExtension() string {
	ext := strings.TrimPrefix(strings.TrimSpace(p.Extension), ".")
	if strings.EqualFold(ext, SourceExtension) {
		return ""
	}
	return ext
}

// IsDoublePass reports whether the command holds two passes.
func (p Profile) IsDoublePass() bool {
	return strings.Contains(p.Command, DoublePassToken)
}

// Supports reports whether path has an extension listed in SupportedFormats.
// An empty list accepts every input.
func (p Profile) Supports(path string) bool {
	if len(p.SupportedFormats) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return slices.ContainsFunc(p.SupportedFormats, func(f string) bool {
		return strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(f), "."), ext)
	})
}

// Preset is one preset file: a named group of profiles.
// Name comes from the file name and is not stored in the file.
type Preset struct {
	Name        string    `toml:"-" json:"name"`
	Description string    `toml:"description" json:"description"`
	Profiles    []Profile `toml:"profiles" json:"profiles"`
}

// Profile returns the named profile.
func (p Preset) Profile(name string) (Profile, bool) {
	i := p.index(name)
	if i < 0 {
		return Profile{}, false
	}
	return p.Profiles[i], true
}

func (p Preset) index(name string) int {
	return slices.IndexFunc(p.Profiles, func(pr Profile) bool { return pr.Name == name })
}

// Sorted returns the profiles ordered by name.
func (p Preset) Sorted() []Profile {
	out := slices.Clone(p.Profiles)
	slices.SortFunc(out, func(a, b Profile) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FilterSupported keeps the inputs the profile can read, in order.
func FilterSupported(p Profile, files []string) []string {
	var out []string
	for _, f := range files {
		if p.Supports(f) {
			out = append(out, f)
		}
	}
	return out
}

// RunCommands turns a profile command into dispatchable passes.
// A double-pass command is split at DoublePassToken; the first pass gets
// the raw video muxer. threads is an extra fragment such as "-threads 4".
func RunCommands(p Profile, threads string) (ffmpeg.Commands, error) {
	if err := p.Validate(); err != nil {
		return ffmpeg.Commands{}, err
	}

	if !p.IsDoublePass() {
		return ffmpeg.Commands{
			Mode:      ffmpeg.ModeOnePass,
			Passes:    []string{join(p.Command, threads)},
			Extension: p.OutputExtension(),
		}, nil
	}

	one, two, _ := strings.Cut(p.Command, DoublePassToken)
	if strings.TrimSpace(one) == "" || strings.TrimSpace(two) == "" {
		return ffmpeg.Commands{}, fmt.Errorf("%w: both passes need arguments", ErrInvalidProfile)
	}
	return ffmpeg.Commands{
		Mode:      ffmpeg.ModeTwoPass,
		Passes:    []string{join(one, threads, "-f rawvideo"), join(two, threads)},
		Extension: p.OutputExtension(),
	}, nil
}

// ProfileFromCommands stores built passes as a profile command. Commands
// without an extension are stored with SourceExtension.
func ProfileFromCommands(name, description string, cmds ffmpeg.Commands) Profile {
	ext := cmds.Extension
	if strings.TrimSpace(ext) == "" {
		ext = SourceExtension
	}
	return Profile{
		Name:        name,
		Description: description,
		Command:     strings.Join(cmds.Passes, " "+DoublePassToken+" "),
		Extension:   ext,
	}
}

func join(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
