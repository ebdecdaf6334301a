package presets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/ffpanel/internal/config"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
)

const fileExt = ".toml"

//go:embed defaults/*.toml
var embedded embed.FS

// Defaults returns the preset files shipped with the binary.
func Defaults() fs.FS {
	sub, err := fs.Sub(embedded, "defaults")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store keeps presets as one TOML file each in a directory.
// Writes hold an exclusive file lock and replace files atomically.
type Store struct {
	dir       string
	defaults  fs.FS
	lock      *flock.Flock
	logger    logging.Logger
	publisher events.Publisher
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults replaces the embedded default presets.
func WithDefaults(fsys fs.FS) Option {
	return func(s *Store) { s.defaults = fsys }
}

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPublisher publishes reload events from Watch.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		defaults: Defaults(),
		lock:     flock.New(filepath.Join(dir, ".lock")),
		logger:   logging.GetLogger("presets"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the preset directory.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the directory and copies the defaults when it holds no presets.
func (s *Store) Init() error {
	return s.withLock(func() error {
		names, err := s.names()
		if err != nil {
			return err
		}
		if len(names) > 0 {
			return nil
		}
		s.logger.Info("Installing default presets", "dir", s.dir)
		return s.copyDefaults(nil)
	})
}

// List returns every preset ordered by name.
func (s *Store) List() ([]Preset, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	out := make([]Preset, 0, len(names))
	for _, name := range names {
		p, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Load reads one preset.
func (s *Store) Load(name string) (Preset, error) {
	path, err := s.path(name)
	if err != nil {
		return Preset{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read preset %s: %w", name, err)
	}
	return decode(name, data)
}

// Profiles returns the profiles of a preset ordered by name.
func (s *Store) Profiles(preset string) ([]Profile, error) {
	p, err := s.Load(preset)
	if err != nil {
		return nil, err
	}
	return p.Sorted(), nil
}

// Select returns one profile of a preset.
func (s *Store) Select(preset, profile string) (Profile, error) {
	p, err := s.Load(preset)
	if err != nil {
		return Profile{}, err
	}
	pr, ok := p.Profile(profile)
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s/%s", ErrProfileNotFound, preset, profile)
	}
	return pr, nil
}

// Add appends a profile to a preset.
func (s *Store) Add(preset string, pr Profile) error {
	if err := pr.Validate(); err != nil {
		return err
	}
	return s.update(preset, func(p *Preset) error {
		if p.index(pr.Name) >= 0 {
			return fmt.Errorf("%w: %s", ErrProfileExists, pr.Name)
		}
		p.Profiles = append(p.Profiles, pr)
		return nil
	})
}

// Edit replaces the profile named oldName. Renaming onto another
// existing profile is rejected.
func (s *Store) Edit(preset, oldName string, pr Profile) error {
	if err := pr.Validate(); err != nil {
		return err
	}
	return s.update(preset, func(p *Preset) error {
		i := p.index(oldName)
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrProfileNotFound, preset, oldName)
		}
		if pr.Name != oldName && p.index(pr.Name) >= 0 {
			return fmt.Errorf("%w: %s", ErrProfileExists, pr.Name)
		}
		p.Profiles[i] = pr
		return nil
	})
}

// Delete removes one profile.
func (s *Store) Delete(preset, name string) error {
	return s.update(preset, func(p *Preset) error {
		i := p.index(name)
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrProfileNotFound, preset, name)
		}
		p.Profiles = slices.Delete(p.Profiles, i, i+1)
		return nil
	})
}

// SaveFromOptions stores the commands built from o as a new profile.
func (s *Store) SaveFromOptions(preset, name, description string, o ffmpeg.Options) (Profile, error) {
	cmds, err := ffmpeg.BuildCommands(o)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to build commands: %w", err)
	}
	pr := ProfileFromCommands(name, description, cmds)
	if err := s.Add(preset, pr); err != nil {
		return Profile{}, err
	}
	return pr, nil
}

// RestoreDefault overwrites one preset with its shipped version.
func (s *Store) RestoreDefault(preset string) error {
	if _, err := fs.Stat(s.defaults, preset+fileExt); err != nil {
		return fmt.Errorf("%w: no default for %s", ErrPresetNotFound, preset)
	}
	return s.withLock(func() error {
		s.logger.Info("Restoring default preset", "preset", preset)
		return s.copyDefaults([]string{preset + fileExt})
	})
}

// RestoreAll overwrites every shipped preset. Presets without a shipped
// version are left alone.
func (s *Store) RestoreAll() error {
	return s.withLock(func() error {
		s.logger.Info("Restoring all default presets", "dir", s.dir)
		return s.copyDefaults(nil)
	})
}

// Export copies a preset file into dir and returns the written path.
func (s *Store) Export(preset, dir string) (string, error) {
	src, err := s.path(preset)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrPresetNotFound, preset)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read preset %s: %w", preset, err)
	}
	dst := filepath.Join(dir, preset+fileExt)
	if err := writeAtomic(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}

// Import replaces a preset with the file at path. The file name must
// match an installed or shipped preset and the content must parse.
func (s *Store) Import(path string) (Preset, error) {
	name := strings.TrimSuffix(filepath.Base(path), fileExt)
	if filepath.Ext(path) != fileExt || !s.known(name) {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	p, err := decode(name, data)
	if err != nil {
		return Preset{}, err
	}
	err = s.withLock(func() error {
		return writeAtomic(filepath.Join(s.dir, name+fileExt), data)
	})
	if err != nil {
		return Preset{}, err
	}
	s.logger.Info("Imported preset", "preset", name, "from", path)
	return p, nil
}

// Watch reloads presets on external edits and publishes PresetsReloadedEvent.
// The returned watcher is running until ctx ends or Stop is called.
func (s *Store) Watch(ctx context.Context, opts ...config.WatcherOption[[]Preset]) (*config.Watcher[[]Preset], error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preset directory: %w", err)
	}

	opts = append([]config.WatcherOption[[]Preset]{
		config.WithFilter[[]Preset](func(name string) bool { return strings.HasSuffix(name, fileExt) }),
	}, opts...)

	w := config.NewWatcher(s.dir, func(string) ([]Preset, error) { return s.List() },
		logging.GetLogger("presets"), opts...)
	w.OnReload(func(list []Preset) {
		s.logger.Info("Presets reloaded", "dir", s.dir, "count", len(list))
		if s.publisher != nil {
			s.publisher.Publish(events.PresetsReloadedEvent{
				Dir:       s.dir,
				Presets:   len(list),
				Timestamp: time.Now(),
			})
		}
	})
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to watch presets: %w", err)
	}
	return w, nil
}

func (s *Store) known(name string) bool {
	if _, err := s.path(name); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(s.dir, name+fileExt)); err == nil {
		return true
	}
	_, err := fs.Stat(s.defaults, name+fileExt)
	return err == nil
}

// update loads, mutates and writes one preset under the lock.
// A corrupt file is reported without being touched.
func (s *Store) update(name string, fn func(*Preset) error) error {
	return s.withLock(func() error {
		p, err := s.Load(name)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		data, err := toml.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal preset %s: %w", name, err)
		}
		path, _ := s.path(name)
		if err := writeAtomic(path, data); err != nil {
			return err
		}
		s.logger.Debug("Preset saved", "preset", name, "profiles", len(p.Profiles))
		return nil
	})
}

func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preset directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock preset directory: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("Failed to release preset lock", "error", err)
		}
	}()
	return fn()
}

// copyDefaults writes the named default files, or all of them when names is nil.
func (s *Store) copyDefaults(names []string) error {
	if names == nil {
		matches, err := fs.Glob(s.defaults, "*"+fileExt)
		if err != nil {
			return fmt.Errorf("failed to list default presets: %w", err)
		}
		names = matches
	}
	for _, name := range names {
		data, err := fs.ReadFile(s.defaults, name)
		if err != nil {
			return fmt.Errorf("failed to read default preset %s: %w", name, err)
		}
		if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// names lists preset names found in the directory, sorted.
func (s *Store) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || filepath.Ext(n) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(n, fileExt))
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid name %q", ErrPresetNotFound, name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

func decode(name string, data []byte) (Preset, error) {
	var p Preset
	if err := toml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("%w: %s: %w", ErrCorruptPreset, name, err)
	}
	for _, pr := range p.Profiles {
		if err := pr.Validate(); err != nil {
			return Preset{}, fmt.Errorf("%w: %s: %w", ErrCorruptPreset, name, err)
		}
	}
	p.Name = name
	return p, nil
}

// writeAtomic writes data to a temp file in the target directory and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
