package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/spf13/cobra"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "FFPANEL_"

// Paths holds the per-user directories ffpanel reads and writes.
type Paths struct {
	Config  string // config.toml
	Presets string // one TOML file per preset
	Logs    string // per-job log files
}

// DefaultPaths returns the per-user locations under the OS config directory,
// falling back to the working directory when it cannot be determined.
func DefaultPaths() Paths {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	root := filepath.Join(base, "ffpanel")
	return Paths{
		Config:  filepath.Join(root, "config.toml"),
		Presets: filepath.Join(root, "presets"),
		Logs:    filepath.Join(root, "logs"),
	}
}

// binding ties one options field to its flag, TOML key and env var.
type binding struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

func bindings(opts any) []binding {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	out := make([]binding, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		out = append(out, binding{
			value: v.Field(i),
			flag:  flagName(f.Name),
			toml:  f.Tag.Get("toml"),
			env:   f.Tag.Get("env"),
		})
	}
	return out
}

// LoadConfig fills the fields of opts, a pointer to a struct, from the TOML
// file named by its Config field and from FFPANEL_* variables. Fields are
// matched through their `toml` and `env` tags. Values set on the command
// line win over env, and env wins over the file; flags are matched by field
// name, so FfmpegBinary maps to --ffmpeg-binary.
// A missing config file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields := bindings(opts)

	var path string
	for _, b := range fields {
		if b.flag == "config" {
			path = b.value.String()
		}
	}
	doc, err := readTOML(path)
	if err != nil {
		return err
	}

	for _, b := range fields {
		if cmd != nil && cmd.Flags().Changed(b.flag) {
			continue
		}
		if b.toml != "" {
			if raw := lookup(doc, b.toml); raw != nil {
				assign(b.value, raw)
			}
		}
		if b.env != "" {
			if s := os.Getenv(EnvPrefix + b.env); s != "" {
				parseInto(b.value, s)
			}
		}
	}
	return nil
}

func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

// flagName turns a field name into its kebab-case flag: "LogDir" -> "log-dir".
func flagName(field string) string {
	var sb strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			sb.WriteByte('-')
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// lookup resolves a dotted key such as "ffmpeg.binary" in a decoded document.
func lookup(doc map[string]any, key string) any {
	table := doc
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]any)
		if !ok {
			return nil
		}
		table = next
	}
	return table[parts[len(parts)-1]]
}

// assign stores a decoded TOML value. Mismatched types are ignored.
func assign(field reflect.Value, raw any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := raw.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := raw.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		strs := make([]string, 0, len(items))
		for _, item := range items {
			s, _ := item.(string)
			strs = append(strs, s)
		}
		field.Set(reflect.ValueOf(strs))
	}
}

// parseInto stores an environment value. Slices are comma separated.
func parseInto(field reflect.Value, s string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Float64:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			field.SetFloat(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig reads the [logging] table: level, format and one
// level per module name. Defaults are returned when the file is absent
// or unreadable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	doc, err := readTOML(configPath)
	if err != nil {
		return cfg
	}
	table, _ := doc["logging"].(map[string]any)
	for key, raw := range table {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
