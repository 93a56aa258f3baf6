package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDump indicates a dump file without any register
var ErrEmptyDump = errors.New("dump holds no registers")

// DumpDir is where dumps go when no path is given
var DumpDir = filepath.Join("etc", "radios")

// DefaultName picks a file name for a dump: its name, else the cable's port,
// else the firmware version.
func DefaultName(c *RadioConfig) string {
	for _, candidate := range []string{c.Name, portName(c.Cable), c.Firmware} {
		if n := sanitize(candidate); n != "" {
			return n
		}
	}
	return "radio"
}

func portName(port string) string {
	if port == "" {
		return ""
	}
	return strings.TrimPrefix(filepath.Base(port), "tty")
}

// sanitize keeps a name usable as a file name: "k5 amfix/1.0" -> "k5-amfix-1.0"
func sanitize(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

// GetConfigPath returns the default location for a radio's dump
func GetConfigPath(name string) string {
	n := sanitize(name)
	if n == "" {
		n = "radio"
	}
	return filepath.Join(DumpDir, n+".yaml")
}

// SaveToFile writes a dump as YAML and returns the path written. An empty
// path saves under DumpDir using DefaultName. The file is replaced atomically
// so an interrupted dump never truncates an earlier one.
func SaveToFile(c *RadioConfig, path string) (string, error) {
	if len(c.Registers.Registers) == 0 {
		return "", ErrEmptyDump
	}
	if path == "" {
		path = GetConfigPath(DefaultName(c))
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dump: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dump-*.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return path, nil
}

// LoadFromFile reads a dump written by SaveToFile. A dump without a name is
// named after its file.
func LoadFromFile(path string) (*RadioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var c RadioConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse dump: %w", err)
	}
	if len(c.Registers.Registers) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDump)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &c, nil
}
