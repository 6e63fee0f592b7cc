// Package config loads the server configuration file (rscd.yaml) and turns
// it into the path configuration the workspace index consumes.
package config

import (
	"os"
	"path/filepath"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"

	"github.com/skarsol/rscd/internal/index"
)

// Folder configures one workspace folder: where its sources live and which
// paths to skip. Ignore patterns use gitignore syntax.
type Folder struct {
	SourceRoots []string `yaml:"sourceRoots"`
	Ignore      []string `yaml:"ignore"`
}

type Config struct {
	DebounceMillis int               `yaml:"debounceMillis"`
	Default        Folder            `yaml:"default"`
	Folders        map[string]Folder `yaml:"folders"`
}

var defaultIgnore = []string{".git/", "target/", "bin/"}

func Default() Config {
	return Config{
		DebounceMillis: 400,
		Default:        Folder{Ignore: defaultIgnore},
	}
}

// Load reads a config file; a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	if cfg.DebounceMillis <= 0 {
		cfg.DebounceMillis = 400
	}
	return cfg, nil
}

func (c Config) DebounceTime() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// PathConfig compiles the per-folder settings for the index. Relative
// source roots resolve against the folder.
func (c Config) PathConfig() index.PathConfig {
	return func(folder string) index.FolderConfig {
		fc, ok := c.Folders[folder]
		if !ok {
			fc = c.Default
		}
		var roots []string
		for _, r := range fc.SourceRoots {
			if !filepath.IsAbs(r) {
				r = filepath.Join(folder, r)
			}
			roots = append(roots, r)
		}
		if len(roots) == 0 {
			roots = []string{folder}
		}
		patterns := fc.Ignore
		if len(patterns) == 0 {
			patterns = defaultIgnore
		}
		return index.FolderConfig{
			SourceRoots: roots,
			Ignore:      ignore.CompileIgnoreLines(patterns...),
		}
	}
}
