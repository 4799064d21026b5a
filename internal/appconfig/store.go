package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store interface {
	Path() string
	Load() (Config, error)
	Save(cfg Config) error
}

// FileStore keeps the config as versioned JSON in a single file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	return &FileStore{path: path}, nil
}

// NewDefaultStore uses sonosctl/config.json under the user config directory.
func NewDefaultStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(dir, "sonosctl", "config.json"))
}

func (s *FileStore) Path() string { return s.path }

type document struct {
	Version int    `json:"version"`
	Config  Config `json:"config"`
}

const documentVersion = 1

// Load returns defaults when the file does not exist yet.
func (s *FileStore) Load() (Config, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}.Normalize(), nil
	}
	if err != nil {
		return Config{}, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return doc.Config.Normalize(), nil
}

// Save writes through a temp file in the same directory and renames it into
// place, so readers never see a partial file.
func (s *FileStore) Save(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(document{Version: documentVersion, Config: cfg.Normalize()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
