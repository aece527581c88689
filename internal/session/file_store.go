package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type fileContents struct {
	SessionID string `yaml:"session_id"`
}

// FileStore keeps the identifier in a small YAML file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath is $XDG_CONFIG_HOME/storefront/session.yaml or the
// platform equivalent.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "storefront", "session.yaml"), nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (ID, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.path, err)
	}

	var contents fileContents
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalid, s.path, err)
	}
	if contents.SessionID == "" {
		return "", ErrNotFound
	}
	return Parse(contents.SessionID)
}

func (s *FileStore) Save(id ID) error {
	data, err := yaml.Marshal(fileContents{SessionID: id.String()})
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
