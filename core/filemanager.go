package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileManager resolves and accesses files relative to a root directory,
// normally the directory holding the config file.
type FileManager struct {
	rootDir string
}

// NewFileManager creates a new FileManager with the given root directory.
func NewFileManager(rootDir string) *FileManager {
	return &FileManager{rootDir: rootDir}
}

// GetPath returns the full path of path. Absolute paths are returned as is.
func (fm *FileManager) GetPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(fm.rootDir, path)
}

// PathExists returns true if the path exists, false otherwise.
func (fm *FileManager) PathExists(path string) bool {
	_, err := os.Stat(fm.GetPath(path))
	return !os.IsNotExist(err)
}

// CreateDirectory creates a directory if it does not exist.
func (fm *FileManager) CreateDirectory(directory string) error {
	if fm.PathExists(directory) {
		return nil
	}
	return os.MkdirAll(fm.GetPath(directory), os.ModePerm)
}

// ReadFile reads the contents of a file and returns the data.
func (fm *FileManager) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(fm.GetPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed.
func (fm *FileManager) WriteFile(path string, data []byte) error {
	fullPath := fm.GetPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadJSONFile loads a JSON file and unmarshals it into the provided interface.
func (fm *FileManager) LoadJSONFile(path string, v interface{}) error {
	data, err := fm.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", path, err)
	}
	return nil
}

// SaveJSONFile marshals the provided interface and saves it to a JSON file.
func (fm *FileManager) SaveJSONFile(data interface{}, path string) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data to JSON for %s: %w", path, err)
	}
	return fm.WriteFile(path, jsonData)
}

// LoadYAMLFile loads a YAML file and unmarshals it into the provided interface.
func (fm *FileManager) LoadYAMLFile(path string, v interface{}) error {
	data, err := fm.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode YAML from %s: %w", path, err)
	}
	return nil
}

// SaveYAMLFile marshals the provided interface and saves it to a YAML file.
func (fm *FileManager) SaveYAMLFile(data interface{}, path string) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data to YAML for %s: %w", path, err)
	}
	return fm.WriteFile(path, yamlData)
}
