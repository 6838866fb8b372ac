package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// AppName names the config and data directories.
const AppName = "imeserve"

// PathResolver finds the config and data directories and resolves code table
// names against them.
type PathResolver struct {
	homeDir   string
	configDir string
	dataDir   string
}

// NewPathResolver creates a resolver for the platform's user directories.
func NewPathResolver() *PathResolver {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}
	return &PathResolver{
		homeDir:   homeDir,
		configDir: getConfigDir(homeDir),
		dataDir:   getDataDir(homeDir),
	}
}

// WithDataDir returns a copy of pr that keeps data under dir instead. An
// empty dir keeps the default.
func (pr *PathResolver) WithDataDir(dir string) *PathResolver {
	if dir == "" {
		return pr
	}
	cp := *pr
	cp.dataDir = AbsPath(dir)
	return &cp
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", AppName)
	default:
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, AppName)
		}
		return filepath.Join(homeDir, ".config", AppName)
	}
}

// getDataDir returns the appropriate data directory for the platform
func getDataDir(homeDir string) string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, AppName)
		}
		return filepath.Join(homeDir, "AppData", "Local", AppName)
	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, AppName)
		}
		return filepath.Join(homeDir, ".local", "share", AppName)
	}
}

// ConfigDir returns the config directory
func (pr *PathResolver) ConfigDir() string {
	return pr.configDir
}

// WritableConfigDir returns the config directory, creating it when missing.
// When it cannot be written the directory of the running executable is used
// instead.
func (pr *PathResolver) WritableConfigDir() (string, error) {
	err := dirWritable(pr.configDir)
	if err == nil {
		return pr.configDir, nil
	}
	log.Warnf("Config directory unusable: %v. Falling back to the executable directory", err)
	return ExecutableDir()
}

// ExecutableDir returns the directory holding the running binary.
func ExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Dir(execPath), nil
}

// DataDir returns the data directory
func (pr *PathResolver) DataDir() string {
	return pr.dataDir
}

// CodetableDir returns the directory code tables are looked up in.
func (pr *PathResolver) CodetableDir() string {
	return filepath.Join(pr.dataDir, "codetable")
}

// ResolveCodetable maps a configured table name to a file. Absolute paths
// and paths that exist relative to the working directory are used as they
// are; anything else is looked up in the code table directory.
func (pr *PathResolver) ResolveCodetable(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	if FileExists(name) {
		return AbsPath(name)
	}
	if found, err := FindFileInPaths(name, []string{pr.CodetableDir(), pr.dataDir}); err == nil {
		return found
	}
	return filepath.Join(pr.CodetableDir(), name)
}

// FindFileInPaths searches for a file in multiple possible locations
func FindFileInPaths(filename string, searchPaths []string) (string, error) {
	for _, searchPath := range searchPaths {
		fullPath := filepath.Join(searchPath, filename)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", os.ErrNotExist
}

// GetRuntimeInfo returns debug information about the current runtime environment
func (pr *PathResolver) GetRuntimeInfo() map[string]string {
	cwd, _ := os.Getwd()

	info := map[string]string{
		"current_dir":   cwd,
		"home_dir":      pr.homeDir,
		"config_dir":    pr.configDir,
		"data_dir":      pr.dataDir,
		"codetable_dir": pr.CodetableDir(),
		"os":            runtime.GOOS,
		"arch":          runtime.GOARCH,
	}
	if execDir, err := ExecutableDir(); err == nil {
		info["executable_dir"] = execDir
	}

	envVars := []string{"HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"}
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			info["env_"+strings.ToLower(envVar)] = value
		}
	}
	return info
}
