// Package tsyncconfig loads and saves the user-level configuration file
// (~/.config/tsync/config.yaml): default block-size bounds, the signature
// cache path, and the default log level. Values are loaded with
// pkg/encoding's atomic YAML helpers, mirroring the teacher's own
// configuration persistence pattern; command-line flags always take
// precedence over whatever is stored here.
package tsyncconfig

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/chunk"
	"github.com/tridge-sync/tsync/pkg/encoding"
	"github.com/tridge-sync/tsync/pkg/logging"
)

// configDirectoryName is the subdirectory created under the user's
// configuration directory.
const configDirectoryName = "tsync"

// configFileName is the name of the configuration file within that
// subdirectory.
const configFileName = "config.yaml"

// Configuration is the on-disk configuration format.
type Configuration struct {
	// MinBlockSize is the smallest chunk that the content-defined chunker
	// will cut, regardless of content. A zero value means "use the
	// built-in default."
	MinBlockSize int `yaml:"minBlockSize"`
	// AvgBlockSize is the target chunk size around which the chunker's
	// boundary mask is tuned. A zero value means "use the built-in
	// default."
	AvgBlockSize int `yaml:"avgBlockSize"`
	// MaxBlockSize is the largest chunk that the chunker will cut before
	// forcing a boundary. A zero value means "use the built-in default."
	MaxBlockSize int `yaml:"maxBlockSize"`
	// SignatureCachePath is the path to the persistent signature cache
	// used to skip rehashing files that haven't changed. An empty value
	// means "use the built-in default."
	SignatureCachePath string `yaml:"signatureCachePath"`
	// LogLevel is a log level name (see pkg/logging.NameToLevel). It is
	// loaded and saved with the rest of the configuration, but no command
	// reads it to set logging verbosity. An empty value means "use the
	// built-in default."
	LogLevel string `yaml:"logLevel"`
}

// defaultSignatureCacheFileName is the name of the signature cache file
// within the configuration directory, used when no explicit path is set.
const defaultSignatureCacheFileName = "sigcache.yaml"

// Default returns the built-in configuration used when no file is present
// or a field is left unset.
func Default() *Configuration {
	path, _ := defaultSignatureCachePath()
	return &Configuration{
		MinBlockSize:       chunk.MinSize,
		AvgBlockSize:       chunk.AvgSize,
		MaxBlockSize:       chunk.MaxSize,
		SignatureCachePath: path,
		LogLevel:           logging.LevelInfo.String(),
	}
}

// defaultSignatureCachePath returns the default signature cache location
// under the user's configuration directory.
func defaultSignatureCachePath() (string, error) {
	directory, err := configDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(directory, defaultSignatureCacheFileName), nil
}

// configDirectory returns the tsync configuration directory, creating it if
// it doesn't already exist.
func configDirectory() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to determine user configuration directory")
	}
	directory := filepath.Join(base, configDirectoryName)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return "", errors.Wrap(err, "unable to create configuration directory")
	}
	return directory, nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	directory, err := configDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(directory, configFileName), nil
}

// Load reads the configuration file at path and fills in any unset fields
// with built-in defaults. A missing file is not an error: it yields the
// default configuration unmodified, since the whole file is optional.
func Load(path string) (*Configuration, error) {
	configuration := Default()

	var stored Configuration
	if err := encoding.LoadAndUnmarshalYAML(path, &stored); err != nil {
		if os.IsNotExist(err) {
			return configuration, nil
		}
		return nil, errors.Wrap(err, "unable to load configuration file")
	}

	if stored.MinBlockSize != 0 {
		configuration.MinBlockSize = stored.MinBlockSize
	}
	if stored.AvgBlockSize != 0 {
		configuration.AvgBlockSize = stored.AvgBlockSize
	}
	if stored.MaxBlockSize != 0 {
		configuration.MaxBlockSize = stored.MaxBlockSize
	}
	if stored.SignatureCachePath != "" {
		configuration.SignatureCachePath = stored.SignatureCachePath
	}
	if stored.LogLevel != "" {
		configuration.LogLevel = stored.LogLevel
	}

	return configuration, nil
}

// Save persists the configuration atomically to path.
func (c *Configuration) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "unable to create configuration directory")
	}
	if err := encoding.MarshalAndSaveYAML(path, c); err != nil {
		return errors.Wrap(err, "unable to save configuration file")
	}
	return nil
}
