package repo

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knqyf263/go-deb-version"
)

const (
	defaultRootDir     = "~/src/fedora/virt-group-repos/virtio-win"
	defaultRemoteHost  = "fedorapeople.org"
	defaultRemotePath  = "/srv/groups/virt/virtio-win"
	defaultRemoteGroup = "virtmaint-sig"
	defaultHTTPRoot    = "/groups/virt/virtio-win/direct-downloads"
	defaultDataDir     = "data"
)

// defaultStable lists the historical stable releases, newest first.
// The first entry defines the stable-virtio alias target.
var defaultStable = []string{
	"0.1.185-2", // RHEL8.2.1 and RHEL7.9
	"0.1.171-1", // RHEL8.0.1
	"0.1.160-1", // RHEL7.7ish
	"0.1.141-1", // RHEL7.4 zstream
	"0.1.126-2", // RHEL7.3 and RHEL6.9
	"0.1.110-1", // RHEL7.2 and RHEL6.8
	"0.1.102-1", // RHEL6.7 version
	"0.1.96-1",  // RHEL7.1 version
}

// stableEntryRE matches a version-release suffix like "0.1.185-2".
var stableEntryRE = regexp.MustCompile(`^[0-9][0-9.]*-[0-9]+$`)

// LogConfig represents slog configuration options.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Apply configures the global slog logger based on the configuration.
func (logConfig *LogConfig) Apply() error {
	var level slog.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return errors.New("invalid log level: " + logConfig.Level)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logConfig.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "plain", "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return errors.New("invalid log format: " + logConfig.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Config is a struct to read TOML configurations.
//
// Use https://github.com/BurntSushi/toml as follows:
//
//	config := repo.NewConfig()
//	md, err := toml.DecodeFile("/path/to/config.toml", config)
//	if err != nil {
//	    ...
//	}
type Config struct {
	// RootDir is the local mirror of the published tree. It is
	// updated in place and then synchronized to the remote host.
	RootDir string `toml:"root_dir"`

	RemoteHost  string `toml:"remote_host"`
	RemotePath  string `toml:"remote_path"`
	RemoteGroup string `toml:"remote_group"`

	// HTTPRoot is the URL-path root used in redirect rules.
	HTTPRoot string `toml:"http_root"`

	// DataDir holds virtio-win.repo and rpm_changelog, published to
	// the tree root on every run.
	DataDir string `toml:"data_dir"`

	// Stable lists stable release suffixes such as "0.1.185-2",
	// newest first. Curation is manual; the program never reorders.
	Stable []string `toml:"stable"`

	Log LogConfig `toml:"log"`
}

// RepoDir returns the yum repository area of the tree.
func (c *Config) RepoDir() string {
	return filepath.Join(c.RootDir, "repo")
}

// DirectDir returns the direct-download area of the tree.
func (c *Config) DirectDir() string {
	return filepath.Join(c.RootDir, "direct-downloads")
}

// Remote returns the rsync endpoint for the given account.
func (c *Config) Remote(account string) string {
	return account + "@" + c.RemoteHost + ":" + c.RemotePath
}

// Check validates the configuration. It also expands a leading "~" in
// root_dir, so components after it always see an absolute path.
func (c *Config) Check() error {
	if c.RootDir == "" {
		return errors.New("root_dir is not set")
	}
	if c.RootDir == "~" || strings.HasPrefix(c.RootDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot expand ~ in root_dir: " + err.Error())
		}
		c.RootDir = filepath.Join(home, c.RootDir[1:])
	}
	if !filepath.IsAbs(c.RootDir) {
		return errors.New("root_dir must be an absolute path")
	}
	if fi, err := os.Stat(c.RootDir); err != nil || !fi.IsDir() {
		return errors.New("local mirror does not exist: " + c.RootDir)
	}

	if c.RemoteHost == "" {
		return errors.New("remote_host is not set")
	}
	if c.RemotePath == "" {
		return errors.New("remote_path is not set")
	}
	if c.RemoteGroup == "" {
		return errors.New("remote_group is not set")
	}

	if len(c.Stable) == 0 {
		return errors.New("stable list is empty")
	}
	for _, ver := range c.Stable {
		if !stableEntryRE.MatchString(ver) {
			return errors.New("malformed stable entry: " + ver)
		}
	}
	c.checkStableOrder()

	return nil
}

// checkStableOrder warns when the stable list is not newest-first.
// The list stays as curated either way.
func (c *Config) checkStableOrder() {
	for i := 0; i < len(c.Stable)-1; i++ {
		v1, err1 := version.NewVersion(c.Stable[i])
		v2, err2 := version.NewVersion(c.Stable[i+1])
		if err1 != nil || err2 != nil {
			continue
		}
		if v2.GreaterThan(v1) {
			slog.Warn("stable list is not newest-first",
				"older", c.Stable[i], "newer", c.Stable[i+1])
		}
	}
}

// NewConfig creates Config with default values.
func NewConfig() *Config {
	return &Config{
		RootDir:     defaultRootDir,
		RemoteHost:  defaultRemoteHost,
		RemotePath:  defaultRemotePath,
		RemoteGroup: defaultRemoteGroup,
		HTTPRoot:    defaultHTTPRoot,
		DataDir:     defaultDataDir,
		Stable:      defaultStable,
	}
}
