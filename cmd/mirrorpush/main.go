// Package main implements the mirrorpush command-line tool for
// publishing virtio-win releases to the fedorapeople repository.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/virtio-win/mirrorpush/internal/repo"
)

const (
	defaultConfigPath = "/etc/mirrorpush/mirrorpush.toml"
)

var (
	// Build information - can be set via build flags
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Command-line flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mirrorpush",
	Short: "Publish virtio-win releases to the fedorapeople repository",
	Long: `mirrorpush maintains the local mirror of the virtio-win download tree and
synchronizes it with the fedorapeople.org web space.

A publish run copies the artifacts of a finished RPM build into the local
tree, regenerates the yum repository metadata with createrepo_c, and pushes
the result with rsync. Every push shows an rsync --dry-run summary first
and asks for confirmation before any remote change happens.

Set FAS_USERNAME to your fedorapeople account name; a .env file in the
working directory is read as well.`,
}

var publishCmd = &cobra.Command{
	Use:   "publish <rpm-output-dir> <rpm-buildroot>",
	Short: "Publish a new release from RPM build output",
	Long: `Publishes a new virtio-win release.

The rpm-output-dir holds the RPMs the build produced; the rpm-buildroot
holds the extracted virtio-win tree the release version is derived from.

Usage:
  # Publish a freshly built release
  mirrorpush publish ./rpm-output ./rpm-buildroot

  # Skip the confirmation prompt
  mirrorpush publish ./rpm-output ./rpm-buildroot --assume-yes

  # Use a custom configuration file
  mirrorpush publish ./rpm-output ./rpm-buildroot --config ./mirrorpush.toml`,
	Args: cobra.MaximumNArgs(2),
	Run:  runPublish,
}

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate the repo metadata and push, without publishing",
	Long: `Regenerates the yum repository metadata of the local tree and pushes it.

Use this after editing the stable release list or after fixing up the
local tree by hand. No build output is read.`,
	Args: cobra.NoArgs,
	Run:  runRegen,
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Pull the remote tree back into the local mirror",
	Long: `Pulls the published tree from the remote host back into the local mirror.

Use this to seed a fresh checkout of the mirror, or to reconcile the
local tree after someone else published. Nothing is regenerated and
nothing is uploaded.`,
	Args: cobra.NoArgs,
	Run:  runResync,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file and the publishing environment, and report any issues.`,
	Args:  cobra.NoArgs,
	Run:   runValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information including build details",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mirrorpush %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", buildDate)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(regenCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().BoolP("help", "h", false, "help for mirrorpush")
	rootCmd.PersistentFlags().Bool("verbose-errors", false, "show detailed error information including stack traces")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress all output except for errors")

	for _, cmd := range []*cobra.Command{publishCmd, regenCmd, resyncCmd} {
		cmd.Flags().BoolP("assume-yes", "y", false, "push without asking for confirmation after the dry run")
	}
}

// formatError returns a human-friendly error message, optionally with stack trace
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err)
	}

	flattened := errors.FlattenDetails(err)
	if flattened != "" {
		return flattened
	}

	return err.Error()
}

// loadConfig reads the configuration file, applies environment variable
// overrides and the command-line log settings, and validates the result.
// Any failure terminates the process.
func loadConfig(cmd *cobra.Command) *repo.Config {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")

	config := repo.NewConfig()
	meta, err := toml.DecodeFile(configPath, config)
	switch {
	case err == nil:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			slog.Error("configuration contains unknown keys",
				"keys", fmt.Sprintf("%v", undecoded), "path", configPath)
			os.Exit(1)
		}
	case os.IsNotExist(err) && configPath == defaultConfigPath:
		// The built-in defaults describe the standard setup, so a
		// missing default config file is fine.
		slog.Debug("no configuration file, using defaults", "path", configPath)
	case os.IsNotExist(err):
		slog.Error("configuration file not found", "path", configPath)
		os.Exit(1)
	default:
		slog.Error("failed to decode config file",
			"error", formatError(err, verboseErrors), "path", configPath)
		os.Exit(1)
	}

	if err := config.ApplyEnvironmentVariables(); err != nil {
		slog.Error("bad environment override", "error", formatError(err, verboseErrors))
		os.Exit(1)
	}

	if err := config.Log.Apply(); err != nil {
		slog.Error("failed to apply log config", "error", err)
		os.Exit(1)
	}
	if logLevel != "" {
		config.Log.Level = logLevel
		if err := config.Log.Apply(); err != nil {
			slog.Error("failed to apply command-line log level", "level", logLevel, "error", err)
			os.Exit(1)
		}
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		config.Log.Level = "error"
		if err := config.Log.Apply(); err != nil {
			slog.Error("failed to apply quiet log level", "error", err)
			os.Exit(1)
		}
	}

	if err := config.Check(); err != nil {
		slog.Error("invalid configuration", "error", formatError(err, verboseErrors), "path", configPath)
		os.Exit(1)
	}

	return config
}

// confirmGate returns the confirmation hook for a push: it prints the
// dry-run summary and asks the operator whether to proceed.
func confirmGate(assumeYes bool) repo.ConfirmFunc {
	return func(summary string) (bool, error) {
		fmt.Println(summary)
		if assumeYes {
			return true, nil
		}

		fmt.Print("Review the --dry-run changes. Do you want to push? (y/n): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false, errors.Wrap(err, "reading confirmation")
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// runPipeline finishes the option set and executes the publish pipeline.
func runPipeline(cmd *cobra.Command, opts repo.Options) {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")
	config := loadConfig(cmd)

	quiet, _ := cmd.Flags().GetBool("quiet")
	assumeYes, _ := cmd.Flags().GetBool("assume-yes")

	opts.Quiet = quiet
	opts.Runner = repo.ExecRunner{}
	opts.Confirm = confirmGate(assumeYes)

	if err := repo.Run(context.Background(), config, opts); err != nil {
		if errors.Is(err, repo.ErrDeclined) {
			slog.Info("nothing was pushed")
			os.Exit(1)
		}
		slog.Error("run failed", "command", cmd.Name(), "error", formatError(err, verboseErrors))
		if !verboseErrors {
			slog.Info("run with --verbose-errors for detailed stack traces")
		}
		os.Exit(1)
	}
}

func runPublish(cmd *cobra.Command, args []string) {
	var opts repo.Options
	if len(args) > 0 {
		opts.RPMOutput = args[0]
	}
	if len(args) > 1 {
		opts.RPMBuildroot = args[1]
	}
	runPipeline(cmd, opts)
}

func runRegen(cmd *cobra.Command, _ []string) {
	runPipeline(cmd, repo.Options{RegenOnly: true})
}

func runResync(cmd *cobra.Command, _ []string) {
	runPipeline(cmd, repo.Options{Resync: true})
}

func runValidate(cmd *cobra.Command, _ []string) {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")

	config := repo.NewConfig()
	meta, err := toml.DecodeFile(configPath, config)
	if err != nil && !os.IsNotExist(err) {
		slog.Error("failed to decode config file",
			"error", formatError(err, verboseErrors), "path", configPath)
		os.Exit(1)
	}
	if err == nil {
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			slog.Error("configuration contains unknown keys",
				"keys", fmt.Sprintf("%v", undecoded), "path", configPath)
			os.Exit(1)
		}
	}

	var validationErrors []error

	if err := config.ApplyEnvironmentVariables(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "environment"))
	}
	if err := config.Log.Apply(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "log config"))
	}
	if err := config.Check(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "global config"))
	}
	if _, err := repo.Account(); err != nil {
		validationErrors = append(validationErrors, err)
	}

	for _, tool := range []string{"rsync", "createrepo_c"} {
		if _, err := exec.LookPath(tool); err != nil {
			validationErrors = append(validationErrors, errors.New(tool+" is not in PATH"))
		}
	}

	if len(validationErrors) > 0 {
		slog.Error("the configuration is not valid")
		for _, err := range validationErrors {
			slog.Error(err.Error())
		}
		os.Exit(1)
	}

	slog.Info("the configuration passes validation checks")
}

func main() {
	// A .env file may carry FAS_USERNAME and MIRRORPUSH_* overrides.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
