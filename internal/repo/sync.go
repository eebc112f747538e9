package repo

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// repodataNoiseRE matches per-file repodata lines in rsync output.
// Metadata churn is expected on every run and would drown the summary.
var repodataNoiseRE = regexp.MustCompile(`repodata/.+`)

// ConfirmFunc decides whether a reviewed dry-run summary should be
// applied. How the decision is sourced (a prompt, a flag, a policy) is
// the caller's business.
type ConfirmFunc func(summary string) (bool, error)

// Syncer runs the two-phase rsync between the local tree and the
// remote host. The content phase always completes before the metadata
// phase starts, so consumers never see index entries for files that
// have not arrived.
type Syncer struct {
	config  *Config
	account string
	runner  Runner
	reverse bool
}

// NewSyncer returns a Syncer. With reverse set it pulls the remote
// tree back into the local mirror instead of pushing.
func NewSyncer(config *Config, account string, runner Runner, reverse bool) *Syncer {
	return &Syncer{
		config:  config,
		account: account,
		runner:  runner,
		reverse: reverse,
	}
}

// command builds one rsync argv for the given phase options.
func (s *Syncer) command(opts []string, dry bool) []string {
	args := []string{"--archive", "--verbose", "--compress", "--progress"}
	if !s.reverse {
		// There is no group account to push as, so files land owned
		// by the operator with the group rewritten.
		args = append(args,
			"--chown="+s.account+":"+s.config.RemoteGroup,
			"--chmod=D775,F664")
	}
	if dry {
		args = append(args, "--dry-run")
	}
	args = append(args, opts...)

	src, dst := s.config.RootDir, s.config.Remote(s.account)
	if s.reverse {
		src, dst = dst, src
	}
	return append(args, src+"/", dst)
}

// phases returns the content-phase and metadata-phase argvs, in the
// order they must run.
func (s *Syncer) phases(dry bool) [][]string {
	content := s.command([]string{"--exclude", "repodata"}, dry)

	// Restrict the delete pass to repodata directories so stale
	// metadata goes away without --delete ever reaching the content.
	metadata := s.command([]string{
		"--include", "*/",
		"--include", "repodata/*",
		"--exclude", "*",
		"--delete",
	}, dry)

	return [][]string{content, metadata}
}

// metadataPath reports whether the metadata phase's filter selects a
// file path. Only files directly under a repodata directory match.
func metadataPath(rel string) bool {
	return path.Base(path.Dir(rel)) == "repodata"
}

// filterDryRun drops the per-file repodata lines from a dry-run
// transfer listing.
func filterDryRun(out string) string {
	var b strings.Builder
	for _, line := range strings.Split(out, "\n") {
		if repodataNoiseRE.MatchString(line) {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DryRun executes both phases with --dry-run and returns the filtered
// transfer summary for review.
func (s *Syncer) DryRun(ctx context.Context) (string, error) {
	var summary strings.Builder
	for _, argv := range s.phases(true) {
		out, err := s.runner.Output(ctx, "rsync", argv...)
		if err != nil {
			return "", err
		}
		summary.WriteString(filterDryRun(out))
		summary.WriteString("\n")
	}
	return summary.String(), nil
}

// Apply executes both phases for real.
func (s *Syncer) Apply(ctx context.Context) error {
	for _, argv := range s.phases(false) {
		if err := s.runner.Run(ctx, "rsync", argv...); err != nil {
			return err
		}
	}
	return nil
}

// Push runs the dry-run, submits its summary to the confirmation gate,
// and applies both phases on approval. A declined gate aborts with
// ErrDeclined before any remote mutation.
func (s *Syncer) Push(ctx context.Context, confirm ConfirmFunc) error {
	summary, err := s.DryRun(ctx)
	if err != nil {
		return err
	}

	ok, err := confirm(summary)
	if err != nil {
		return errors.Wrap(err, "confirmation")
	}
	if !ok {
		return errors.Mark(
			errors.New("declined after dry-run review"), ErrDeclined)
	}

	return s.Apply(ctx)
}
