// Package backup takes timestamped copies of map archives before they are
// mutated, and puts them back on request.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoCommand is returned when a helper command line is empty.
var ErrNoCommand = errors.New("helper command not configured")

// Config controls how backups are named and which helpers move them around.
type Config struct {
	CopyCommand     string        `yaml:"copy_command"`
	RemoveCommand   string        `yaml:"remove_command"`
	TimestampLayout string        `yaml:"timestamp_layout"`
	Suffix          string        `yaml:"suffix"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the stock helpers and naming scheme.
func DefaultConfig() Config {
	return Config{
		CopyCommand:     "cp",
		RemoveCommand:   "rm",
		TimestampLayout: "02-01-2006-15:04:05",
		Suffix:          ".backup",
		Timeout:         time.Minute,
	}
}

// CommandError reports a helper that could not be started, exited non-zero,
// or was killed.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Guard snapshots a target file before a mutation.
type Guard struct {
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger used for helper invocations.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		g.log = l
	}
}

// WithClock replaces time.Now for backup names.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// New creates a Guard. Empty Config fields fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Guard {
	def := DefaultConfig()
	if cfg.CopyCommand == "" {
		cfg.CopyCommand = def.CopyCommand
	}
	if cfg.RemoveCommand == "" {
		cfg.RemoveCommand = def.RemoveCommand
	}
	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = def.TimestampLayout
	}
	if cfg.Suffix == "" {
		cfg.Suffix = def.Suffix
	}

	g := &Guard{
		cfg: cfg,
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns a backup path for target that does not exist yet:
// <target>-<timestamp><suffix>, or <target>-<timestamp>-<n><suffix> when
// that is taken.
func (g *Guard) Name(target string) (string, error) {
	base := target + "-" + g.now().Format(g.cfg.TimestampLayout)
	name := base + g.cfg.Suffix
	for i := 1; ; i++ {
		_, err := os.Lstat(name)
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking backup name: %w", err)
		}
		name = base + "-" + strconv.Itoa(i) + g.cfg.Suffix
	}
}

// Snapshot copies target to a fresh backup path and returns that path.
func (g *Guard) Snapshot(ctx context.Context, target string) (string, error) {
	name, err := g.Name(target)
	if err != nil {
		return "", err
	}
	if err := g.run(ctx, g.cfg.CopyCommand, target, name); err != nil {
		return "", fmt.Errorf("backing up %s: %w", target, err)
	}
	g.log.Debug("Backup created", zap.String("target", target), zap.String("backup", name))
	return name, nil
}

// Discard removes a backup that is no longer needed.
func (g *Guard) Discard(ctx context.Context, backup string) error {
	if err := g.run(ctx, g.cfg.RemoveCommand, backup); err != nil {
		return fmt.Errorf("removing backup: %w", err)
	}
	g.log.Debug("Backup discarded", zap.String("backup", backup))
	return nil
}

// Run snapshots target and calls fn with the backup path. When fn reports
// no change the backup is discarded and Run returns an empty path. On
// success or failure of fn the backup is kept and its path returned.
func (g *Guard) Run(ctx context.Context, target string, fn func(backup string) (bool, error)) (string, error) {
	name, err := g.Snapshot(ctx, target)
	if err != nil {
		return "", err
	}

	changed, err := fn(name)
	if err != nil {
		g.log.Warn("Mutation failed, backup kept",
			zap.String("target", target), zap.String("backup", name), zap.Error(err))
		return name, err
	}
	if !changed {
		if err := g.Discard(ctx, name); err != nil {
			return name, err
		}
		return "", nil
	}
	return name, nil
}

// Restore copies backup over target.
func (g *Guard) Restore(ctx context.Context, backup, target string) error {
	if _, err := os.Stat(backup); err != nil {
		return fmt.Errorf("restoring %s: %w", target, err)
	}
	if err := g.run(ctx, g.cfg.CopyCommand, backup, target); err != nil {
		return fmt.Errorf("restoring %s: %w", target, err)
	}
	g.log.Info("Backup restored", zap.String("backup", backup), zap.String("target", target))
	return nil
}

func (g *Guard) run(ctx context.Context, command string, operands ...string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return ErrNoCommand
	}
	args = append(args, operands...)

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr

	g.log.Debug("Running helper", zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return nil
}
