// Package project scaffolds new Linera projects with the linera CLI.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/internal/exec"
)

var (
	// ErrInvalidName is returned for a name that is not lowercase letters,
	// digits and hyphens starting with a letter or digit.
	ErrInvalidName = errors.New("invalid project name: use lowercase letters, numbers, and hyphens")
	// ErrExists is returned when the target directory already exists.
	ErrExists = errors.New("directory already exists")
	// ErrLineraNotFound is returned when the linera CLI is not on PATH.
	ErrLineraNotFound = errors.New("linera CLI not found on PATH; install the SDK first")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidateName checks a project name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("project name is required")
	}
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// Creator runs `linera project new`.
type Creator struct {
	runner exec.CommandRunner
	log    zerolog.Logger
}

// NewCreator creates a Creator.
func NewCreator(runner exec.CommandRunner, log zerolog.Logger) *Creator {
	return &Creator{runner: runner, log: log.With().Str("component", "project").Logger()}
}

// Create scaffolds parentDir/name and returns the project path.
func (c *Creator) Create(ctx context.Context, parentDir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	parent, err := filepath.Abs(parentDir)
	if err != nil {
		return "", fmt.Errorf("resolve parent directory: %w", err)
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return "", fmt.Errorf("parent directory %s does not exist", parent)
	}

	path := filepath.Join(parent, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}

	if !c.runner.Exists(ctx, "linera") {
		return "", ErrLineraNotFound
	}

	c.log.Info().Str("path", path).Msg("creating project")
	out, err := c.runner.Run(ctx, parent, "linera", "project", "new", path)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("linera project new: %s", msg)
	}
	return path, nil
}
