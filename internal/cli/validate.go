package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/logging"
	"github.com/dukerupert/simplechores/internal/model"
)

// NewValidateCommand checks a chores document without touching any state.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <chores-file>",
		Short: "Check a chores document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func runValidate(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	snap, err := config.Parse(data)
	if err != nil {
		var cle *model.ConfigLoadError
		if errors.As(err, &cle) {
			cle.Path = path
		}
		return err
	}
	fmt.Fprintf(w, "%s: ok (%d chores, %d privileges, %d assignees)\n",
		path, len(snap.Chores), len(snap.Privileges), len(snap.Assignees()))
	return nil
}

// NewFmtCommand rewrites a chores document in canonical form: defaults
// filled in and slugs normalized.
func NewFmtCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <chores-file>",
		Short: "Rewrite a chores document in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(cmd.ErrOrStderr(), "warn", "text")
			return runFmt(args[0], logger)
		},
	}
}

func runFmt(path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("fmt: %w", err)
	}
	s := config.NewStore(config.NewFileSource(path), logger)
	snap, err := s.Load()
	if err != nil {
		return err
	}
	return s.Save(snap)
}
