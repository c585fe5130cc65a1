// Package cli implements autosellctl, the support tool for running auto-sell
// operations against the store without going through the HTTP API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"packvault-autosell-api/internal/service"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The engine rejected the operation
	ExitCommandError = 2 // Setup error (config, store, invalid flags)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Services are the engine entry points the commands drive.
type Services struct {
	AutoSell  *service.AutoSellService
	Inventory *service.InventoryService
	Close     func() error
}

// Builder opens the services on demand, so --help never touches the store.
type Builder func(ctx context.Context) (*Services, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	User   string
	build  Builder
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand(build Builder) *cobra.Command {
	opts := &RootOptions{build: build}

	cmd := &cobra.Command{
		Use:   "autosellctl",
		Short: "Operate the auto-sell engine",
		Long:  "Preview, run and inspect auto-sell for a user directly against the configured store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user ID to act on (required)")

	cmd.AddCommand(newPreviewCommand(opts))
	cmd.AddCommand(newProcessCommand(opts))
	cmd.AddCommand(newSellCommand(opts))
	cmd.AddCommand(newProtectCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newGrantCommand(opts))
	cmd.AddCommand(newInventoryCommand(opts))

	return cmd
}

// withServices opens the services, runs fn and closes them.
func (o *RootOptions) withServices(cmd *cobra.Command, fn func(ctx context.Context, s *Services) error) error {
	if o.User == "" {
		return WrapExitError(ExitCommandError, "--user is required", nil)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := o.build(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open services", err)
	}
	if s.Close != nil {
		defer s.Close()
	}

	if err := fn(ctx, s); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return WrapExitError(ExitFailure, service.KindOf(err).String(), err)
	}
	return nil
}

// emit writes v as JSON, or runs text for the text format.
func (o *RootOptions) emit(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
