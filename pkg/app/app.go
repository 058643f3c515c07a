// Package app provides the minimal cobra/pflag bootstrap the
// otahub-server command is built on: bind an IOptions to a
// flag set, validate it, and hand off to a RunFunc. Grounded on the
// call sites in the teacher's cmd/*/app/app.go files, which reference
// an identical pkg/app.App/Option/RunFunc contract that is not itself
// present in the retrieved source — this package supplies it.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nimbic-io/otahub/pkg/options"
)

// RunFunc is the function an App executes once its flags are bound and
// validated.
type RunFunc func() error

// App wraps a cobra.Command, deferring flag registration and
// validation to an options.IOptions and the actual work to a RunFunc.
type App struct {
	name        string
	shortDesc   string
	longDesc    string
	opts        options.IOptions
	runFunc     RunFunc
	validArgs   cobra.PositionalArgs
	silenceUsage bool

	cmd *cobra.Command
}

// Option configures an App at construction time.
type Option func(*App)

// WithDescription sets the command's long description (shown in --help).
func WithDescription(desc string) Option {
	return func(a *App) { a.longDesc = desc }
}

// WithOptions attaches the options.IOptions this App's flags bind to
// and validates before RunFunc executes.
func WithOptions(opts options.IOptions) Option {
	return func(a *App) { a.opts = opts }
}

// WithRunFunc sets the function executed once options validate.
func WithRunFunc(fn RunFunc) Option {
	return func(a *App) { a.runFunc = fn }
}

// WithDefaultValidArgs accepts any positional arguments (cobra's
// default is to accept them; this documents the choice explicitly, as
// every teacher cmd/*/app/app.go call site does).
func WithDefaultValidArgs() Option {
	return func(a *App) { a.validArgs = cobra.ArbitraryArgs }
}

// WithLoggerContextExtractor is accepted for call-site compatibility
// with the teacher's app construction but is a no-op here: structured
// logging context propagation is out of this module's scope.
func WithLoggerContextExtractor(map[string]func(context.Context) string) Option {
	return func(*App) {}
}

// NewApp constructs an App named name with a one-line description used
// as the cobra command's Short text.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:         name,
		shortDesc:    short,
		silenceUsage: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.longDesc,
		Args:          a.validArgs,
		SilenceUsage:  a.silenceUsage,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.opts != nil {
				if errs := a.opts.Validate(); len(errs) > 0 {
					return fmt.Errorf("invalid configuration: %w", joinErrors(errs))
				}
			}
			if a.runFunc == nil {
				return fmt.Errorf("%s: no run function configured", a.name)
			}
			return a.runFunc()
		},
	}

	fs := pflag.NewFlagSet(a.name, pflag.ExitOnError)
	if a.opts != nil {
		a.opts.AddFlags(fs)
	}
	cmd.Flags().AddFlagSet(fs)

	a.cmd = cmd
}

// Execute runs the underlying cobra command, parsing os.Args.
func (a *App) Execute() error {
	return a.cmd.Execute()
}

// Command exposes the underlying cobra.Command, e.g. for adding it as a
// subcommand of a larger CLI tree.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func joinErrors(errs []error) error {
	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return fmt.Errorf("%s", msg)
}
