package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/chowrider/internal/actions"
	"github.com/chrisdamba/chowrider/internal/api"
	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/logger"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
	"github.com/chrisdamba/chowrider/internal/validate"
)

var (
	cfgFile string
	cfg     *models.Config
	log     *slog.Logger
)

var errNotSignedIn = errors.New("not signed in, run `chowrider login` first")

var rootCmd = &cobra.Command{
	Use:   "chowrider",
	Short: "Headless rider and dispatcher client for the Choweazy delivery platform",
	Long: `chowrider signs in as a dispatcher or rider, mirrors the backend's orders, wallet and
dashboard, follows realtime order events over socket.io and performs order actions
(accept, pickup, deliver, payout) from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = models.LoadConfigWith(viper.GetViper(), cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Service, cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chowrider.yaml or $HOME/.chowrider.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "backend REST base URL")
	rootCmd.PersistentFlags().String("socket-url", "", "realtime server URL")
	rootCmd.PersistentFlags().String("storage", "", "token storage backend (file, memory, postgres)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	bindFlag("api.base_url", "api-url")
	bindFlag("socket.url", "socket-url")
	bindFlag("storage.backend", "storage")
	bindFlag("log.level", "log-level")
}

func bindFlag(key, flag string) {
	cobra.CheckErr(viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// consoleNotifier prints action notifications the way the app shows toasts.
func consoleNotifier(w io.Writer) actions.Notifier {
	return actions.NotifierFunc(func(n actions.Notification) {
		mark := "✔"
		if n.Kind == actions.KindError {
			mark = "✖"
		}
		if n.Body == "" {
			fmt.Fprintf(w, "%s %s\n", mark, n.Title)
			return
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, n.Title, n.Body)
	})
}

// newApp builds the client for a one-shot command. Event mirroring only
// runs for long-lived commands.
func newApp(cmd *cobra.Command, opts app.Options, mirror bool) (*app.App, error) {
	c := *cfg
	if !mirror {
		c.Output.Destination = "none"
	}
	if opts.Notifier == nil {
		opts.Notifier = consoleNotifier(cmd.ErrOrStderr())
	}
	return app.New(cmd.Context(), &c, log, opts)
}

// signedIn restores the stored session and fails unless it is authenticated.
func signedIn(ctx context.Context, a *app.App) (session.State, error) {
	st, err := a.Session.Restore(ctx)
	if err != nil {
		return st, err
	}
	if !st.Authenticated() {
		return st, errNotSignedIn
	}
	return st, nil
}

// withSession runs fn with a restored, authenticated session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, st session.State) error) error {
	a, err := newApp(cmd, app.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	st, err := signedIn(ctx, a)
	if err != nil {
		return err
	}
	return fn(ctx, a, st)
}

func requireRole(st session.State, role string) error {
	if st.User.Role != role {
		return fmt.Errorf("this command is for %s accounts, you are signed in as %s", role, st.User.Role)
	}
	return nil
}

// describe turns an error into the line shown to the user.
func describe(err error) error {
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	var actionErr *actions.Error
	if errors.As(err, &actionErr) {
		return errors.New(actionErr.Message)
	}
	if errors.Is(err, actions.ErrPending) {
		return errors.New("that action is already in progress")
	}
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		return errors.New(api.UserMessage(err, "Request failed"))
	}
	return err
}
