package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/presencectl/internal/api"
	"github.com/99minutos/presencectl/internal/api/handler"
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/service"
	"github.com/99minutos/presencectl/internal/infrastructure/config"
	"github.com/99minutos/presencectl/pkg/logger"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	passwordEnv = "PRESENCECTL_PASSWORD"
)

const usage = `usage: presencectl <command> [flags]

commands:
  login     -u NAME [-p PASSWORD]          sign in and remember the credential
  logout                                    forget the stored credential
  whoami                                    show the signed-in principal
  register  -u NAME -p PASSWORD [-role R]  create an account (admin only)
  users                                     list connected users (admin only)
  watch                                     follow the connected users list
`

// env carries what a command needs beyond its flags.
type env struct {
	stdout, stderr io.Writer
	lookup         envconfig.Lookuper
}

type command func(ctx context.Context, a *app, e env, args []string) error

var commands = map[string]command{
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"register": cmdRegister,
	"users":    cmdUsers,
	"watch":    cmdWatch,
}

// errUsage marks a bad invocation; the message has already been printed.
var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup envconfig.Lookuper) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	cfg, err := config.LoadWith(ctx, lookup)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer a.Close()

	err = cmd(ctx, a, env{stdout: stdout, stderr: stderr, lookup: lookup}, args[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		fmt.Fprintln(stderr, domain.UserMessage(err))
		a.log.Debug().Err(err).Str("command", args[0]).Msg("command failed")
		return exitError
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "%s: unexpected arguments: %s\n", fs.Name(), strings.Join(fs.Args(), " "))
		return errUsage
	}
	return nil
}

// startSession resolves the stored credential. A rejected credential is
// reported as NotAuthenticated after the store has been cleared.
func startSession(ctx context.Context, a *app) (domain.SessionState, error) {
	state, err := a.session.Start(ctx)
	if errors.Is(err, domain.ErrUnreachable) || ctx.Err() != nil {
		return state, err
	}
	if err != nil {
		a.log.Info().Err(err).Msg("stored credential no longer valid")
	}
	return state, nil
}

func cmdLogin(ctx context.Context, a *app, e env, args []string) error {
	fs := newFlagSet("login", e.stderr)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (default $"+passwordEnv+")")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *password == "" {
		*password, _ = e.lookup.Lookup(passwordEnv)
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(e.stderr, "login: -u and a password are required")
		return errUsage
	}

	state, err := a.session.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Logged in as %s (%s)\n", state.Principal.Username, state.Principal.Role)
	return nil
}

func cmdLogout(ctx context.Context, a *app, e env, args []string) error {
	if err := parse(newFlagSet("logout", e.stderr), args); err != nil {
		return err
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Logged out.")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, e env, args []string) error {
	if err := parse(newFlagSet("whoami", e.stderr), args); err != nil {
		return err
	}
	state, err := startSession(ctx, a)
	if err != nil {
		return err
	}
	if d := a.session.Guard().Authorize(domain.RoleAny); !d.Allowed {
		return d.Err()
	}
	fmt.Fprintf(e.stdout, "%s (%s)\n", state.Principal.Username, state.Principal.Role)
	return nil
}

func cmdRegister(ctx context.Context, a *app, e env, args []string) error {
	fs := newFlagSet("register", e.stderr)
	username := fs.String("u", "", "username of the new account")
	password := fs.String("p", "", "password of the new account")
	roleName := fs.String("role", string(domain.RoleUser), "role: user or admin")
	if err := parse(fs, args); err != nil {
		return err
	}
	role, err := domain.ParseRole(*roleName)
	if err != nil {
		fmt.Fprintf(e.stderr, "register: %v\n", err)
		return errUsage
	}

	if _, err := startSession(ctx, a); err != nil {
		return err
	}
	if err := a.session.Register(ctx, *username, *password, role); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Registered %s (%s)\n", *username, role)
	return nil
}

func cmdUsers(ctx context.Context, a *app, e env, args []string) error {
	if err := parse(newFlagSet("users", e.stderr), args); err != nil {
		return err
	}
	if _, err := startSession(ctx, a); err != nil {
		return err
	}

	records, err := a.session.ListConnections(ctx)
	if err != nil {
		return err
	}
	printDirectory(e.stdout, records)
	return nil
}

func cmdWatch(ctx context.Context, a *app, e env, args []string) error {
	if err := parse(newFlagSet("watch", e.stderr), args); err != nil {
		return err
	}
	if _, err := startSession(ctx, a); err != nil {
		return err
	}
	if d := a.session.Guard().Authorize(domain.RoleAdmin); !d.Allowed {
		return d.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.MetricsAddr != "" {
		stopStatus := serveStatus(ctx, a)
		defer stopStatus()
	}

	w := service.NewDirectoryWatcher(a.session, a.cfg.PollInterval, logger.Component("watcher"))
	w.OnChange = func(snapshot []domain.ConnectionRecord, diff service.DirectoryDiff) {
		for _, r := range diff.Joined {
			fmt.Fprintf(e.stdout, "+ %s %s\n", r.Username, r.Address)
		}
		for _, r := range diff.Left {
			fmt.Fprintf(e.stdout, "- %s %s\n", r.Username, r.Address)
		}
		fmt.Fprintf(e.stdout, "%d connected\n", len(snapshot))
	}
	return w.Run(ctx)
}

// serveStatus exposes health and metrics on METRICS_ADDR until the returned
// function is called.
func serveStatus(ctx context.Context, a *app) func() {
	router := api.NewStatusRouter(map[string]handler.Check{
		"session": func(context.Context) error {
			if !a.session.State().Authenticated() {
				return domain.ErrNotAuthenticated
			}
			return nil
		},
		"credential_store": func(ctx context.Context) error {
			_, err := a.store.Get(ctx)
			return err
		},
	}, logger.Component("status"))

	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("status server stopped")
		}
	}()
	a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("status server listening")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func printDirectory(w io.Writer, records []domain.ConnectionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No users connected.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tADDRESS\tCONNECTED AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Username, r.Address, r.ConnectedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}
