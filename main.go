package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-client/internal/config"
	"library-client/internal/logging"
	"library-client/library"
)

// shownError marks a failure the UI has already told the user about.
type shownError struct{ error }

func shown(err error) error {
	if err == nil {
		return nil
	}
	return shownError{err}
}

var errNotLoggedIn = errors.New("not logged in; run 'library login' first")

// app is the state shared by every command and the shell.
type app struct {
	cfg config.Config
	log *slog.Logger
	sc  *bufio.Scanner
	ui  *termUI
	mgr *library.LibraryManager

	// loggedOut is set by the login redirect; the shell re-prompts when it sees it.
	loggedOut bool
}

func (a *app) open(apiOverride string) error {
	a.cfg = config.Load()
	if apiOverride != "" {
		a.cfg.APIURL = strings.TrimRight(apiOverride, "/")
	}
	a.log = logging.New(a.cfg.LogLevel, os.Stderr)
	a.sc = bufio.NewScanner(os.Stdin)
	a.ui = &termUI{sc: a.sc, out: os.Stdout}

	mgr, err := library.NewLibraryManager(a.cfg, a.log, a.ui)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	mgr.Session.OnLoginRedirect(a.onLoginRedirect)
	a.mgr = mgr
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
}

func (a *app) onLoginRedirect() {
	a.loggedOut = true
	fmt.Println("You are logged out. Please log in.")
}

func (a *app) requireLogin() (library.User, error) {
	u, ok := a.mgr.Session.CurrentUser()
	if !ok {
		return library.User{}, errNotLoggedIn
	}
	return u, nil
}

func (a *app) requireStaff() error {
	u, err := a.requireLogin()
	if err != nil {
		return err
	}
	if !u.Role.CanManageCatalog() {
		return fmt.Errorf("this needs a librarian or admin account (you are %s)", u.Role)
	}
	return nil
}

func (a *app) requireAdmin() error {
	u, err := a.requireLogin()
	if err != nil {
		return err
	}
	if !u.Role.CanManageUsers() {
		return fmt.Errorf("this needs an admin account (you are %s)", u.Role)
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	var apiURL string

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library management client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(apiURL)
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides LIBRARY_API_URL)")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newGenresCmd(a),
		newIssuancesCmd(a),
		newUsersCmd(a),
		newShellCmd(a),
	)
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		var se shownError
		if !errors.As(err, &se) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
