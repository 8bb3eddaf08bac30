package main

import (
	"github.com/spf13/cobra"
)

func idArg(run func(cmd *cobra.Command, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, id)
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.login(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.register(cmd.Context())
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.mgr.Session.Logout()
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.whoami()
		},
	}
}

func newBooksCmd(a *app) *cobra.Command {
	books := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}

	var search, genre, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listBooks(cmd.Context(), search, genre, status)
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "match title or author")
	list.Flags().StringVarP(&genre, "genre", "g", "", "genre ID or name")
	list.Flags().StringVar(&status, "status", "", "available or issued")

	books.AddCommand(
		list,
		&cobra.Command{
			Use:   "add",
			Short: "Add a book (librarian, admin)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.addBook(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "edit ID",
			Short: "Edit a book (librarian, admin)",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.editBook(cmd.Context(), id)
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a book (librarian, admin)",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.deleteBook(cmd.Context(), id)
			}),
		},
		&cobra.Command{
			Use:   "issue ID",
			Short: "Borrow a book for two weeks (member)",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.issueBook(cmd.Context(), id)
			}),
		},
	)
	return books
}

func newGenresCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listGenres(cmd.Context())
		},
	}
}

func newIssuancesCmd(a *app) *cobra.Command {
	issuances := &cobra.Command{
		Use:   "issuances",
		Short: "List, issue and return loans",
	}

	var active bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listIssuances(cmd.Context(), active)
		},
	}
	list.Flags().BoolVar(&active, "active", false, "only loans not yet returned")

	var book, user int64
	var due string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.issueTo(cmd.Context(), book, user, due)
		},
	}
	issue.Flags().Int64Var(&book, "book", 0, "book ID (prompted when omitted)")
	issue.Flags().Int64Var(&user, "user", 0, "borrower ID, staff only (prompted when omitted)")
	issue.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD (default two weeks from now)")

	issuances.AddCommand(
		list,
		issue,
		&cobra.Command{
			Use:   "return ID",
			Short: "Mark a loan returned",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.returnIssuance(cmd.Context(), id)
			}),
		},
	)
	return issuances
}

func newUsersCmd(a *app) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (admin)",
	}
	users.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.listUsers(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "add",
			Short: "Create a user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.addUser(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "edit ID",
			Short: "Edit a user",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.editUser(cmd.Context(), id)
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: idArg(func(cmd *cobra.Command, id int64) error {
				return a.deleteUser(cmd.Context(), id)
			}),
		},
	)
	return users
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runShell(cmd.Context(), a)
			return nil
		},
	}
}
