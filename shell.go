package main

import (
	"context"
	"fmt"
	"strings"

	"library-client/library"
)

func printShellHelp(role library.Role) {
	fmt.Println("Available commands:")
	fmt.Println("  Session: login, register, logout, whoami")
	fmt.Println("  Books: list books, search book, list genres")
	switch {
	case role.IsMember():
		fmt.Println("  Circulation: issue book, my issuances, return")
	case role.CanManageCatalog():
		fmt.Println("  Books: add book, edit book, delete book")
		fmt.Println("  Circulation: list issuances, active issuances, issue, return")
	}
	if role.CanManageUsers() {
		fmt.Println("  Users: list users, add user, edit user, delete user")
	}
	fmt.Println("  System: help, exit")
}

func runShell(ctx context.Context, a *app) {
	sc := a.sc

	fmt.Println("Welcome to the Library Management System!")
	if _, err := a.requireLogin(); err == nil {
		printShellHelp(a.mgr.Role())
	} else if !handleLogin(ctx, a) {
		return
	}

	for {
		fmt.Print("\n> ")
		if !sc.Scan() {
			break
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))

		var err error
		switch cmd {
		case "":
			continue
		case "login":
			handleLogin(ctx, a)
		case "register":
			err = a.register(ctx)
		case "logout":
			a.mgr.Session.Logout()
		case "whoami":
			err = a.whoami()
		case "list books":
			err = a.listBooks(ctx, "", "", "")
		case "search book":
			err = handleSearchBooks(ctx, a)
		case "list genres":
			err = a.listGenres(ctx)
		case "add book":
			err = a.addBook(ctx)
		case "edit book":
			if id, ok := askID(sc, "Book ID: "); ok {
				err = a.editBook(ctx, id)
			}
		case "delete book":
			if id, ok := askID(sc, "Book ID: "); ok {
				err = a.deleteBook(ctx, id)
			}
		case "issue book":
			if id, ok := askID(sc, "Book ID: "); ok {
				err = a.issueBook(ctx, id)
			}
		case "list issuances", "my issuances":
			err = a.listIssuances(ctx, false)
		case "active issuances":
			err = a.listIssuances(ctx, true)
		case "issue":
			err = a.issueTo(ctx, 0, 0, "")
		case "return":
			if id, ok := askID(sc, "Issuance ID: "); ok {
				err = a.returnIssuance(ctx, id)
			}
		case "list users":
			err = a.listUsers(ctx)
		case "add user":
			err = a.addUser(ctx)
		case "edit user":
			if id, ok := askID(sc, "User ID: "); ok {
				err = a.editUser(ctx, id)
			}
		case "delete user":
			if id, ok := askID(sc, "User ID: "); ok {
				err = a.deleteUser(ctx, id)
			}
		case "help":
			printShellHelp(a.mgr.Role())
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
		}

		if err != nil {
			if _, ok := err.(shownError); !ok {
				fmt.Printf("Error: %v\n", err)
			}
		}
		if a.loggedOut {
			if !handleLogin(ctx, a) {
				return
			}
		}
	}
}

// handleLogin prompts until a login succeeds. It reports false when input ends.
func handleLogin(ctx context.Context, a *app) bool {
	for {
		username, ok := ask(a.sc, "Username: ")
		if !ok {
			return false
		}
		if err := a.login(ctx, username); err == nil {
			if _, err := a.requireLogin(); err == nil {
				printShellHelp(a.mgr.Role())
				return true
			}
		}
		fmt.Println("Try again, or press Ctrl-D to quit.")
	}
}

func handleSearchBooks(ctx context.Context, a *app) error {
	term, ok := ask(a.sc, "Search (title or author): ")
	if !ok {
		return nil
	}
	genre, ok := ask(a.sc, "Genre (ID, name or blank for all): ")
	if !ok {
		return nil
	}
	status, ok := ask(a.sc, "Status (available, issued or blank for all): ")
	if !ok {
		return nil
	}
	return a.listBooks(ctx, term, genre, status)
}
