package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"library-client/library"
)

// ------------------ Session ------------------

func (a *app) login(ctx context.Context, username string) error {
	if username == "" {
		var ok bool
		if username, ok = ask(a.sc, "Username: "); !ok {
			return nil
		}
	}
	password, err := readPassword(a.sc, "Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	res := a.mgr.Session.Login(ctx, username, password)
	if !res.Success {
		fmt.Printf("Login failed: %s\n", res.Error)
		return shown(fmt.Errorf("login failed"))
	}
	a.loggedOut = false
	u, _ := a.mgr.Session.CurrentUser()
	fmt.Printf("Logged in as %s (%s)\n", u.Username, u.Role)
	return nil
}

func (a *app) register(ctx context.Context) error {
	var in library.RegisterInput
	var ok bool
	if in.Username, ok = ask(a.sc, "Username: "); !ok {
		return nil
	}
	if in.Email, ok = ask(a.sc, "Email: "); !ok {
		return nil
	}
	if in.Phone, ok = ask(a.sc, "Phone (optional): "); !ok {
		return nil
	}
	if in.Address, ok = ask(a.sc, "Address (optional): "); !ok {
		return nil
	}
	password, err := readPassword(a.sc, "Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	in.Password = password

	res := a.mgr.Session.Register(ctx, in)
	if !res.Success {
		fmt.Printf("Registration failed: %s\n", res.Error)
		return shown(fmt.Errorf("registration failed"))
	}
	a.loggedOut = false
	u, _ := a.mgr.Session.CurrentUser()
	fmt.Printf("Registered and logged in as %s (%s)\n", u.Username, u.Role)
	return nil
}

func (a *app) whoami() error {
	s, ok := a.mgr.Session.Get()
	if !ok {
		return errNotLoggedIn
	}
	u := s.User
	fmt.Printf("%-10s %s\n", "User:", u.Username)
	fmt.Printf("%-10s %d\n", "ID:", u.ID)
	fmt.Printf("%-10s %s\n", "Role:", u.Role)
	if u.Email != "" {
		fmt.Printf("%-10s %s\n", "Email:", u.Email)
	}
	if exp, ok := s.AccessExpiresAt(); ok {
		fmt.Printf("%-10s %s\n", "Token exp:", exp.Local().Format(time.DateTime))
	}
	fmt.Printf("%-10s %s\n", "API:", a.cfg.APIURL)
	return nil
}

// ------------------ Books ------------------

// resolveGenre accepts a genre ID or a name from the loaded catalog.
func (a *app) resolveGenre(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "all") {
		return 0, nil
	}
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		return id, nil
	}
	g, ok := a.mgr.Catalog.GenreByName(v)
	if !ok {
		return 0, fmt.Errorf("unknown genre %q", v)
	}
	return g.ID, nil
}

func (a *app) genreName(id int64) string {
	for _, g := range a.mgr.Catalog.Genres() {
		if g.ID == id {
			return g.Name
		}
	}
	return ""
}

func (a *app) listBooks(ctx context.Context, search, genre, status string) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	avail, err := library.ParseAvailability(status)
	if err != nil {
		return err
	}
	if err := a.mgr.Catalog.Load(ctx); err != nil {
		fmt.Println("Could not load the catalog; showing what is available.")
	}
	genreID, err := a.resolveGenre(genre)
	if err != nil {
		return err
	}
	a.mgr.Catalog.SetFilter(library.BookFilter{Search: search, GenreID: genreID, Availability: avail})

	books := a.mgr.Catalog.Books()
	if len(books) == 0 {
		fmt.Println("No books found.")
		return nil
	}
	fmt.Printf("%-5s %-30s %-25s %-15s %-10s\n", "ID", "Title", "Author", "Genre", "Status")
	fmt.Println(strings.Repeat("-", 90))
	for _, b := range books {
		name := b.GenreName
		if name == "" {
			name = a.genreName(b.Genre)
		}
		fmt.Println(library.PrettyBook(b, name))
	}
	return nil
}

func (a *app) listGenres(ctx context.Context) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.mgr.Catalog.FetchGenres(ctx); err != nil {
		fmt.Println("Could not load genres.")
		return shown(err)
	}
	genres := a.mgr.Catalog.Genres()
	if len(genres) == 0 {
		fmt.Println("No genres.")
		return nil
	}
	fmt.Printf("%-5s %s\n", "ID", "Name")
	fmt.Println(strings.Repeat("-", 30))
	for _, g := range genres {
		fmt.Printf("%-5d %s\n", g.ID, g.Name)
	}
	return nil
}

// bookForm prompts for every book field, offering def as the current values.
func (a *app) bookForm(def library.BookInput, editing bool) (library.BookInput, bool) {
	in := def
	var ok bool
	field := func(label, cur string) (string, bool) {
		if editing {
			return askDefault(a.sc, label, cur)
		}
		return ask(a.sc, label+": ")
	}

	if in.Title, ok = field("Title", def.Title); !ok {
		return in, false
	}
	if in.Author, ok = field("Author", def.Author); !ok {
		return in, false
	}

	if genres := a.mgr.Catalog.Genres(); len(genres) > 0 {
		names := make([]string, 0, len(genres))
		for _, g := range genres {
			names = append(names, fmt.Sprintf("%d=%s", g.ID, g.Name))
		}
		fmt.Printf("Genres: %s\n", strings.Join(names, ", "))
	}
	cur := ""
	if def.Genre != 0 {
		cur = strconv.FormatInt(def.Genre, 10)
	}
	g, ok := field("Genre (ID or name)", cur)
	if !ok {
		return in, false
	}
	id, err := a.resolveGenre(g)
	if err != nil {
		fmt.Println(err)
		return in, false
	}
	in.Genre = id

	if in.PublicationDate, ok = field("Publication date (YYYY-MM-DD)", def.PublicationDate); !ok {
		return in, false
	}
	if in.ISBN, ok = field("ISBN", def.ISBN); !ok {
		return in, false
	}
	if editing {
		yn := "n"
		if def.Available {
			yn = "y"
		}
		v, ok := askDefault(a.sc, "Available (y/n)", yn)
		if !ok {
			return in, false
		}
		in.Available = strings.HasPrefix(strings.ToLower(v), "y")
	} else {
		in.Available = true
	}
	return in, true
}

func (a *app) addBook(ctx context.Context) error {
	if err := a.requireStaff(); err != nil {
		return err
	}
	a.mgr.Catalog.FetchGenres(ctx)
	in, ok := a.bookForm(library.BookInput{}, false)
	if !ok {
		return nil
	}
	return shown(a.mgr.Catalog.Save(ctx, 0, in))
}

func (a *app) editBook(ctx context.Context, id int64) error {
	if err := a.requireStaff(); err != nil {
		return err
	}
	a.mgr.Catalog.Load(ctx)
	b, ok := a.mgr.Catalog.Book(id)
	if !ok {
		return fmt.Errorf("book %d not found", id)
	}
	in, ok := a.bookForm(library.BookInputFrom(b), true)
	if !ok {
		return nil
	}
	return shown(a.mgr.Catalog.Save(ctx, id, in))
}

func (a *app) deleteBook(ctx context.Context, id int64) error {
	if err := a.requireStaff(); err != nil {
		return err
	}
	deleted, err := a.mgr.Catalog.Delete(ctx, id)
	if err != nil {
		return shown(err)
	}
	if !deleted {
		fmt.Println("Cancelled.")
	}
	return nil
}

// issueBook is the member's "borrow this" action.
func (a *app) issueBook(ctx context.Context, id int64) error {
	u, err := a.requireLogin()
	if err != nil {
		return err
	}
	if !u.Role.IsMember() {
		return fmt.Errorf("staff issue books with 'issuances issue'")
	}
	return shown(a.mgr.Catalog.Issue(ctx, id))
}

// ------------------ Issuances ------------------

func (a *app) listIssuances(ctx context.Context, activeOnly bool) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.mgr.Issuances.FetchIssuances(ctx); err != nil {
		fmt.Println("Could not load issuances; showing what is available.")
	}

	items := a.mgr.Issuances.Issuances()
	if activeOnly {
		items = a.mgr.Issuances.Active()
	}
	if len(items) == 0 {
		fmt.Println("No issuances.")
		return nil
	}

	now := time.Now()
	fmt.Printf("%-5s %-30s %-15s %-17s %-17s %s\n", "ID", "Book", "User", "Due", "Returned", "Status")
	fmt.Println(strings.Repeat("-", 100))
	for _, is := range items {
		returned := "-"
		status := "Active"
		if !is.Active() {
			returned = is.ReturnDate.Local().Format("2006-01-02 15:04")
			status = "Returned"
		}
		if is.Overdue(now) {
			status += " (overdue)"
		}
		fmt.Printf("%-5d %-30s %-15s %-17s %-17s %s\n",
			is.ID,
			truncateString(is.BookTitle, 30),
			truncateString(is.UserName, 15),
			is.DueDate.Local().Format("2006-01-02 15:04"),
			returned,
			status,
		)
	}
	return nil
}

// issueTo is the issue form. Zero values are prompted for; members are never asked
// for a borrower.
func (a *app) issueTo(ctx context.Context, bookID, userID int64, due string) error {
	u, err := a.requireLogin()
	if err != nil {
		return err
	}
	a.mgr.Issuances.Load(ctx)

	if bookID == 0 {
		books := a.mgr.Issuances.AvailableBooks()
		if len(books) == 0 {
			fmt.Println("No books are available.")
			return nil
		}
		for _, b := range books {
			fmt.Printf("  %-5d %s\n", b.ID, truncateString(b.Title, 60))
		}
		var ok bool
		if bookID, ok = askID(a.sc, "Book ID: "); !ok {
			return nil
		}
	}
	if !u.Role.IsMember() && userID == 0 {
		for _, usr := range a.mgr.Issuances.Users() {
			fmt.Printf("  %-5d %s (%s)\n", usr.ID, usr.Username, usr.Role)
		}
		var ok bool
		if userID, ok = askID(a.sc, "User ID: "); !ok {
			return nil
		}
	}

	in := library.IssueInput{Book: bookID, User: userID}
	if due != "" {
		t, err := time.ParseInLocation(time.DateOnly, due, time.Local)
		if err != nil {
			return fmt.Errorf("invalid due date %q (want YYYY-MM-DD)", due)
		}
		in.DueDate = t
	}
	return shown(a.mgr.Issuances.Issue(ctx, in))
}

func (a *app) returnIssuance(ctx context.Context, id int64) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	return shown(a.mgr.Issuances.Return(ctx, id))
}

// ------------------ Users ------------------

func (a *app) listUsers(ctx context.Context) error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	if err := a.mgr.Admin.Load(ctx); err != nil {
		fmt.Println("Could not load users; showing what is available.")
	}
	users := a.mgr.Admin.Users()
	if len(users) == 0 {
		fmt.Println("No users.")
		return nil
	}
	fmt.Printf("%-5s %-20s %-30s %-10s %-15s\n", "ID", "Username", "Email", "Role", "Phone")
	fmt.Println(strings.Repeat("-", 85))
	for _, u := range users {
		fmt.Printf("%-5d %-20s %-30s %-10s %-15s\n",
			u.ID, truncateString(u.Username, 20), truncateString(u.Email, 30), u.Role, truncateString(u.Phone, 15))
	}
	return nil
}

func (a *app) userForm(def library.RegisterInput, editing bool) (library.RegisterInput, bool) {
	in := def
	var ok bool
	field := func(label, cur string) (string, bool) {
		if editing {
			return askDefault(a.sc, label, cur)
		}
		return ask(a.sc, label+": ")
	}
	if in.Username, ok = field("Username", def.Username); !ok {
		return in, false
	}
	if in.Email, ok = field("Email", def.Email); !ok {
		return in, false
	}
	role, ok := askDefault(a.sc, "Role (member/librarian/admin)", string(orMember(def.Role)))
	if !ok {
		return in, false
	}
	in.Role = library.Role(strings.ToLower(role))
	if in.Phone, ok = field("Phone", def.Phone); !ok {
		return in, false
	}
	if in.Address, ok = field("Address", def.Address); !ok {
		return in, false
	}

	label := "Password: "
	if editing {
		label = "Password (blank keeps current): "
	}
	password, err := readPassword(a.sc, label)
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return in, false
	}
	in.Password = password
	return in, true
}

func orMember(r library.Role) library.Role {
	if r == "" {
		return library.RoleMember
	}
	return r
}

func (a *app) addUser(ctx context.Context) error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	in, ok := a.userForm(library.RegisterInput{}, false)
	if !ok {
		return nil
	}
	return shown(a.mgr.Admin.Save(ctx, 0, in))
}

func (a *app) editUser(ctx context.Context, id int64) error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	a.mgr.Admin.Load(ctx)
	u, ok := a.mgr.Admin.User(id)
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	def := library.RegisterInput{
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Phone:    u.Phone,
		Address:  u.Address,
	}
	in, ok := a.userForm(def, true)
	if !ok {
		return nil
	}
	return shown(a.mgr.Admin.Save(ctx, id, in))
}

func (a *app) deleteUser(ctx context.Context, id int64) error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	deleted, err := a.mgr.Admin.Delete(ctx, id)
	if err != nil {
		return shown(err)
	}
	if !deleted {
		fmt.Println("Cancelled.")
	}
	return nil
}
