package library

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// IssuanceView lists loans and lets staff issue and return books.
type IssuanceView struct {
	viewBase

	mu        sync.Mutex
	issuances []Issuance
	books     []Book
	users     []User
}

func NewIssuanceView(api *Client, session SessionContext, ui UI, log *slog.Logger) *IssuanceView {
	return &IssuanceView{
		viewBase:  newViewBase(api, session, ui, log, "issuances"),
		issuances: []Issuance{},
		books:     []Book{},
		users:     []User{},
	}
}

// Load fetches issuances and books. Users are only fetched for staff, the only
// roles that pick a borrower.
func (v *IssuanceView) Load(ctx context.Context) error {
	errs := []error{v.FetchIssuances(ctx), v.FetchBooks(ctx)}
	if v.role().CanManageCatalog() {
		errs = append(errs, v.FetchUsers(ctx))
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *IssuanceView) FetchIssuances(ctx context.Context) error {
	items, err := fetchCollection[Issuance](ctx, v.api, issuancesPath)
	if err != nil {
		v.log.Error("fetch_issuances_failed", "error", err)
	}
	if items != nil {
		v.mu.Lock()
		v.issuances = items
		v.mu.Unlock()
	}
	return err
}

func (v *IssuanceView) FetchBooks(ctx context.Context) error {
	items, err := fetchCollection[Book](ctx, v.api, booksPath)
	if err != nil {
		v.log.Error("fetch_books_failed", "error", err)
	}
	if items != nil {
		v.mu.Lock()
		v.books = items
		v.mu.Unlock()
	}
	return err
}

func (v *IssuanceView) FetchUsers(ctx context.Context) error {
	items, err := fetchCollection[User](ctx, v.api, usersPath)
	if err != nil {
		v.log.Error("fetch_users_failed", "error", err)
	}
	if items != nil {
		v.mu.Lock()
		v.users = items
		v.mu.Unlock()
	}
	return err
}

func (v *IssuanceView) Issuances() []Issuance {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Issuance(nil), v.issuances...)
}

// Active returns the loans that have not been returned.
func (v *IssuanceView) Active() []Issuance {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Issuance, 0, len(v.issuances))
	for _, is := range v.issuances {
		if is.Active() {
			out = append(out, is)
		}
	}
	return out
}

// AvailableBooks is what the issue form offers.
func (v *IssuanceView) AvailableBooks() []Book {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Book, 0, len(v.books))
	for _, b := range v.books {
		if b.Available {
			out = append(out, b)
		}
	}
	return out
}

func (v *IssuanceView) Users() []User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]User(nil), v.users...)
}

// Issue creates a loan. Staff must name the borrower; members borrow for themselves and
// send no user. A zero due date becomes LoanPeriod from now.
func (v *IssuanceView) Issue(ctx context.Context, in IssueInput) error {
	member := v.role().IsMember()
	if in.Book == 0 {
		err := &ValidationError{Message: "Select a book"}
		return v.fail("issue_rejected", err, err.Message)
	}
	if !member && in.User == 0 {
		err := &ValidationError{Message: "Select a user"}
		return v.fail("issue_rejected", err, err.Message)
	}

	due := in.DueDate
	if due.IsZero() {
		due = v.now().Add(LoanPeriod)
	}
	payload := issuancePayload{Book: in.Book, DueDate: isoTime(due)}
	if !member {
		user := in.User
		payload.User = &user
	}

	if _, err := v.api.Post(ctx, issuancesPath, payload); err != nil {
		return v.fail("issue_failed", err, ErrorMessage(err, "Failed to issue book"))
	}
	v.ui.Alert("Book issued successfully!")
	v.FetchIssuances(ctx)
	v.FetchBooks(ctx)
	return nil
}

// Return marks a loan as returned now.
func (v *IssuanceView) Return(ctx context.Context, id int64) error {
	path := fmt.Sprintf("%s%d/", issuancesPath, id)
	if _, err := v.api.Patch(ctx, path, returnPayload{ReturnDate: isoTime(v.now())}); err != nil {
		return v.fail("return_failed", err, "Failed to return book")
	}
	v.ui.Alert("Book returned successfully!")
	v.FetchIssuances(ctx)
	v.FetchBooks(ctx)
	return nil
}
