package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Availability is the catalog's status filter.
type Availability string

const (
	AvailabilityAll       Availability = ""
	AvailabilityAvailable Availability = "available"
	AvailabilityIssued    Availability = "issued"
)

// ParseAvailability accepts "", "all", "available" and "issued".
func ParseAvailability(s string) (Availability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return AvailabilityAll, nil
	case "available":
		return AvailabilityAvailable, nil
	case "issued":
		return AvailabilityIssued, nil
	}
	return "", fmt.Errorf("unknown status %q (want available or issued)", s)
}

// BookFilter is applied client-side; every set field must match.
type BookFilter struct {
	Search       string
	GenreID      int64
	Availability Availability
}

// FilterBooks returns the books matching every predicate of f: case-insensitive
// substring on title or author, genre equality, and availability.
func FilterBooks(books []Book, f BookFilter) []Book {
	term := strings.ToLower(f.Search)
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if term != "" &&
			!strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(b.Author), term) {
			continue
		}
		if f.GenreID != 0 && b.Genre != f.GenreID {
			continue
		}
		switch f.Availability {
		case AvailabilityAvailable:
			if !b.Available {
				continue
			}
		case AvailabilityIssued:
			if b.Available {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// CatalogView is the book catalog screen: books, genres, filters and book mutations.
type CatalogView struct {
	viewBase

	mu      sync.Mutex
	books   []Book
	genres  []Genre
	filter  BookFilter
	visible []Book
}

func NewCatalogView(api *Client, session SessionContext, ui UI, log *slog.Logger) *CatalogView {
	return &CatalogView{
		viewBase: newViewBase(api, session, ui, log, "catalog"),
		books:    []Book{},
		genres:   []Genre{},
		visible:  []Book{},
	}
}

// Load fetches books and genres. Failures are logged and leave the previous data.
func (v *CatalogView) Load(ctx context.Context) error {
	berr := v.FetchBooks(ctx)
	gerr := v.FetchGenres(ctx)
	if berr != nil {
		return berr
	}
	return gerr
}

func (v *CatalogView) FetchBooks(ctx context.Context) error {
	books, err := fetchCollection[Book](ctx, v.api, booksPath)
	if err != nil {
		v.log.Error("fetch_books_failed", "error", err)
	}
	if books != nil {
		v.mu.Lock()
		v.books = books
		v.recompute()
		v.mu.Unlock()
	}
	return err
}

func (v *CatalogView) FetchGenres(ctx context.Context) error {
	genres, err := fetchCollection[Genre](ctx, v.api, genresPath)
	if err != nil {
		v.log.Error("fetch_genres_failed", "error", err)
	}
	if genres != nil {
		v.mu.Lock()
		v.genres = genres
		v.mu.Unlock()
	}
	return err
}

// ------------------ Filters ------------------

func (v *CatalogView) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Search = term
	v.recompute()
}

func (v *CatalogView) SetGenre(id int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.GenreID = id
	v.recompute()
}

func (v *CatalogView) SetAvailability(a Availability) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Availability = a
	v.recompute()
}

func (v *CatalogView) SetFilter(f BookFilter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
	v.recompute()
}

func (v *CatalogView) Filter() BookFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// recompute must be called with v.mu held.
func (v *CatalogView) recompute() {
	v.visible = FilterBooks(v.books, v.filter)
}

// ------------------ Accessors ------------------

// Books returns the filtered catalog.
func (v *CatalogView) Books() []Book {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Book(nil), v.visible...)
}

// AllBooks returns the unfiltered catalog.
func (v *CatalogView) AllBooks() []Book {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Book(nil), v.books...)
}

func (v *CatalogView) Genres() []Genre {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Genre(nil), v.genres...)
}

// Book looks a title up in the last fetched catalog.
func (v *CatalogView) Book(id int64) (Book, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range v.books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

// GenreByName resolves a genre case-insensitively from the last fetched list.
func (v *CatalogView) GenreByName(name string) (Genre, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, g := range v.genres {
		if strings.EqualFold(g.Name, strings.TrimSpace(name)) {
			return g, true
		}
	}
	return Genre{}, false
}

// ------------------ Mutations ------------------

// Save creates the book when id is 0 and replaces it otherwise, then re-fetches.
func (v *CatalogView) Save(ctx context.Context, id int64, in BookInput) error {
	if err := validateBook(in); err != nil {
		return v.fail("save_book_rejected", err, err.Error())
	}

	var err error
	if id == 0 {
		_, err = v.api.Post(ctx, booksPath, in)
	} else {
		_, err = v.api.Put(ctx, fmt.Sprintf("%s%d/", booksPath, id), in)
	}
	if err != nil {
		return v.fail("save_book_failed", err, ErrorMessage(err, "Failed to save book"))
	}

	if id == 0 {
		v.ui.Alert("Book added successfully")
	} else {
		v.ui.Alert("Book updated successfully")
	}
	v.FetchBooks(ctx)
	return nil
}

// Delete asks for confirmation and, only if given, deletes the book and re-fetches.
// It reports whether a delete request was sent and succeeded.
func (v *CatalogView) Delete(ctx context.Context, id int64) (bool, error) {
	if !v.ui.Confirm("Are you sure you want to delete this book?") {
		return false, nil
	}
	if _, err := v.api.Delete(ctx, fmt.Sprintf("%s%d/", booksPath, id)); err != nil {
		return false, v.fail("delete_book_failed", err, "Failed to delete book")
	}
	v.ui.Alert("Book deleted successfully")
	v.FetchBooks(ctx)
	return true, nil
}

// Issue borrows a book for the logged-in member, due LoanPeriod from now. The backend
// assigns the borrower, so no user is sent.
func (v *CatalogView) Issue(ctx context.Context, bookID int64) error {
	payload := issuancePayload{
		Book:    bookID,
		DueDate: isoTime(v.now().Add(LoanPeriod)),
	}
	if _, err := v.api.Post(ctx, issuancesPath, payload); err != nil {
		msg, ok := FieldMessage(err, "user")
		if !ok {
			msg, ok = DetailMessage(err)
		}
		if !ok {
			msg = "Failed to issue book. Please try again."
		}
		return v.fail("issue_book_failed", err, msg)
	}
	v.ui.Alert("Book issued successfully!")
	v.FetchBooks(ctx)
	return nil
}

func validateBook(in BookInput) error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Author) == "" {
		missing = append(missing, "author")
	}
	if in.Genre == 0 {
		missing = append(missing, "genre")
	}
	if strings.TrimSpace(in.PublicationDate) == "" {
		missing = append(missing, "publication date")
	}
	if strings.TrimSpace(in.ISBN) == "" {
		missing = append(missing, "isbn")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Required: " + strings.Join(missing, ", ")}
	}
	return nil
}
