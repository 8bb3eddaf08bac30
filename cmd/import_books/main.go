// Command import_books adds every row of a CSV file to the remote catalog using the
// session stored by `library login`.
//
//	import_books books.csv
//
// Columns: title,author,genre,publication_date,isbn[,available]. Genre is an ID or a
// name; a header row starting with "title" is skipped.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"library-client/internal/config"
	"library-client/internal/logging"
	"library-client/library"
)

// rowUI records the last message for the row being imported. Nothing is deleted, so
// confirmations are always refused.
type rowUI struct{ last string }

func (u *rowUI) Confirm(string) bool { return false }
func (u *rowUI) Alert(msg string)    { u.last = msg }

type bookRow struct {
	Line      int
	Title     string
	Author    string
	Genre     string
	Published string
	ISBN      string
	Available bool
}

// readRows parses the CSV. Rows with the wrong number of columns are reported as errors
// with their line number instead of stopping the import.
func readRows(r io.Reader) ([]bookRow, []error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		rows []bookRow
		errs []error
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		if len(rec) < 5 || len(rec) > 6 {
			errs = append(errs, fmt.Errorf("line %d: want 5 or 6 columns, got %d", line, len(rec)))
			continue
		}
		row := bookRow{
			Line:      line,
			Title:     strings.TrimSpace(rec[0]),
			Author:    strings.TrimSpace(rec[1]),
			Genre:     strings.TrimSpace(rec[2]),
			Published: strings.TrimSpace(rec[3]),
			ISBN:      strings.TrimSpace(rec[4]),
			Available: true,
		}
		if len(rec) == 6 && strings.TrimSpace(rec[5]) != "" {
			avail, err := strconv.ParseBool(strings.TrimSpace(rec[5]))
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: available: %w", line, err))
				continue
			}
			row.Available = avail
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func genreID(catalog *library.CatalogView, v string) (int64, error) {
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		return id, nil
	}
	g, ok := catalog.GenreByName(v)
	if !ok {
		return 0, fmt.Errorf("unknown genre %q", v)
	}
	return g.ID, nil
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: import_books FILE.csv")
		os.Exit(2)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening CSV: %v\n", err)
		os.Exit(1)
	}
	rows, parseErrs := readRows(f)
	f.Close()

	cfg := config.Load()
	ui := &rowUI{}
	manager, err := library.NewLibraryManager(cfg, logging.New(cfg.LogLevel, os.Stderr), ui)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	if !manager.Role().CanManageCatalog() {
		fmt.Fprintln(os.Stderr, "Log in as a librarian or admin with 'library login' first.")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := manager.Catalog.FetchGenres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading genres: %v\n", err)
		os.Exit(1)
	}

	successCount := 0
	errorCount := len(parseErrs)
	for _, err := range parseErrs {
		fmt.Printf("ERROR - %v\n", err)
	}

	fmt.Printf("Importing %d books from %s...\n", len(rows), os.Args[1])
	for _, row := range rows {
		fmt.Printf("Importing: %s by %s... ", row.Title, row.Author)

		gid, err := genreID(manager.Catalog, row.Genre)
		if err != nil {
			fmt.Printf("ERROR - line %d: %v\n", row.Line, err)
			errorCount++
			continue
		}
		in := library.BookInput{
			Title:           row.Title,
			Author:          row.Author,
			Genre:           gid,
			PublicationDate: row.Published,
			ISBN:            row.ISBN,
			Available:       row.Available,
		}
		ui.last = ""
		if err := manager.Catalog.Save(ctx, 0, in); err != nil {
			fmt.Printf("ERROR - line %d: %s\n", row.Line, ui.last)
			errorCount++
			continue
		}
		fmt.Println("SUCCESS")
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		books := manager.Catalog.AllBooks()
		fmt.Printf("\nCatalog now has %d books.\n", len(books))
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}
