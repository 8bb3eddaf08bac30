package fakeapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not found.")
	}
	return uint(id), nil
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

const badDatetime = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."

// ------------------ Genres ------------------

func (s *Server) listGenres(c echo.Context) error {
	var rows []genreRow
	if err := s.db.WithContext(c.Request().Context()).Order("name").Find(&rows).Error; err != nil {
		return err
	}
	return s.list(c, rows, len(rows))
}

func (s *Server) createGenre(c echo.Context) error {
	var in struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	if strings.TrimSpace(in.Name) == "" {
		return badRequest(c, fieldErrors("name", "This field is required."))
	}
	g := genreRow{Name: in.Name}
	if err := s.db.WithContext(c.Request().Context()).Create(&g).Error; err != nil {
		return badRequest(c, fieldErrors("name", "genre with this name already exists."))
	}
	return c.JSON(http.StatusCreated, g)
}

// ------------------ Books ------------------

type bookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           *uint  `json:"genre"`
	PublicationDate string `json:"publication_date"`
	ISBN            string `json:"isbn"`
	Available       *bool  `json:"available"`
}

func (s *Server) validateBook(c echo.Context, in bookInput, id uint) (echo.Map, error) {
	errs := echo.Map{}
	if strings.TrimSpace(in.Title) == "" {
		errs["title"] = []string{"This field is required."}
	}
	if strings.TrimSpace(in.Author) == "" {
		errs["author"] = []string{"This field is required."}
	}
	if _, err := time.Parse(time.DateOnly, in.PublicationDate); err != nil {
		errs["publication_date"] = []string{"Date has wrong format. Use one of these formats instead: YYYY-MM-DD."}
	}
	if !validISBN(in.ISBN) {
		errs["isbn"] = []string{"ISBN must be a numeric string with at most 13 digits."}
	}
	db := s.db.WithContext(c.Request().Context())
	if in.Genre != nil && *in.Genre != 0 {
		var n int64
		if err := db.Model(&genreRow{}).Where("id = ?", *in.Genre).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			errs["genre"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.Genre)}
		}
	}
	if _, bad := errs["isbn"]; !bad {
		var n int64
		if err := db.Model(&bookRow{}).Where("isbn = ? AND id <> ?", in.ISBN, id).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			errs["isbn"] = []string{"book with this isbn already exists."}
		}
	}
	return errs, nil
}

func validISBN(s string) bool {
	if s == "" || len(s) > 13 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (in bookInput) apply(b *bookRow) {
	b.Title, b.Author, b.PublicationDate, b.ISBN = in.Title, in.Author, in.PublicationDate, in.ISBN
	b.GenreID = nil
	if in.Genre != nil && *in.Genre != 0 {
		g := *in.Genre
		b.GenreID = &g
	}
	if in.Available != nil {
		b.Available = *in.Available
	}
}

func (s *Server) listBooks(c echo.Context) error {
	var rows []bookRow
	if err := s.db.WithContext(c.Request().Context()).Preload("Genre").Order("id").Find(&rows).Error; err != nil {
		return err
	}
	out := make([]bookJSON, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookJSON(b))
	}
	return s.list(c, out, len(out))
}

func (s *Server) findBook(c echo.Context) (bookRow, error) {
	id, err := pathID(c)
	if err != nil {
		return bookRow{}, err
	}
	var b bookRow
	if err := s.db.WithContext(c.Request().Context()).Preload("Genre").First(&b, id).Error; err != nil {
		return bookRow{}, notFound(err)
	}
	return b, nil
}

func (s *Server) reloadBook(c echo.Context, id uint) (bookJSON, error) {
	var b bookRow
	if err := s.db.WithContext(c.Request().Context()).Preload("Genre").First(&b, id).Error; err != nil {
		return bookJSON{}, err
	}
	return toBookJSON(b), nil
}

func (s *Server) createBook(c echo.Context) error {
	var in bookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	errs, err := s.validateBook(c, in, 0)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return badRequest(c, errs)
	}

	b := bookRow{Available: true}
	in.apply(&b)
	if err := s.db.WithContext(c.Request().Context()).Create(&b).Error; err != nil {
		return err
	}
	out, err := s.reloadBook(c, b.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) getBook(c echo.Context) error {
	b, err := s.findBook(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookJSON(b))
}

func (s *Server) updateBook(c echo.Context) error {
	b, err := s.findBook(c)
	if err != nil {
		return err
	}
	var in bookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	errs, err := s.validateBook(c, in, b.ID)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return badRequest(c, errs)
	}

	in.apply(&b)
	b.Genre = nil
	if err := s.db.WithContext(c.Request().Context()).Save(&b).Error; err != nil {
		return err
	}
	out, err := s.reloadBook(c, b.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteBook(c echo.Context) error {
	b, err := s.findBook(c)
	if err != nil {
		return err
	}
	err = s.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", b.ID).Delete(&issuanceRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&bookRow{}, b.ID).Error
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ------------------ Issuances ------------------

// issuanceScope limits members to their own loans.
func (s *Server) issuanceScope(c echo.Context) *gorm.DB {
	db := s.db.WithContext(c.Request().Context()).Preload("Book").Preload("User")
	if u := currentUser(c); !isStaff(u) {
		db = db.Where("user_id = ?", u.ID)
	}
	return db
}

func (s *Server) listIssuances(c echo.Context) error {
	var rows []issuanceRow
	if err := s.issuanceScope(c).Order("id").Find(&rows).Error; err != nil {
		return err
	}
	out := make([]issuanceJSON, 0, len(rows))
	for _, i := range rows {
		out = append(out, toIssuanceJSON(i))
	}
	return s.list(c, out, len(out))
}

func (s *Server) findIssuance(c echo.Context) (issuanceRow, error) {
	id, err := pathID(c)
	if err != nil {
		return issuanceRow{}, err
	}
	var i issuanceRow
	if err := s.issuanceScope(c).First(&i, id).Error; err != nil {
		return issuanceRow{}, notFound(err)
	}
	return i, nil
}

func (s *Server) getIssuance(c echo.Context) error {
	i, err := s.findIssuance(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIssuanceJSON(i))
}

// createIssuance lends a book. Members always borrow for themselves; staff must name
// the borrower. The book becomes unavailable.
func (s *Server) createIssuance(c echo.Context) error {
	var in struct {
		Book    uint   `json:"book"`
		User    *uint  `json:"user"`
		DueDate string `json:"due_date"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}

	me := currentUser(c)
	userID := me.ID
	if isStaff(me) {
		if in.User == nil || *in.User == 0 {
			return badRequest(c, fieldErrors("user", "This field is required."))
		}
		userID = *in.User
	}
	if in.Book == 0 {
		return badRequest(c, fieldErrors("book", "This field is required."))
	}
	due, err := parseTime(in.DueDate)
	if err != nil {
		return badRequest(c, fieldErrors("due_date", badDatetime))
	}

	var created issuanceRow
	err = s.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var b bookRow
		if err := tx.First(&b, in.Book).Error; err != nil {
			return badRequest(c, fieldErrors("book", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.Book)))
		}
		var n int64
		if err := tx.Model(&userRow{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return badRequest(c, fieldErrors("user", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", userID)))
		}
		if !b.Available {
			return c.JSON(http.StatusBadRequest, detail("This book is already issued."))
		}

		created = issuanceRow{BookID: b.ID, UserID: userID, IssueDate: time.Now().UTC(), DueDate: due.UTC()}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return tx.Model(&bookRow{}).Where("id = ?", b.ID).Update("available", false).Error
	})
	if err != nil || c.Response().Committed {
		return err
	}

	if err := s.issuanceScope(c).First(&created, created.ID).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toIssuanceJSON(created))
}

// updateIssuance records a return. Returning a loan makes the book available again.
func (s *Server) updateIssuance(c echo.Context) error {
	i, err := s.findIssuance(c)
	if err != nil {
		return err
	}
	var in struct {
		ReturnDate *string `json:"return_date"`
		DueDate    *string `json:"due_date"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}

	wasActive := i.ReturnDate == nil
	if in.DueDate != nil {
		due, err := parseTime(*in.DueDate)
		if err != nil {
			return badRequest(c, fieldErrors("due_date", badDatetime))
		}
		i.DueDate = due.UTC()
	}
	if in.ReturnDate != nil {
		ret, err := parseTime(*in.ReturnDate)
		if err != nil {
			return badRequest(c, fieldErrors("return_date", badDatetime))
		}
		ret = ret.UTC()
		i.ReturnDate = &ret
	}

	err = s.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&issuanceRow{}).Where("id = ?", i.ID).
			Updates(map[string]any{"due_date": i.DueDate, "return_date": i.ReturnDate}).Error; err != nil {
			return err
		}
		if wasActive && i.ReturnDate != nil {
			return tx.Model(&bookRow{}).Where("id = ?", i.BookID).Update("available", true).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIssuanceJSON(i))
}
