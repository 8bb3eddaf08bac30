// Package fakeapi is an in-memory stand-in for the library REST backend. It serves the
// same routes, permissions and error bodies, and is used by tests and the mockapi command.
package fakeapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-client/internal/logging"
)

// Prefix is where the API is mounted, matching the client's default base URL.
const Prefix = "/api"

type Options struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Paginate wraps list responses in a {count, next, previous, results} envelope.
	Paginate bool
	Log      *slog.Logger
}

type Server struct {
	db     *gorm.DB
	echo   *echo.Echo
	secret []byte
	log    *slog.Logger

	mu          sync.RWMutex
	accessTTL   time.Duration
	refreshTTL  time.Duration
	paginate    bool
	failRefresh bool

	generation   atomic.Int64
	refreshCalls atomic.Int64
}

func New(opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("fakeapi-secret")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &genreRow{}, &bookRow{}, &issuanceRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Server{
		db:         db,
		secret:     opts.Secret,
		log:        opts.Log,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		paginate:   opts.Paginate,
	}
	s.echo = s.router()
	return s, nil
}

// Handler exposes the echo instance for httptest or an http.Server.
func (s *Server) Handler() http.Handler { return s.echo }

// Echo is the underlying echo instance, for Start and Shutdown.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ------------------ Test controls ------------------

// RefreshCalls counts hits on the token refresh endpoint.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (s *Server) ExpireAccessTokens() { s.generation.Add(1) }

// FailRefresh makes the refresh endpoint reject every token.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	s.failRefresh = fail
	s.mu.Unlock()
}

func (s *Server) SetPaginate(on bool) {
	s.mu.Lock()
	s.paginate = on
	s.mu.Unlock()
}

func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	s.accessTTL = d
	s.mu.Unlock()
}

// ------------------ Seeding ------------------

func (s *Server) CreateUser(username, password, role string) (uint, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}
	u := userRow{Username: username, Email: username + "@example.com", PasswordHash: string(hash), Role: role}
	if err := s.db.Create(&u).Error; err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (s *Server) CreateGenre(name string) (uint, error) {
	g := genreRow{Name: name}
	if err := s.db.Create(&g).Error; err != nil {
		return 0, err
	}
	return g.ID, nil
}

func (s *Server) CreateBook(title, author string, genreID uint, isbn string, available bool) (uint, error) {
	b := bookRow{Title: title, Author: author, ISBN: isbn, PublicationDate: "2000-01-01", Available: available}
	if genreID != 0 {
		b.GenreID = &genreID
	}
	if err := s.db.Create(&b).Error; err != nil {
		return 0, err
	}
	return b.ID, nil
}

// ------------------ Routing ------------------

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover(), s.requestLogger)

	api := e.Group(Prefix)
	api.POST("/accounts/login/", s.login)
	api.POST("/accounts/register/", s.register)
	api.POST("/token/refresh/", s.refresh)

	authed := []echo.MiddlewareFunc{s.requireAuth}
	staff := []echo.MiddlewareFunc{s.requireAuth, s.requireRole("librarian", "admin")}
	admin := []echo.MiddlewareFunc{s.requireAuth, s.requireRole("admin")}

	api.GET("/accounts/users/", s.listUsers, staff...)
	api.GET("/accounts/users/:id/", s.getUser, admin...)
	api.PUT("/accounts/users/:id/", s.updateUser, admin...)
	api.DELETE("/accounts/users/:id/", s.deleteUser, admin...)

	api.GET("/library/genres/", s.listGenres, authed...)
	api.POST("/library/genres/", s.createGenre, staff...)

	api.GET("/library/books/", s.listBooks, authed...)
	api.POST("/library/books/", s.createBook, staff...)
	api.GET("/library/books/:id/", s.getBook, staff...)
	api.PUT("/library/books/:id/", s.updateBook, staff...)
	api.DELETE("/library/books/:id/", s.deleteBook, staff...)

	api.GET("/library/issuances/", s.listIssuances, authed...)
	api.POST("/library/issuances/", s.createIssuance, authed...)
	api.GET("/library/issuances/:id/", s.getIssuance, authed...)
	api.PATCH("/library/issuances/:id/", s.updateIssuance, authed...)
	return e
}

// requestLogger keeps the client's X-Request-ID in the server log.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := s.log.With("method", c.Request().Method, "path", c.Path())
		if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
			l = l.With("request_id", rid)
		}
		c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status
		switch {
		case status >= 500:
			l.Error("request completed", "status", status, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		case status >= 400:
			l.Warn("request completed", "status", status, "duration_ms", time.Since(start).Milliseconds())
		default:
			l.Info("request completed", "status", status, "duration_ms", time.Since(start).Milliseconds())
		}
		return nil
	}
}

// errorHandler renders errors the way the real backend does: {"detail": "..."}.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "A server error occurred."
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		default:
			msg = http.StatusText(code)
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, detail(msg))
}

func detail(msg string) echo.Map { return echo.Map{"detail": msg} }

func (s *Server) list(c echo.Context, items any, n int) error {
	s.mu.RLock()
	paginate := s.paginate
	s.mu.RUnlock()
	if !paginate {
		return c.JSON(http.StatusOK, items)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n, "next": nil, "previous": nil, "results": items})
}
