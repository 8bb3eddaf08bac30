// Command mockapi serves the in-memory library backend on MOCKAPI_ADDR (default :8000)
// so the CLI can be tried without the real service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"library-client/internal/config"
	"library-client/internal/fakeapi"
	"library-client/internal/logging"
)

func main() {
	addr := config.EnvDefault("MOCKAPI_ADDR", ":8000")
	logger := logging.New(config.EnvDefault("LOG_LEVEL", "info"), os.Stdout)

	api, err := fakeapi.New(fakeapi.Options{
		Secret:    []byte(config.EnvDefault("MOCKAPI_SECRET", "mockapi-dev-secret")),
		AccessTTL: config.EnvDurationDefault("MOCKAPI_ACCESS_TTL", 5*time.Minute),
		Paginate:  os.Getenv("MOCKAPI_PAGINATE") == "1",
		Log:       logger,
	})
	if err != nil {
		log.Fatalf("fakeapi init error: %v", err)
	}
	defer api.Close()

	if err := seed(api); err != nil {
		log.Fatalf("seed error: %v", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", addr, "prefix", fakeapi.Prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

func seed(api *fakeapi.Server) error {
	for _, u := range []struct{ name, pass, role string }{
		{"admin", "admin123", "admin"},
		{"librarian", "librarian123", "librarian"},
		{"member", "member123", "member"},
	} {
		if _, err := api.CreateUser(u.name, u.pass, u.role); err != nil {
			return err
		}
	}

	genres := map[string]uint{}
	for _, name := range []string{"Fiction", "Science", "History"} {
		id, err := api.CreateGenre(name)
		if err != nil {
			return err
		}
		genres[name] = id
	}

	for _, b := range []struct{ title, author, genre, isbn string }{
		{"Dune", "Frank Herbert", "Fiction", "9780441013593"},
		{"The Left Hand of Darkness", "Ursula K. Le Guin", "Fiction", "9780441478125"},
		{"A Brief History of Time", "Stephen Hawking", "Science", "9780553380163"},
		{"The Selfish Gene", "Richard Dawkins", "Science", "9780198788607"},
		{"SPQR", "Mary Beard", "History", "9781631492228"},
	} {
		if _, err := api.CreateBook(b.title, b.author, genres[b.genre], b.isbn, true); err != nil {
			return err
		}
	}
	return nil
}
