package library

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LoanPeriod is the default time a book stays out when no due date is given.
const LoanPeriod = 14 * 24 * time.Hour

// isoMillis matches what browsers produce for Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const (
	booksPath     = "/library/books/"
	genresPath    = "/library/genres/"
	issuancesPath = "/library/issuances/"
	usersPath     = "/accounts/users/"
)

// UI is the blocking interaction surface a view needs: a yes/no confirmation before
// destructive actions, and a notification for outcomes and failures.
type UI interface {
	Confirm(prompt string) bool
	Alert(msg string)
}

// viewBase holds what every resource view shares.
type viewBase struct {
	api     *Client
	session SessionContext
	ui      UI
	log     *slog.Logger
	now     func() time.Time
}

func newViewBase(api *Client, session SessionContext, ui UI, log *slog.Logger, component string) viewBase {
	return viewBase{
		api:     api,
		session: session,
		ui:      ui,
		log:     log.With("component", component),
		now:     time.Now,
	}
}

func (v viewBase) role() Role {
	s, ok := v.session.Get()
	if !ok {
		return ""
	}
	return s.User.Role
}

// fail logs err, tells the user, and returns err for the caller's exit status.
func (v viewBase) fail(event string, err error, msg string) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		v.log.Info(event, "reason", verr.Message)
	} else {
		v.log.Error(event, "error", err)
	}
	v.ui.Alert(msg)
	return err
}

func isoTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// fetchCollection GETs path and normalizes the body. Items are nil when the call itself
// failed, so callers keep their last-known-good collection. A 2xx with an unexpected
// shape yields an empty slice together with the decode error.
func fetchCollection[T any](ctx context.Context, api *Client, path string) ([]T, error) {
	resp, err := api.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return DecodeCollection[T](resp.Body)
}
