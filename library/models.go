package library

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role decides which affordances the client offers. Enforcement is the backend's job.
type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

func (r Role) IsMember() bool { return r == RoleMember }

// CanManageCatalog reports whether the role may add, edit, delete and issue on behalf of others.
func (r Role) CanManageCatalog() bool { return r == RoleLibrarian || r == RoleAdmin }

func (r Role) CanManageUsers() bool { return r == RoleAdmin }

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// User is the account record returned by the accounts endpoints.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Phone    string `json:"phone_number"`
	Address  string `json:"address"`
}

// Session is the authenticated identity of the running client.
type Session struct {
	Access  string
	Refresh string
	User    User
}

// AccessExpiresAt reads the exp claim of the access token without verifying it.
// The client has no key; this is display information only.
func (s Session) AccessExpiresAt() (time.Time, bool) {
	if s.Access == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.Access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Genre is read-only reference data.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book represents catalog metadata and current availability of a title.
// Availability flips server-side when an issuance is created or returned.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           int64  `json:"genre"`
	GenreName       string `json:"genre_name,omitempty"`
	PublicationDate string `json:"publication_date"`
	ISBN            string `json:"isbn"`
	Available       bool   `json:"available"`
}

// Issuance is a loan record. A nil ReturnDate means the loan is active.
type Issuance struct {
	ID         int64      `json:"id"`
	Book       int64      `json:"book"`
	User       int64      `json:"user"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	BookTitle  string     `json:"book_title,omitempty"`
	UserName   string     `json:"user_name,omitempty"`
}

func (i Issuance) Active() bool { return i.ReturnDate == nil }

// Overdue mirrors the backend rule: returned late, or still out past the due date.
func (i Issuance) Overdue(now time.Time) bool {
	if i.ReturnDate != nil {
		return i.ReturnDate.After(i.DueDate)
	}
	return now.After(i.DueDate)
}

// ------------------ Request payloads ------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is the body of both login and register.
type authResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// RegisterInput is the user-creation payload used by self-registration and the admin panel.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Phone    string `json:"phone_number"`
	Address  string `json:"address"`
}

// BookInput is the create/update payload for a catalog entry.
type BookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           int64  `json:"genre"`
	PublicationDate string `json:"publication_date"`
	ISBN            string `json:"isbn"`
	Available       bool   `json:"available"`
}

// BookInputFrom pre-fills the edit form from an existing record.
func BookInputFrom(b Book) BookInput {
	return BookInput{
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		PublicationDate: b.PublicationDate,
		ISBN:            b.ISBN,
		Available:       b.Available,
	}
}

// IssueInput is the librarian issue form. User is ignored for members and a zero
// DueDate means the default loan period.
type IssueInput struct {
	Book    int64
	User    int64
	DueDate time.Time
}

type issuancePayload struct {
	Book    int64  `json:"book"`
	DueDate string `json:"due_date"`
	User    *int64 `json:"user,omitempty"`
}

type returnPayload struct {
	ReturnDate string `json:"return_date"`
}
