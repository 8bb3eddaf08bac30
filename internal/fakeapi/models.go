package fakeapi

import "time"

type userRow struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string
	PasswordHash string
	Role         string `gorm:"not null;default:member"`
	Phone        string
	Address      string
}

func (userRow) TableName() string { return "users" }

type genreRow struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (genreRow) TableName() string { return "genres" }

type bookRow struct {
	ID              uint `gorm:"primaryKey"`
	Title           string
	Author          string
	GenreID         *uint
	Genre           *genreRow `gorm:"foreignKey:GenreID"`
	PublicationDate string
	ISBN            string `gorm:"uniqueIndex"`
	Available       bool
}

func (bookRow) TableName() string { return "books" }

type issuanceRow struct {
	ID         uint `gorm:"primaryKey"`
	BookID     uint
	Book       bookRow `gorm:"foreignKey:BookID"`
	UserID     uint
	User       userRow `gorm:"foreignKey:UserID"`
	IssueDate  time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

func (issuanceRow) TableName() string { return "issuances" }

// ------------------ Wire shapes ------------------

type userJSON struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Phone    string `json:"phone_number"`
	Address  string `json:"address"`
}

func toUserJSON(u userRow) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, Phone: u.Phone, Address: u.Address}
}

type bookJSON struct {
	ID              uint    `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Genre           *uint   `json:"genre"`
	GenreName       *string `json:"genre_name"`
	PublicationDate string  `json:"publication_date"`
	ISBN            string  `json:"isbn"`
	Available       bool    `json:"available"`
}

func toBookJSON(b bookRow) bookJSON {
	out := bookJSON{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.GenreID,
		PublicationDate: b.PublicationDate,
		ISBN:            b.ISBN,
		Available:       b.Available,
	}
	if b.Genre != nil {
		name := b.Genre.Name
		out.GenreName = &name
	}
	return out
}

type issuanceJSON struct {
	ID         uint       `json:"id"`
	Book       uint       `json:"book"`
	User       uint       `json:"user"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	BookTitle  string     `json:"book_title"`
	UserName   string     `json:"user_name"`
}

func toIssuanceJSON(i issuanceRow) issuanceJSON {
	return issuanceJSON{
		ID:         i.ID,
		Book:       i.BookID,
		User:       i.UserID,
		DueDate:    i.DueDate.UTC(),
		ReturnDate: i.ReturnDate,
		BookTitle:  i.Book.Title,
		UserName:   i.User.Username,
	}
}
