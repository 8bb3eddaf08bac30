package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateUser("mia", "pw", "member")
	require.NoError(t, err)
	_, err = s.CreateUser("lena", "pw", "librarian")
	require.NoError(t, err)
	_, err = s.CreateUser("ada", "pw", "admin")
	require.NoError(t, err)
	g, err := s.CreateGenre("Fiction")
	require.NoError(t, err)
	_, err = s.CreateBook("Dune", "Frank Herbert", g, "9780441013593", true)
	require.NoError(t, err)
	return s
}

func call(t *testing.T, s *Server, method, path, token, body string) (int, map[string]any, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, Prefix+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var obj map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &obj)
	return rec.Code, obj, rec.Body.Bytes()
}

func login(t *testing.T, s *Server, username string) (access, refresh string) {
	t.Helper()
	code, body, raw := call(t, s, http.MethodPost, "/accounts/login/", "", `{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusOK, code, string(raw))
	user := body["user"].(map[string]any)
	assert.Equal(t, username, user["username"])
	return body["access"].(string), body["refresh"].(string)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	code, body, _ := call(t, s, http.MethodPost, "/accounts/login/", "", `{"username":"mia","password":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"Invalid credentials"}, body["non_field_errors"])

	code, body, _ = call(t, s, http.MethodPost, "/accounts/login/", "", `{"username":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "username")
	assert.Contains(t, body, "password")

	access, refresh := login(t, s, "mia")
	assert.NotEqual(t, access, refresh)
}

func TestPermissions(t *testing.T) {
	s := newTestServer(t)
	member, _ := login(t, s, "mia")
	librarian, _ := login(t, s, "lena")
	admin, _ := login(t, s, "ada")

	tests := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/library/books/", "", http.StatusUnauthorized},
		{http.MethodGet, "/library/books/", "garbage", http.StatusUnauthorized},
		{http.MethodGet, "/library/books/", member, http.StatusOK},
		{http.MethodGet, "/library/genres/", member, http.StatusOK},
		{http.MethodGet, "/accounts/users/", member, http.StatusForbidden},
		{http.MethodGet, "/accounts/users/", librarian, http.StatusOK},
		{http.MethodGet, "/accounts/users/1/", librarian, http.StatusForbidden},
		{http.MethodGet, "/accounts/users/1/", admin, http.StatusOK},
		{http.MethodDelete, "/library/books/1/", member, http.StatusForbidden},
		{http.MethodGet, "/library/books/99/", librarian, http.StatusNotFound},
	}
	for _, tt := range tests {
		code, body, _ := call(t, s, tt.method, tt.path, tt.token, "")
		assert.Equal(t, tt.want, code, "%s %s", tt.method, tt.path)
		if code >= 400 {
			assert.NotEmpty(t, body["detail"], "%s %s", tt.method, tt.path)
		}
	}

	_, body, _ := call(t, s, http.MethodGet, "/library/books/", "", "")
	assert.Equal(t, "Authentication credentials were not provided.", body["detail"])
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t)
	access, refresh := login(t, s, "mia")

	s.ExpireAccessTokens()
	code, body, _ := call(t, s, http.MethodGet, "/library/books/", access, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Given token not valid for any token type", body["detail"])

	// An access token is not a refresh token.
	code, body, _ = call(t, s, http.MethodPost, "/token/refresh/", "", `{"refresh":"`+access+`"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token_not_valid", body["code"])

	code, body, _ = call(t, s, http.MethodPost, "/token/refresh/", "", `{"refresh":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, code)
	fresh := body["access"].(string)
	code, _, _ = call(t, s, http.MethodGet, "/library/books/", fresh, "")
	assert.Equal(t, http.StatusOK, code)

	s.FailRefresh(true)
	code, _, _ = call(t, s, http.MethodPost, "/token/refresh/", "", `{"refresh":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.EqualValues(t, 3, s.RefreshCalls())
}

func TestShortLivedAccessToken(t *testing.T) {
	s := newTestServer(t)
	s.SetAccessTTL(time.Millisecond)
	access, _ := login(t, s, "mia")
	time.Sleep(1100 * time.Millisecond)

	code, _, _ := call(t, s, http.MethodGet, "/library/books/", access, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPaginatedList(t *testing.T) {
	s := newTestServer(t)
	access, _ := login(t, s, "mia")

	_, _, raw := call(t, s, http.MethodGet, "/library/genres/", access, "")
	assert.JSONEq(t, `[{"id":1,"name":"Fiction"}]`, string(raw))

	s.SetPaginate(true)
	_, body, _ := call(t, s, http.MethodGet, "/library/genres/", access, "")
	assert.EqualValues(t, 1, body["count"])
	assert.Len(t, body["results"], 1)
}

func TestBookValidation(t *testing.T) {
	s := newTestServer(t)
	librarian, _ := login(t, s, "lena")

	code, body, _ := call(t, s, http.MethodPost, "/library/books/", librarian,
		`{"title":"X","author":"Y","genre":1,"publication_date":"2001-02-03","isbn":"97-8"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"ISBN must be a numeric string with at most 13 digits."}, body["isbn"])

	code, body, _ = call(t, s, http.MethodPost, "/library/books/", librarian,
		`{"title":"X","author":"Y","genre":7,"publication_date":"03/02/2001","isbn":"123"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "genre")
	assert.Contains(t, body, "publication_date")

	code, body, _ = call(t, s, http.MethodPost, "/library/books/", librarian,
		`{"title":"X","author":"Y","genre":1,"publication_date":"2001-02-03","isbn":"123"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "Fiction", body["genre_name"])
}

func TestIssuanceFlow(t *testing.T) {
	s := newTestServer(t)
	member, _ := login(t, s, "mia")
	librarian, _ := login(t, s, "lena")

	code, body, _ := call(t, s, http.MethodPost, "/library/issuances/", librarian,
		`{"book":1,"due_date":"2026-03-01T10:00:00.000Z"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"This field is required."}, body["user"])

	// Members borrow for themselves whatever user they send.
	code, body, _ = call(t, s, http.MethodPost, "/library/issuances/", member,
		`{"book":1,"user":3,"due_date":"2026-03-01T10:00:00.000Z"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 1, body["user"])
	assert.Equal(t, "Dune", body["book_title"])
	id := int(body["id"].(float64))

	code, body, _ = call(t, s, http.MethodPost, "/library/issuances/", librarian,
		`{"book":1,"user":1,"due_date":"2026-03-01T10:00:00.000Z"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This book is already issued.", body["detail"])

	_, _, raw := call(t, s, http.MethodGet, "/library/books/1/", librarian, "")
	assert.Contains(t, string(raw), `"available":false`)

	code, _, _ = call(t, s, http.MethodPatch, "/library/issuances/"+strconv.Itoa(id)+"/", member,
		`{"return_date":"2026-02-20T08:00:00.000Z"}`)
	require.Equal(t, http.StatusOK, code)

	_, _, raw = call(t, s, http.MethodGet, "/library/books/1/", librarian, "")
	assert.Contains(t, string(raw), `"available":true`)

	// Staff see every loan, a member only their own.
	ada, _ := login(t, s, "ada")
	code, body, _ = call(t, s, http.MethodPost, "/library/issuances/", librarian,
		`{"book":1,"user":3,"due_date":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, code)

	var list []map[string]any
	_, _, raw = call(t, s, http.MethodGet, "/library/issuances/", member, "")
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)
	_, _, raw = call(t, s, http.MethodGet, "/library/issuances/", ada, "")
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 2)

	code, _, _ = call(t, s, http.MethodGet, "/library/issuances/"+strconv.Itoa(int(body["id"].(float64)))+"/", member, "")
	assert.Equal(t, http.StatusNotFound, code)
}
