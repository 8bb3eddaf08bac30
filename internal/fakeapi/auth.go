package fakeapi

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"library-client/internal/logging"
)

const ctxUser = "user"

var validRoles = []string{"member", "librarian", "admin"}

func currentUser(c echo.Context) userRow {
	u, _ := c.Get(ctxUser).(userRow)
	return u
}

func isStaff(u userRow) bool { return u.Role == "librarian" || u.Role == "admin" }

func fieldErrors(kv ...string) echo.Map {
	out := echo.Map{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = []string{kv[i+1]}
	}
	return out
}

func badRequest(c echo.Context, body echo.Map) error {
	return c.JSON(http.StatusBadRequest, body)
}

// ------------------ Middleware ------------------

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		id, claims, err := s.parse(token, tokenAccess)
		if err != nil || claims.Generation < s.generation.Load() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Given token not valid for any token type")
		}

		var u userRow
		if err := s.db.WithContext(c.Request().Context()).First(&u, id).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
		}
		c.Set(ctxUser, u)
		return next(c)
	}
}

func (s *Server) requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !slices.Contains(roles, currentUser(c).Role) {
				return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action.")
			}
			return next(c)
		}
	}
}

// ------------------ Handlers ------------------

func (s *Server) authResponse(c echo.Context, status int, u userRow) error {
	access, refresh, err := s.tokenPair(u)
	if err != nil {
		return err
	}
	return c.JSON(status, echo.Map{"user": toUserJSON(u), "refresh": refresh, "access": access})
}

func (s *Server) login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	if req.Username == "" || req.Password == "" {
		body := echo.Map{}
		if req.Username == "" {
			body["username"] = []string{"This field may not be blank."}
		}
		if req.Password == "" {
			body["password"] = []string{"This field may not be blank."}
		}
		return badRequest(c, body)
	}

	var u userRow
	err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&u).Error
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		l.Warn("login_failed", "username", req.Username)
		return badRequest(c, fieldErrors("non_field_errors", "Invalid credentials"))
	}
	return s.authResponse(c, http.StatusOK, u)
}

type userInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone_number"`
	Address  string `json:"address"`
}

func (in userInput) validate(requirePassword bool) echo.Map {
	body := echo.Map{}
	if strings.TrimSpace(in.Username) == "" {
		body["username"] = []string{"This field is required."}
	}
	if requirePassword && in.Password == "" {
		body["password"] = []string{"This field is required."}
	}
	if in.Role != "" && !slices.Contains(validRoles, in.Role) {
		body["role"] = []string{`"` + in.Role + `" is not a valid choice.`}
	}
	return body
}

func (s *Server) usernameTaken(c echo.Context, username string, except uint) (bool, error) {
	var n int64
	err := s.db.WithContext(c.Request().Context()).Model(&userRow{}).
		Where("username = ? AND id <> ?", username, except).
		Count(&n).Error
	return n > 0, err
}

func (s *Server) register(c echo.Context) error {
	var in userInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	if errs := in.validate(true); len(errs) > 0 {
		return badRequest(c, errs)
	}
	taken, err := s.usernameTaken(c, in.Username, 0)
	if err != nil {
		return err
	}
	if taken {
		return badRequest(c, fieldErrors("username", "A user with that username already exists."))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := userRow{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Phone:        in.Phone,
		Address:      in.Address,
	}
	if u.Role == "" {
		u.Role = "member"
	}
	if err := s.db.WithContext(c.Request().Context()).Create(&u).Error; err != nil {
		return err
	}
	logging.FromContext(c.Request().Context()).Info("user_registered", "username", u.Username, "role", u.Role)
	return s.authResponse(c, http.StatusCreated, u)
}

func (s *Server) refresh(c echo.Context) error {
	s.refreshCalls.Add(1)

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	if req.Refresh == "" {
		return badRequest(c, fieldErrors("refresh", "This field is required."))
	}

	s.mu.RLock()
	fail := s.failRefresh
	s.mu.RUnlock()
	invalid := func() error {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	}
	if fail {
		return invalid()
	}

	id, _, err := s.parse(req.Refresh, tokenRefresh)
	if err != nil {
		return invalid()
	}
	var u userRow
	if err := s.db.WithContext(c.Request().Context()).First(&u, id).Error; err != nil {
		return invalid()
	}

	s.mu.RLock()
	ttl := s.accessTTL
	s.mu.RUnlock()
	access, err := s.mint(u, tokenAccess, ttl)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

// ------------------ Users ------------------

func (s *Server) listUsers(c echo.Context) error {
	var rows []userRow
	if err := s.db.WithContext(c.Request().Context()).Order("id").Find(&rows).Error; err != nil {
		return err
	}
	out := make([]userJSON, 0, len(rows))
	for _, u := range rows {
		out = append(out, toUserJSON(u))
	}
	return s.list(c, out, len(out))
}

func (s *Server) findUser(c echo.Context) (userRow, error) {
	id, err := pathID(c)
	if err != nil {
		return userRow{}, err
	}
	var u userRow
	if err := s.db.WithContext(c.Request().Context()).First(&u, id).Error; err != nil {
		return userRow{}, notFound(err)
	}
	return u, nil
}

func (s *Server) getUser(c echo.Context) error {
	u, err := s.findUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserJSON(u))
}

func (s *Server) updateUser(c echo.Context) error {
	u, err := s.findUser(c)
	if err != nil {
		return err
	}
	var in userInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error")
	}
	if errs := in.validate(false); len(errs) > 0 {
		return badRequest(c, errs)
	}
	taken, err := s.usernameTaken(c, in.Username, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return badRequest(c, fieldErrors("username", "A user with that username already exists."))
	}

	u.Username, u.Email, u.Phone, u.Address = in.Username, in.Email, in.Phone, in.Address
	if in.Role != "" {
		u.Role = in.Role
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.db.WithContext(c.Request().Context()).Save(&u).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserJSON(u))
}

func (s *Server) deleteUser(c echo.Context) error {
	u, err := s.findUser(c)
	if err != nil {
		return err
	}
	err = s.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", u.ID).Delete(&issuanceRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Not found.")
	}
	return err
}
