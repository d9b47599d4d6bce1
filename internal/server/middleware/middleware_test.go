package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pashagolub/pgxmock/v4"
)

func newTestContext(t *testing.T, app *App, user *AppUser, header string) (*AppContext, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	return &AppContext{Context: e.NewContext(req, rec), App: app, User: user}, rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func TestAuthMiddleware(t *testing.T) {
	app := &App{MasterAPIKey: "secret", MasterUserID: 1, MasterUserRole: "admin"}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"MissingHeader", "", http.StatusUnauthorized},
		{"NotBearer", "Basic abc", http.StatusUnauthorized},
		{"MasterKey", "Bearer secret", http.StatusNoContent},
		{"UnknownTokenWithoutKeys", "Bearer other", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(t, app, nil, tt.header)
			if err := AuthMiddleware(okHandler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_MasterUser(t *testing.T) {
	app := &App{MasterAPIKey: "secret", MasterUserID: 1, MasterUserRole: "admin"}
	c, _ := newTestContext(t, app, nil, "Bearer secret")

	if err := AuthMiddleware(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.User == nil || c.User.UserID != 1 {
		t.Fatalf("expected master user 1, got %+v", c.User)
	}
	if !HasPermission(c.User, PermLearn) {
		t.Fatalf("expected master user to hold every permission, got %v", c.User.Permissions)
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name string
		user *AppUser
		want int
	}{
		{"NoUser", nil, http.StatusUnauthorized},
		{"Missing", &AppUser{UserID: 2, Permissions: []string{PermAsk}}, http.StatusForbidden},
		{"Granted", &AppUser{UserID: 2, Permissions: []string{PermRemember}}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(t, &App{}, tt.user, "")
			if err := RequirePermission(PermRemember)(okHandler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRequireTeamAccess(t *testing.T) {
	tests := []struct {
		name   string
		user   *AppUser
		param  string
		expect func(mock pgxmock.PgxPoolIface)
		want   int
	}{
		{
			name:  "Member",
			user:  &AppUser{UserID: 7, Role: "user"},
			param: "3",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("FROM team_members").
					WithArgs(int64(3), int64(7)).
					WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("member"))
			},
			want: http.StatusNoContent,
		},
		{
			name:  "NotMember",
			user:  &AppUser{UserID: 7, Role: "user"},
			param: "3",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("FROM team_members").
					WithArgs(int64(3), int64(7)).
					WillReturnRows(pgxmock.NewRows([]string{"role"}))
			},
			want: http.StatusForbidden,
		},
		{
			name:   "AdminBypass",
			user:   &AppUser{UserID: 1, Role: "admin"},
			param:  "3",
			expect: func(mock pgxmock.PgxPoolIface) {},
			want:   http.StatusNoContent,
		},
		{
			name:   "BadParam",
			user:   &AppUser{UserID: 7, Role: "user"},
			param:  "abc",
			expect: func(mock pgxmock.PgxPoolIface) {},
			want:   http.StatusBadRequest,
		},
		{
			name:   "NoUser",
			param:  "3",
			expect: func(mock pgxmock.PgxPoolIface) {},
			want:   http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock pool: %v", err)
			}
			defer mock.Close()
			tt.expect(mock)

			c, rec := newTestContext(t, &App{DBConn: mock}, tt.user, "")
			c.SetParamNames("team_id")
			c.SetParamValues(tt.param)

			var seen int64
			h := RequireTeamAccess(TeamFromParam("team_id"))(func(c echo.Context) error {
				seen = TeamID(c)
				return c.NoContent(http.StatusNoContent)
			})
			if err := h(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusNoContent && seen != 3 {
				t.Fatalf("expected team 3 in context, got %d", seen)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestRequireTeamAccess_ScopeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()
	mock.ExpectQuery("FROM scopes").
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"team_id"}))

	c, rec := newTestContext(t, &App{DBConn: mock}, &AppUser{UserID: 7}, "")
	c.SetParamNames("scope_id")
	c.SetParamValues("11")

	if err := RequireTeamAccess(TeamFromScope("scope_id"))(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
