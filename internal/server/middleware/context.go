package middleware

import (
	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/queue"
	"github.com/ravenloom/backend/internal/storage"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/query"
	"github.com/ravenloom/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Services are the domain services shared by all requests. They hold the
// ai client, so they are built once at startup.
type Services struct {
	Graph    store.GraphStorage
	Facts    store.FactStorage
	GraphRAG *query.GraphRAG
	Ask      *query.AskService
	Remember *facts.RememberService
}

type App struct {
	DBConn         db.DBTX
	Queue          queue.Publisher
	Key            *keyfunc.Keyfunc
	S3             storage.ObjectClient
	Services       Services
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
