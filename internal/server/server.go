package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ravenloom/backend/internal/aiclient"
	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/queue"
	mid "github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/internal/storage"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/logger"
	pgstore "github.com/ravenloom/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	migrationsPath := util.GetEnvString("MIGRATIONS_PATH", db.DefaultMigrationsPath)
	if err := db.Migrate(migrationsPath, databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)

	aiClient, err := aiclient.New(aiclient.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}
	graphStorage := pgstore.NewGraphDBStorageWithConnection(
		conn,
		aiClient,
		pgstore.WithFactSimilarityMin(util.GetEnvFloat("FACT_SIMILARITY_MIN", 0)),
	)
	services, err := NewServices(graphStorage, aiClient)
	if err != nil {
		logger.Fatal("Failed to create services", "err", err)
	}

	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)

	e.Use(mid.AppContextMiddleware(&mid.App{
		DBConn:         conn,
		Queue:          ch,
		Key:            &k,
		S3:             s3,
		Services:       services,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   masterUserID,
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
