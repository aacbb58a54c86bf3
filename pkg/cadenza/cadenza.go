package cadenza

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cadenzahq/cadenza/internal/actions"
	"github.com/cadenzahq/cadenza/internal/config"
	"github.com/cadenzahq/cadenza/internal/controllers"
	"github.com/cadenzahq/cadenza/internal/delivery"
	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/internal/loader"
	"github.com/cadenzahq/cadenza/internal/migrations"
	"github.com/cadenzahq/cadenza/internal/render"
	"github.com/cadenzahq/cadenza/internal/repository"
	"github.com/cadenzahq/cadenza/pkg/cadenza/core"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the automation engine and HTTP server. Definitions found in
// CDZ_DEFINITIONS_DIR are registered before the engine starts polling. This
// call blocks until the HTTP server stops.
func Start(mux *http.ServeMux) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("CDZ_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	automationRepo := repository.NewAutomationRepository(db, clock)
	executionRepo := repository.NewExecutionRepository(db, clock)
	recipientRepo := repository.NewRecipientRepository(db, clock)
	deliveryRepo := repository.NewDeliveryRepository(db, clock)
	runnerRepo := repository.NewRunnerRepository(db)

	var deliverer core.Deliverer
	if addr := config.GetSystemSettingString(config.SMTP_ADDR); addr != "" {
		deliverer = delivery.NewSMTPDeliverer(addr, config.GetSystemSettingString(config.SMTP_FROM))
	} else {
		deliverer = delivery.NewLogDeliverer()
	}

	actionRegistry := actions.NewRegistry(actions.Deps{
		Recipients: recipientRepo,
		Deliverer:  deliverer,
		Renderer:   render.NewTemplateRenderer(),
		Deliveries: deliveryRepo,
		Clock:      clock,
	})
	definitions := engine.NewDefinitionRegistry(automationRepo, actionRegistry, clock)
	manager := engine.NewManager(definitions, executionRepo, deliveryRepo, recipientRepo, actionRegistry, runnerRepo, clock)

	if dir := config.GetSystemSettingString(config.DEFINITIONS_DIR); dir != "" {
		if err := loader.LoadDirectory(dir, definitions); err != nil {
			slog.Error("Definition seeding failed", "dir", dir, "error", err)
		}
	}

	dur, _ := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_POLL_INTERVAL))
	go manager.StartEngine(context.Background(), dur)

	if mux == nil {
		mux = http.NewServeMux()
	}
	controllers.NewAutomationsController(definitions, manager).RegisterRoutes(mux)
	controllers.NewEventsController(manager).RegisterRoutes(mux)
	controllers.NewExecutionsController(manager, deliveryRepo).RegisterRoutes(mux)
	controllers.NewRecipientsController(recipientRepo).RegisterRoutes(mux)
	controllers.NewRunnersController(manager).RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.ENGINE_SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("CDZ_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("CDZ_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("CDZ_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("CDZ_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("CDZ_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
