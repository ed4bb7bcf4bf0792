package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fintrackhq/fintrack/internal/config"
	"github.com/fintrackhq/fintrack/internal/db"
	"github.com/fintrackhq/fintrack/internal/repository"
	"github.com/fintrackhq/fintrack/internal/service"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	AuthService *service.AuthService
	GoalService *service.GoalService
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	userRepository := repository.NewUserRepository(database)
	goalRepository := repository.NewGoalRepository(database)

	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.JWTExpiry)
	goalService := service.NewGoalService(goalRepository)

	return &App{
		Cfg:         cfg,
		DB:          database,
		AuthService: authService,
		GoalService: goalService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
