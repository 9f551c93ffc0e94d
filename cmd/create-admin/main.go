package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	"github.com/noah-isme/ctp-enrollment-api/internal/service"
	"github.com/noah-isme/ctp-enrollment-api/pkg/config"
	"github.com/noah-isme/ctp-enrollment-api/pkg/database"
	"github.com/noah-isme/ctp-enrollment-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	flags := pflag.NewFlagSet("create-admin", pflag.ExitOnError)
	name := flags.StringP("name", "n", cfg.Bootstrap.AdminName, "administrator user name (no spaces)")
	email := flags.StringP("email", "e", cfg.Bootstrap.AdminEmail, "administrator email")
	password := flags.StringP("password", "p", cfg.Bootstrap.AdminPassword, "initial password (min 8 characters)")
	force := flags.Bool("force", false, "create the account even when an administrator already exists")
	_ = flags.Parse(os.Args[1:])

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewUserRepository(db)
	admins, err := repo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		logr.Fatal("failed to count administrators", zap.Error(err))
	}
	if admins > 0 && !*force {
		logr.Info("administrator already present, nothing to do", zap.Int("admins", admins))
		return
	}

	users := service.NewUserService(repo, dto.NewValidator(), logr)
	user, err := users.Create(ctx, dto.CreateUserRequest{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     models.RoleAdmin,
	}, "", models.ClientInfo{UserAgent: "create-admin"})
	if err != nil {
		logr.Fatal("failed to create administrator", zap.Error(err))
	}
	logr.Info("administrator created", zap.String("id", user.ID), zap.String("name", user.Name), zap.String("email", user.Email))
}
