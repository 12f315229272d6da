package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v71/github"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github-commit-notify/bot"
	"github-commit-notify/handlers"
	"github-commit-notify/models"
	"github-commit-notify/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "commit_notify.db"
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Repository{},
		&models.ChatBinding{},
		&models.RepositoryUser{},
		&models.Commit{},
		&models.WeeklyReport{},
	)
	if err != nil {
		log.Fatal(err)
	}

	tg := services.NewTelegramClient(os.Getenv("BOT_TOKEN"))

	var gh *github.Client
	if os.Getenv("GITHUB_TOKEN") != "" {
		gh = services.NewGitHubClient()
	}

	services.StartWeeklyReportScheduler(db, tg)

	b := bot.New(db, tg, gh)
	go b.Run(context.Background())

	r := gin.Default()
	r.POST("/webhook", handlers.HandleGitHubWebhook(db, tg))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
