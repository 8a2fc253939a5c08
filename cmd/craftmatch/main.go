package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/craftmatch/CraftMatch/app/repository"
	"github.com/craftmatch/CraftMatch/internal/pkg/assignment"
	"github.com/craftmatch/CraftMatch/internal/pkg/cache"
	"github.com/craftmatch/CraftMatch/internal/pkg/database"
	"github.com/craftmatch/CraftMatch/internal/pkg/env"
	"github.com/craftmatch/CraftMatch/internal/pkg/router"
	"github.com/craftmatch/CraftMatch/internal/pkg/scheduler"
)

func main() {
	app, sched := NewApplication()

	sched.Start()
	defer sched.Stop()

	// graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		sched.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *scheduler.Scheduler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "CraftMatch",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// background offer expiry and trial sweep
	sched := scheduler.New(db, assignment.NewServiceFromDB(db))

	return app, sched
}
