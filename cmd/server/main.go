package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/rentora/device-booking/internal/config"
	"github.com/rentora/device-booking/internal/database"
	"github.com/rentora/device-booking/internal/handler"
	"github.com/rentora/device-booking/internal/queue"
	"github.com/rentora/device-booking/internal/repository"
	"github.com/rentora/device-booking/internal/router"
	"github.com/rentora/device-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env always wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables caching and rate limiting
	if rdb == nil {
		log.Printf("redis unavailable, response cache and rate limiting disabled")
	}

	// Repositories
	modelRepo := repository.NewDeviceModelRepo(db)
	calendarRepo := repository.NewBookingCalendarRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	userRepo := repository.NewUserRepo(db)

	// Services
	reservations := service.NewReservationService(reservationRepo, db, cfg.PendingHoldTTL, cfg.ReviewHoldTTL)
	availability := service.NewAvailabilityService(modelRepo, calendarRepo, reservationRepo)

	// Background jobs: the expiry sweep and the confirmation-event consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go service.NewSweeper(reservations, cfg.SweepInterval).Run(ctx)
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation-consumer: %v", err)
		}
	}()

	// HTTP surface
	e := echo.New()
	router.RegisterRoutes(e, handler.NewAvailabilityHandler(availability), rdb)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo), cfg.JWTSecret)
	router.RegisterOrders(e, handler.NewOrderHandler(orderRepo, modelRepo, calendarRepo, reservations), cfg.JWTSecret)
	router.RegisterStaff(e, handler.NewStaffHandler(orderRepo, modelRepo, calendarRepo, reservations), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
