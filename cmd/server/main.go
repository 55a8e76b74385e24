// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/conquianhq/conquian/internal/auth"
	"github.com/conquianhq/conquian/internal/handlers"
	"github.com/conquianhq/conquian/internal/history"
	"github.com/conquianhq/conquian/internal/middleware"
	"github.com/conquianhq/conquian/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	hist, err := history.NewPublisherFromEnv(context.Background())
	if err != nil {
		log.Fatalf("history publisher init failed: %v", err)
	}
	if hist == nil {
		logger.Warn("REDIS_ADDR not set; match history disabled")
	} else {
		defer hist.Close()
	}

	srv := handlers.NewRoomServer(room.NewStore(), hist)

	mux := http.NewServeMux()
	mux.Handle("/room/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(logger, srv),
	)))
	mux.Handle("/room/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(srv),
	)))
	mux.Handle("/room/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
