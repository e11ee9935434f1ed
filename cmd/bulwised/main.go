package main

import (
	"context"
	"log"
	"os"

	"github.com/bulwise/bulwise/config"
	"github.com/bulwise/bulwise/internal/server"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("BULWISE_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if addr := os.Getenv("BULWISE_HTTP_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
