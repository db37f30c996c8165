package main

import (
	"github.com/tourneyhub/roomserver/config"
	"github.com/tourneyhub/roomserver/engine"
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Room Server
	gameServer := server.NewGameServer(cfg, engine.NewLogEngine())

	// Start Server
	logger.Log.Infof("Starting room server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
