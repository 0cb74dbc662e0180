package main

import (
	"os"
	"strconv"

	"github.com/oarkflow/log"

	"github.com/oarkflow/sprite/pkg/config"
	"github.com/oarkflow/sprite/pkg/server"
)

func main() {
	cfg := config.Default()
	if path := os.Getenv("SPRITE_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Printf("load config %s: %v", path, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Printf("invalid PORT %q: %v", port, err)
			os.Exit(1)
		}
		cfg.Server.Port = p
	}

	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		log.Printf("build server: %v", err)
		os.Exit(1)
	}
	if err := srv.Start(cfg.Addr()); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
