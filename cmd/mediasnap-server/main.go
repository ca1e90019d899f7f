package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/mediasnap/internal/core/config"
	"github.com/guiyumin/mediasnap/internal/core/resolve"
	"github.com/guiyumin/mediasnap/internal/core/version"
	"github.com/guiyumin/mediasnap/internal/server"
)

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	configPath := flag.String("config", "", "config file (default: ~/.config/mediasnap/config.yml)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediasnap-server %s\n", version.Version)
		return
	}

	cfg := config.LoadOrDefault()
	if *configPath != "" {
		loaded, err := config.LoadFrom(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// flag > config > default
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := cfg.Log.NewLogger()
	srv := server.NewServer(cfg, resolve.New(cfg, log), log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}
