package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"fieldcap/internal/blob"
	"fieldcap/internal/config"
	"fieldcap/internal/geo/ipgeo"
	"fieldcap/internal/logging"
	"fieldcap/internal/server"
	"fieldcap/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("acquire daemon lock", logging.Error(err))
		os.Exit(1)
	}
	if !locked {
		fmt.Fprintln(os.Stderr, "fieldcapd is already running")
		os.Exit(1)
	}
	defer lock.Unlock()

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	signer := blob.NewSigner(cfg.Blob.SigningSecret, "http://"+cfg.Paths.APIBind)
	blobs, err := blob.OpenFromConfig(ctx, cfg, signer)
	if err != nil {
		logger.Error("open blob store", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("blob store ready", logging.String("driver", blobs.Driver()))

	var providers []ipgeo.Provider
	if !cfg.Geo.DisableDirectProviders {
		providers = ipgeo.FromConfig(cfg.Geo)
	}

	srv := server.New(cfg, st, blobs, signer, providers, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("start api server", logging.Error(err))
		os.Exit(1)
	}
	defer srv.Stop()

	<-ctx.Done()
	logger.Info("fieldcapd shutting down")
}

func lockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "fieldcapd.lock")
}
