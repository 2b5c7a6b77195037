package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/snapcaption/internal/app"
	"github.com/timmy/snapcaption/internal/config"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/service"
	"github.com/timmy/snapcaption/internal/source"
	"github.com/timmy/snapcaption/internal/source/directory"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "snapcaption-batch",
	})
	logger.SetDefaultLogger(appLogger)

	dir := flag.String("dir", "", "Directory of images to caption (defaults to batch.dir)")
	limit := flag.Int("limit", 100, "Maximum number of images to caption, 0 for all")
	recursive := flag.Bool("recursive", false, "Descend into subdirectories")
	workers := flag.Int("workers", 0, "Concurrent workers, 0 uses batch.workers")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *dir == "" {
		*dir = cfg.Batch.Dir
	}
	if *dir == "" {
		appLogger.Fatal("No input directory: pass -dir or set batch.dir")
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	src := directory.NewAdapter(*dir, cfg.Upload.AllowedExtensions, *recursive || cfg.Batch.Recursive)

	stats, err := application.BatchService.CaptionFromSource(ctx, src, *limit, &service.BatchOptions{
		OnResult: func(item source.ImageItem, res *service.CaptionResult, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s\tERROR\t%v\n", item.SourceID, err)
				return
			}
			fmt.Printf("%s\t%s\t%s\n", item.SourceID, res.ImageID, res.Caption)
		},
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to caption from source")
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"cached":    stats.CachedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Batch captioning completed")
}
