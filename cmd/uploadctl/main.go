package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/builder"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
)

func main() {
	// Registered before BuildUploader so LoadConfig's flag.Parse picks
	// it up together with -env.
	typeFlag := flag.String("type", "", "Upload type (egi, epp, utility); defaults to the server's default")

	status := func(task *entity.UploadTask, message string) {
		fmt.Printf("[%s] %s: %s\n", task.State, task.Filename, message)
	}

	orchestrator, listener, cfg, logger, err := builder.BuildUploader(status)
	if err != nil {
		log.Fatal("Failed to build upload pipeline:", err)
	}
	defer logger.Sync()

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatal("Usage: uploadctl [-env <name>] [-type <uploadType>] <file> [file...]")
	}

	uploadType := entity.UploadType(*typeFlag)
	if uploadType == "" {
		uploadType = entity.UploadType(cfg.UploadCfg.DefaultUploadType)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		orchestrator.Add(filepath.Base(path), mimeType, data, uploadType)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := listener.Subscribe(ctx, orchestrator.Callbacks()); err != nil {
		logger.Warn("continuing without scan notifications", zap.Error(err))
		orchestrator.DisableScanWait()
	}

	if err := orchestrator.Run(ctx); err != nil {
		logger.Warn("upload batch interrupted", zap.Error(err))
	}

	failed := 0
	for _, task := range orchestrator.Tasks() {
		switch task.State {
		case entity.TaskStateFinalized:
			fmt.Printf("OK       %s (%d attempts)\n", task.Filename, task.Attempts)
		case entity.TaskStateCancelled:
			fmt.Printf("CANCELLED %s\n", task.Filename)
			failed++
		default:
			reason := "unknown error"
			if task.LastErr != nil {
				reason = fmt.Sprintf("%s: %s", task.LastErr.ErrorCode, task.LastErr.Message)
			}
			fmt.Printf("FAILED   %s (%s)\n", task.Filename, reason)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
