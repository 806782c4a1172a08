package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vaibh/diarization-pipeline/internal/cleanup"
	"github.com/vaibh/diarization-pipeline/internal/config"
	"github.com/vaibh/diarization-pipeline/internal/pipeline"
	"github.com/vaibh/diarization-pipeline/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "path to the YAML config file")
		inputPath  = flag.String("input", "", "path to the input WAV file (required)")
		name       = flag.String("name", "", "request name used for output files (defaults to the input filename)")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *name == "" {
		base := filepath.Base(*inputPath)
		*name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.TempDir, 0755); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	log.Println("Initializing components...")

	localStore := storage.NewLocalStore(cfg.Storage.OutputDir)

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Transcripts will only be saved locally")
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	db, err := storage.NewSessionDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	sweeper := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
	)
	sweeper.Start()
	defer sweeper.Stop()

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Processing %s", *inputPath)
	transcript, err := p.Run(ctx, *inputPath)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	artifacts, err := localStore.SaveSession(*name, transcript)
	if err != nil {
		log.Fatalf("Failed to save transcript: %v", err)
	}
	log.Printf("Transcript saved to %s", artifacts.TranscriptPath)
	log.Printf("Diarization saved to %s", artifacts.DiarizationPath)

	rec := &storage.SessionRecord{
		SessionID:      uuid.New().String(),
		RequestName:    *name,
		SourcePath:     *inputPath,
		TranscriptPath: artifacts.TranscriptPath,
		LanguageCode:   transcript.LanguageCode,
		SegmentCount:   len(transcript.Segments),
		SpeechDuration: transcript.SpeechDuration(),
		WordCount:      transcript.WordCount(),
		CreatedAt:      time.Now(),
	}
	if err := db.SaveSession(rec); err != nil {
		log.Printf("WARNING: failed to record session metadata: %v", err)
	}

	if driveClient != nil {
		link, err := driveClient.Upload(*name, transcript)
		if err != nil {
			log.Printf("WARNING: Google Drive upload failed: %v", err)
		} else {
			log.Printf("Uploaded to Google Drive: %s", link)
		}
	}

	fmt.Println()
	fmt.Printf("Segments: %d  Words: %d  Speech: %.2fs\n",
		len(transcript.Segments), transcript.WordCount(), transcript.SpeechDuration())
	fmt.Println(transcript.Transcript)
}
