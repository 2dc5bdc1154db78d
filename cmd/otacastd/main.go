package main

import (
	"flag"
	"os"
	"path/filepath"

	"otacast/pkg/assets"
	"otacast/pkg/blob"
	"otacast/pkg/catalog"
	"otacast/pkg/directive"
	"otacast/pkg/ingest"
	"otacast/pkg/log"
	"otacast/pkg/resolve"
	"otacast/pkg/server"
)

const (
	version     = "0.1.0"
	dataDirPerm = 0750
)

func main() {
	// Initialize logger first
	_ = log.Logger

	dataDir := flag.String("data", "build/data", "Data directory path")
	dbPath := flag.String("db", "", "Catalog database path (default <data>/catalog.db)")
	addr := flag.String("addr", ":8080", "Listen address")
	assetBaseURL := flag.String("asset-base-url", "/assets/", "Base URL prefix for manifest asset links")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetDebugMode()
	}

	if err := os.MkdirAll(*dataDir, dataDirPerm); err != nil {
		log.Fatal().Err(err).Str("data_dir", *dataDir).Msg("Failed to create data directory")
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*dataDir, "catalog.db")
	}

	catalogStore, err := catalog.NewStore(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open catalog")
	}
	defer catalogStore.Close()

	blobStore, err := blob.New(filepath.Join(*dataDir, "blobs"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blob store")
	}

	assetStore := assets.New(catalogStore, blobStore)
	engine := resolve.NewEngine(catalogStore, directive.NewResolver(catalogStore), *assetBaseURL)
	ingestor := ingest.New(assetStore, catalogStore)

	srv := server.NewServer(*dataDir, version, catalogStore, assetStore, engine, ingestor)
	if err := srv.Start(*addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
