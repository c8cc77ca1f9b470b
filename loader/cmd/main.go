package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"medvault/auth"
	"medvault/extract"
	"medvault/ledger"
	"medvault/loader"
	"medvault/model"
	"medvault/service"
	"medvault/store"
	"medvault/types"

	"github.com/joho/godotenv"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	anchorer := newAnchorer(ctx)
	extractor := extract.New(extract.NewOCRClient(os.Getenv("OCR_URL")), 2)

	svc := service.New(
		pool,
		anchorer,
		extractor,
		auth.OwnerAuthorizer{},
		func() model.Embedder {
			return model.NewOllamaEmbedder(os.Getenv("OLLAMA_EMBEDDING_URL"), os.Getenv("OLLAMA_EMBEDDING_MODEL"))
		},
		func() model.Answerer {
			return model.NewHTTPAnswerer(os.Getenv("QA_URL"), 384)
		},
		types.Config{ChunkSize: 512, TopK: 2, MaxFileSize: 50 * 1024 * 1024},
	)

	watcher, err := loader.New(svc, types.LoaderConfig{
		SourceDir:  envOr("LOADER_SOURCE_DIR", "./source"),
		ArchiveDir: envOr("LOADER_ARCHIVE_DIR", "./archive"),
		BadDir:     envOr("LOADER_BAD_DIR", "./bad"),
		OwnerLabel: envOr("LOADER_OWNER", "drop-folder"),
	})
	if err != nil {
		log.Fatal("error to start loader", err)
		return
	}

	if err := watcher.Run(ctx); err != nil {
		log.Fatal("loader stopped with error", err)
	}
	log.Println("Loader stopped successfully")
}

func newAnchorer(ctx context.Context) ledger.Anchorer {
	if path := os.Getenv("LEDGER_FILE"); path != "" {
		return ledger.NewFileAnchorer(path)
	}
	chainID, err := strconv.ParseInt(os.Getenv("LEDGER_CHAIN_ID"), 10, 64)
	if err != nil {
		chainID = 11155111
	}
	anchorer, err := ledger.NewEthereumAnchorer(ctx, ledger.EthereumConfig{
		RPCURL:        os.Getenv("LEDGER_RPC_URL"),
		PrivateKeyHex: os.Getenv("LEDGER_PRIVATE_KEY"),
		ChainID:       chainID,
	})
	if err != nil {
		log.Fatal("error to configure ledger client", err)
	}
	return anchorer
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}
