package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"medvault/app/api"
	"medvault/app/middleware"
	"medvault/auth"
	"medvault/extract"
	"medvault/ledger"
	"medvault/model"
	"medvault/service"
	"medvault/store"
	"medvault/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 * 1024 * 1024,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	svc        *service.Service
	pool       *store.PostgresStore
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	cfg := loadConfig()
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		log.Fatal("error to create temp directory", err)
		return
	}

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}
	s.pool = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	anchorer := newAnchorer(ctx)
	extractor := extract.New(extract.NewOCRClient(os.Getenv("OCR_URL")), 2)

	s.svc = service.New(
		pool,
		anchorer,
		extractor,
		newAuthorizer(cfg),
		func() model.Embedder {
			return model.NewOllamaEmbedder(os.Getenv("OLLAMA_EMBEDDING_URL"), os.Getenv("OLLAMA_EMBEDDING_MODEL"))
		},
		func() model.Answerer {
			return model.NewHTTPAnswerer(os.Getenv("QA_URL"), cfg.ContextBudget)
		},
		cfg,
	)

	var (
		app           = fiber.New(config)
		checkHandler  = api.NewCheckHandler(anchorer)
		recordHandler = api.NewRecordHandler(s.svc, cfg)
		authn         = auth.NewJWTAuthenticator(os.Getenv("JWT_SECRET"))
		check         = app.Group("/check")
		apiv1         = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/records", recordHandler.HandleUpload)
	apiv1.Post("/chat/general", recordHandler.HandleGeneralChat)

	protected := apiv1.Group("", middleware.Authenticate(authn))
	protected.Post("/records/:id/ask", recordHandler.HandleAsk)
	protected.Get("/records/:id", recordHandler.HandleGetRecord)
	protected.Get("/records/:id/similar", recordHandler.HandleSimilar)
	protected.Get("/dashboard", recordHandler.HandleDashboard)

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

func newAnchorer(ctx context.Context) ledger.Anchorer {
	if path := os.Getenv("LEDGER_FILE"); path != "" {
		slog.Default().Info("using local file ledger", "path", path)
		return ledger.NewFileAnchorer(path)
	}

	chainID, err := strconv.ParseInt(os.Getenv("LEDGER_CHAIN_ID"), 10, 64)
	if err != nil {
		chainID = 11155111 // Sepolia
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

func newAuthorizer(cfg types.Config) auth.Authorizer {
	if cfg.PermissiveAuth {
		slog.Default().Warn("permissive authorization enabled, demo mode only")
		return auth.PermissiveAuthorizer{}
	}
	return auth.OwnerAuthorizer{}
}

func loadConfig() types.Config {
	cfg := types.Config{
		ServerAddr:     os.Getenv("SERVER_ADDR"),
		TempDir:        os.Getenv("TEMP_DIR"),
		MaxFileSize:    50 * 1024 * 1024,
		ChunkSize:      retrievalChunkSize(),
		TopK:           2,
		ContextBudget:  384,
		PermissiveAuth: os.Getenv("PERMISSIVE_AUTH") == "true",
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "./temp"
	}
	if size, err := strconv.ParseInt(os.Getenv("MAX_FILE_SIZE"), 10, 64); err == nil && size > 0 {
		cfg.MaxFileSize = size
	}
	if k, err := strconv.Atoi(os.Getenv("RETRIEVAL_TOP_K")); err == nil && k > 0 {
		cfg.TopK = k
	}
	return cfg
}

func retrievalChunkSize() int {
	if size, err := strconv.Atoi(os.Getenv("CHUNK_SIZE")); err == nil && size > 0 {
		return size
	}
	return 512
}
