package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restroassist/rag/config"
	"github.com/restroassist/rag/controller"
	"github.com/restroassist/rag/models"
	"github.com/restroassist/rag/services"
)

func main() {
	build := flag.Bool("build", false, "build the knowledge base from the restaurant data file and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *build {
		if err := buildKnowledgeBase(ctx, cfg, logger); err != nil {
			logger.Fatal("knowledge base build failed", zap.Error(err))
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildKnowledgeBase processes the restaurant-data artifact into the
// knowledge-base artifact, and mirrors the documents into ChromaDB when that
// backend is selected.
func buildKnowledgeBase(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	restaurants, err := services.LoadRestaurantData(cfg.Knowledge.DataFile)
	if err != nil {
		return err
	}

	embedder, err := services.NewEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	kb := services.NewKnowledgeBase(embedder, logger)
	if err := kb.BuildFromRestaurants(ctx, restaurants); err != nil {
		return err
	}
	if err := kb.Save(cfg.Knowledge.IndexDir); err != nil {
		return err
	}

	if cfg.Store.Type == "chroma" {
		store, err := newChromaStore(ctx, cfg, embedder, restaurantNames(restaurants), logger)
		if err != nil {
			return err
		}
		documents := services.ProcessRestaurants(restaurants)
		texts := make([]string, len(documents))
		for i, doc := range documents {
			texts[i] = doc.Content
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := store.Ingest(ctx, documents, vectors); err != nil {
			return err
		}
	}

	logger.Info("knowledge base build complete", zap.String("dir", cfg.Knowledge.IndexDir))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	embedder, err := services.NewEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	restaurants, err := services.LoadRestaurantData(cfg.Knowledge.DataFile)
	if err != nil {
		logger.Warn("could not load restaurant data, list endpoints will be empty", zap.Error(err))
		restaurants = []models.Restaurant{}
	}

	var store services.DocumentStore
	switch cfg.Store.Type {
	case "chroma":
		store, err = newChromaStore(ctx, cfg, embedder, restaurantNames(restaurants), logger)
		if err != nil {
			return err
		}
	default:
		kb := services.NewKnowledgeBase(embedder, logger)
		if err := kb.Load(cfg.Knowledge.IndexDir); err != nil {
			return err
		}
		if cfg.Knowledge.WatchKB {
			watcher := services.NewArtifactWatcher(kb, cfg.Knowledge.IndexDir, logger)
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("artifact watcher stopped", zap.Error(err))
				}
			}()
		}
		store = kb
	}

	llm, err := services.NewGeminiGenerator(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model, cfg.GenAI.MaxOutputTokens, cfg.GenAI.Temperature)
	if err != nil {
		return err
	}
	logger.Info("connected to Google Gemini", zap.String("model", cfg.GenAI.Model))

	retriever := services.NewRetriever(store, cfg.Chat.TopKResults, logger)
	generator := services.NewGenerator(llm, logger)
	conversations := services.NewConversationManager(cfg.Chat.MaxHistory)
	chatbot := services.NewChatbot(retriever, generator, conversations, logger)
	chatController := controller.NewChatController(chatbot, conversations, restaurants, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Restaurant Assistant API",
			"version": "1.0.0",
		})
	})

	api := router.Group("/api")
	{
		api.GET("/restaurants", chatController.ListRestaurants)
		api.GET("/restaurant/:id", chatController.GetRestaurant)
		api.GET("/restaurant/:id/menu", chatController.GetRestaurantMenu)
		api.POST("/chat", chatController.Chat)
		api.POST("/chat/restaurant/:id", chatController.ChatRestaurant)
		api.POST("/session", chatController.CreateSession)
		api.GET("/session/:id/history", chatController.GetSessionHistory)
		api.DELETE("/session/:id", chatController.DeleteSession)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting", zap.String("addr", addr))
	return router.Run(addr)
}

func newChromaStore(ctx context.Context, cfg *config.Config, embedder services.Embedder, names []string, logger *zap.Logger) (*services.ChromaStore, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.Store.ChromaURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(ctx, cfg.Store.ChromaCollection,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "restaurant assistant collection"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	return services.NewChromaStore(collection, embedder, names, logger), nil
}

func restaurantNames(restaurants []models.Restaurant) []string {
	names := make([]string, 0, len(restaurants))
	for _, r := range restaurants {
		names = append(names, r.Name)
	}
	return names
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
