package server

import (
	"context"
	"net/http"
	"time"

	"github.com/fluentprep/fluentprep/internal/auth"
	"github.com/fluentprep/fluentprep/internal/config"
	apierrors "github.com/fluentprep/fluentprep/internal/errors"
	"github.com/fluentprep/fluentprep/internal/identity"
	"github.com/fluentprep/fluentprep/internal/logging"
	"github.com/fluentprep/fluentprep/internal/middleware"
	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/fluentprep/fluentprep/internal/monitoring"
	"github.com/fluentprep/fluentprep/internal/providers"
	"github.com/fluentprep/fluentprep/internal/quota"
	"github.com/fluentprep/fluentprep/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaEngine is the decision-engine surface the handlers need
type QuotaEngine interface {
	Check(ctx context.Context, userID string, tier models.PlanTier) quota.Decision
	RecordCall(ctx context.Context, userID string)
}

// ChatProvider generates a reply from a system prompt and chat history
type ChatProvider interface {
	Generate(ctx context.Context, system string, messages []providers.Message) (string, error)
	Model() string
}

// CompletionProvider generates a completion from a system and user prompt
type CompletionProvider interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Transcriber converts an audio URL into a transcript
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*providers.Transcript, error)
}

// Synthesizer converts text into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// UsageRecorder persists call logs and summarizes usage history
type UsageRecorder interface {
	Record(ctx context.Context, entry *models.CallLog)
	Summarize(ctx context.Context, userID string, since time.Time) (*usage.Summary, error)
}

// AIProviders bundles the provider clients used by the guarded endpoints
type AIProviders struct {
	Chat       ChatProvider
	Completion CompletionProvider
	Speech     Transcriber
	TTS        Synthesizer
}

// APIServer represents the main API server
type APIServer struct {
	config      *config.Config
	router      *gin.Engine
	db          *pgxpool.Pool
	authService *auth.Service
	resolver    *identity.Resolver
	quota       QuotaEngine
	providers   AIProviders
	usage       UsageRecorder
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, engine QuotaEngine, ai AIProviders) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware order matters: recovery first, then request ID so every
	// later stage can log it
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:      cfg,
		router:      router,
		db:          db,
		authService: auth.NewService(db, &cfg.JWT),
		resolver:    identity.NewResolver(&cfg.JWT, identity.NewPostgresPlanSource(db)),
		quota:       engine,
		providers:   ai,
		usage:       usage.NewRecorder(db),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// Guarded AI endpoints: identity, payload size, and quota are
		// checked in order before any provider call
		ai := v1.Group("/ai")
		ai.Use(middleware.RequireAuth(s.resolver))
		{
			ai.POST("/conversation-tutor", s.handleConversationTutor)
			ai.POST("/pronunciation-analysis", s.handlePronunciationAnalysis)
			ai.POST("/pte-speaking-evaluator", s.handlePTESpeakingEvaluator)
			ai.POST("/translate", s.handleTranslate)
			ai.POST("/tts", s.handleTextToSpeech)
		}

		// Quota status (authenticated, does not consume a call)
		v1.GET("/usage", middleware.RequireAuth(s.resolver), s.handleUsage)
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// respondError sends the standard error envelope for non-guarded routes
func respondError(c *gin.Context, err *apierrors.APIError) {
	response := apierrors.NewErrorResponse(
		err,
		middleware.RequestIDFromContext(c),
		c.Request.URL.Path,
		c.Request.Method,
	)
	c.JSON(err.HTTPStatus, response)
}
