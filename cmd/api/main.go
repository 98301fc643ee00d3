package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/customHttpClient"
	"github.com/akolanti/StudyMentor/internal/data/redisStore"
	"github.com/akolanti/StudyMentor/internal/data/store"
	jobmodel "github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/handlers"
	"github.com/akolanti/StudyMentor/internal/job"
	"github.com/akolanti/StudyMentor/internal/mcpserver"
	"github.com/akolanti/StudyMentor/internal/middleware"
	"github.com/akolanti/StudyMentor/internal/rag"
	"github.com/akolanti/StudyMentor/internal/rag/embedding"
	"github.com/akolanti/StudyMentor/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/StudyMentor/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/StudyMentor/internal/rag/extract"
	"github.com/akolanti/StudyMentor/internal/rag/grading"
	"github.com/akolanti/StudyMentor/internal/rag/ingest"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/internal/rag/llm/gemini"
	"github.com/akolanti/StudyMentor/internal/rag/llm/gpt"
	"github.com/akolanti/StudyMentor/internal/rag/ocr"
	"github.com/akolanti/StudyMentor/internal/rag/ocr/googleVision"
	"github.com/akolanti/StudyMentor/internal/rag/quiz"
	"github.com/akolanti/StudyMentor/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/internal/server"
	"github.com/akolanti/StudyMentor/internal/verification"
	"github.com/akolanti/StudyMentor/internal/worker"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"golang.org/x/time/rate"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

type languageModel interface {
	llm.ChatCompletionService
	llm.VisionAnalysisService
}

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	settings, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger_i.SetLevel(settings.LogLevel)

	flag.StringVar(&listenAddr, "listen-addr", settings.ListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	redisOpts := redisStore.Options{Addr: settings.RedisAddr, Password: settings.RedisPassword}

	//stores, with in-memory fallbacks when redis is offline
	var jobStore jobmodel.JobStore
	var codeStore verification.CodeStore
	var locker ingest.Locker
	if s, err := redisStore.Connect(serviceContext, redisOpts, config.RedisJobStore); err == nil {
		jobStore = store.NewRedisJobStore(s)
	}
	if s, err := redisStore.Connect(serviceContext, redisOpts, config.RedisVerificationStore); err == nil {
		codeStore = store.NewRedisCodeStore(s)
	}
	if s, err := redisStore.Connect(serviceContext, redisOpts, config.RedisLockStore); err == nil {
		locker = store.NewRedisLock(s)
	}
	if jobStore == nil || codeStore == nil || locker == nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			logger.Error("Redis stores are offline")
			return
		}
		logger.Warn("Redis stores are offline, falling back to in-memory stores")
		jobStore = store.NewInMemoryJobStore()
		codeStore = store.NewInMemoryCodeStore()
		locker = store.NewKeyedMutex()
	}

	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})

	httpClient := customHttpClient.NewHTTPClient()
	guard := func(name string) *resilience.Guard {
		return resilience.NewGuard(name, resilience.DefaultOptions())
	}

	var model languageModel
	var embedder embedding.Embedder
	switch settings.LLMProvider {
	case config.ProviderGemini:
		g, err := gemini.NewClient(serviceContext, settings.GeminiAPIKey, settings.GeminiModel, httpClient, guard("gemini"), "")
		if err != nil {
			logger.Error("Gemini client failed to initialize", "error", err)
			return
		}
		e, err := googleEmbedding.NewClient(serviceContext, settings.GeminiAPIKey, settings.GeminiEmbedModel, httpClient, guard("gemini_embedding"), "")
		if err != nil {
			logger.Error("Gemini embedding client failed to initialize", "error", err)
			return
		}
		model, embedder = g, e
	default:
		model = gpt.NewClient(gpt.Options{
			APIKey:      settings.OpenAIAPIKey,
			ChatModel:   settings.OpenAIChatModel,
			VisionModel: settings.OpenAIVisionModel,
			HTTPClient:  httpClient,
		}, guard("openai"))
		embedder = openaiEmbedding.NewClient(settings.OpenAIAPIKey, settings.OpenAIEmbedModel, httpClient, guard("openai_embedding"), "")
	}

	//ocr stays unset without a key; pdf ocr requests then fail as backend unavailable
	var detector ocr.TextDetectionService
	if settings.VisionAPIKey != "" {
		v, err := googleVision.NewClient(serviceContext, settings.VisionAPIKey, httpClient, guard("google_vision"), "")
		if err != nil {
			logger.Error("Vision client failed to initialize", "error", err)
			return
		}
		detector = v
	} else {
		logger.Warn("GOOGLE_VISION_API_KEY is not set, character recognition is disabled")
	}

	vectorDB, err := qdrantDB.NewClient(qdrantDB.Options{
		Host:   settings.QdrantHost,
		Port:   settings.QdrantPort,
		APIKey: settings.QdrantAPIKey,
	}, guard("qdrant"))
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return
	}
	go vectorDB.CloseOnDone(serviceContext)

	ragService := rag.NewService(
		extract.NewExtractor(extract.NewPopplerRasterizer(settings.PopplerBinary), detector, model, settings.PageConcurrency),
		ingest.NewIndexer(embedder, vectorDB, locker),
		quiz.NewGenerator(model),
		grading.NewGrader(model, config.GradingBatchConcurrency),
	)

	var verifier auth.Verifier
	if settings.AuthMode == config.AuthModeStatic {
		logger.Warn("Static token auth is enabled", "user", settings.StaticUser)
		verifier = auth.NewStaticTokenVerifier(settings.StaticToken, settings.StaticUser)
	} else {
		verifier = auth.NewJWTVerifier(settings.JWTSecret, settings.JWTIssuer)
	}

	verificationService := verification.NewService(codeStore, verification.NewSMTPMailer(
		settings.SMTPHost, settings.SMTPPort, settings.SMTPUser, settings.SMTPPassword, settings.SMTPFrom))

	limiter := middleware.NewIPRateLimiter(rate.Limit(settings.RateLimitPerSecond), settings.RateLimitBurst)
	go limiter.PruneLoop(serviceContext, time.Minute, 10*time.Minute)

	routes := server.Routes{
		Handlers: handlers.New(ragService, verificationService, handlers.NewJobHandler(service)),
		Chain:    middleware.New(verifier, limiter),
		MCP:      mcpserver.New(ragService, verifier).Handler(),
	}

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.CreateServer(listenAddr, routes)
	go server.ShutDownHandler(shutdownParams)

	<-stopExecution
	logger.Info("Server stopped")
}
