package config

import (
	"log/slog"
	"time"
)

type ctxKey string

const (
	IS_PROD                                = false
	LOG_LEVEL_PROD                         = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE        = true //if redis init fails, it falls back to an internals in-memory store
	TRACE_ID_KEY                           = "traceId"
	PRINCIPAL_KEY                   ctxKey = "principal"
	RATE_LIMIT_PER_SECOND                  = 2
	BURST_RATE_LIMIT_PER_SECOND            = 5

	//embeddings
	EmbeddingOutputDimensionality int32 = 1536
	UserCollectionFormat                = "user_%s_collection"
	EmbeddingBatchSize                  = 100

	//splitter
	ChunkSize    = 1000
	ChunkOverlap = 200
	SearchTopK   = 3

	//per-user index lock
	IndexLockTTL          = 2 * time.Minute
	IndexLockPollInterval = 100 * time.Millisecond

	//worker pool
	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	QuizJobTimeout                  = 5 * time.Minute

	//serverTimeouts
	ReadTimeout            = 30 * time.Second
	WriteTimeout           = 5 * time.Minute
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//uploads
	MaxUploadSize   = 32 << 20 //32mb
	UploadDirectory = "temporary_data"

	//vectorDB
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1

	//extraction
	PopplerBinary           = "pdftoppm"
	RasterDPI               = 150
	RasterTimeout           = 2 * time.Minute
	PageConcurrency         = 8
	NoTextFoundMarker       = "No text found"
	PageErrorMarkerFormat   = "[page %d could not be processed]"
	VisionSystemPromptBase  = "Analyze the following image:\n"
	VisionDetectionsField   = "image_detections"
	GradingBatchConcurrency = 8

	//llm
	OpenAIChatModel      = "gpt-4o-2024-08-06"
	OpenAIVisionModel    = "gpt-4o"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	GeminiModelName      = "gemini-2.5-flash"
	GoogleEmbeddingModel = "gemini-embedding-001"

	VisionTemperature     float32 = 0.2
	GenerationTemperature float32 = 0.7
	GradingTemperature    float32 = 0.1

	//quiz
	SubjectiveChoicesSentinel = "빈칸" //"blank"; clients compare against this literal
	QuizQuestionsField        = "quiz_questions"

	//resilience
	BackendMaxRetries        = 2
	BackendRetryBaseDelay    = 500 * time.Millisecond
	BackendRequestsPerSecond = 10
	BreakerMaxRequests       = 3
	BreakerInterval          = 30 * time.Second
	BreakerOpenTimeout       = 30 * time.Second
	BreakerMinRequests       = 5
	BreakerFailureRatio      = 0.6

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second
	BackendHTTPTimeout  = 90 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore          = 0
	RedisVerificationStore = 2
	RedisLockStore         = 3

	//redis timeouts
	RedisJobStoreTTL = 24 * time.Hour

	//email verification
	VerificationCodeTTL     = 300 * time.Second
	VerificationKeyPrefix   = "verify:"
	VerificationMailSubject = "Study-mentor verification code"
	VerificationMailBody    = "Your verification code is: %s"
	SMTPHost                = "smtp.gmail.com"
	SMTPPort                = 587
)
