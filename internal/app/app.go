package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/config"
	"github.com/hireloop/hireloop/internal/core"
	db "github.com/hireloop/hireloop/internal/core/database"
	"github.com/hireloop/hireloop/internal/core/extraction"
	"github.com/hireloop/hireloop/internal/core/llm"
	"github.com/hireloop/hireloop/internal/core/messaging"
	objectclient "github.com/hireloop/hireloop/internal/core/object-client"
	"github.com/hireloop/hireloop/internal/core/rtc"
	"github.com/hireloop/hireloop/internal/queue"
	"github.com/hireloop/hireloop/internal/services"
)

const analysisWorkers = 4

// App owns every long-lived component: database, object storage, the job
// queue, the analysis worker pool and the HTTP server.
type App struct {
	Logger   *zap.Logger
	DBClient core.DbClient
	Queue    *queue.Rabbit
	Server   *Server

	analysis *services.AnalysisService
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("object client initialized and ready")

	rabbit, err := queue.NewRabbit(cfg.RabbitURL, cfg.AnalysisQueue, logger)
	if err != nil {
		return nil, err
	}

	analyzer, err := llm.NewGeminiAnalyzer(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the analyzer: %w", err)
	}

	gateway, err := messaging.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayToken)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the messaging gateway: %w", err)
	}

	issuer, err := rtc.NewTokenIssuer(cfg.RTCAPIKey, cfg.RTCAPISecret, cfg.RoomTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the credential issuer: %w", err)
	}
	rooms, err := rtc.NewRoomClient(cfg.RTCServerURL, issuer)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the room client: %w", err)
	}

	extractor := extraction.NewDocconvExtractor(false)
	fetcher := extraction.NewResolver(objClient)

	tracker := services.NewConversationService(dbClient, logger)
	notifier := services.NewNotificationService(dbClient, gateway, tracker, logger)
	intake := services.NewIntakeService(dbClient, objClient, cfg.BucketName, rabbit, logger)
	analysis := services.NewAnalysisService(dbClient, fetcher, extractor, analyzer, notifier, rabbit, logger)
	sessions := services.NewSessionService(dbClient, rooms, issuer, cfg.EmptyRoomTimeout, logger)

	server := NewServer(cfg, dbClient, intake, analysis, sessions, tracker, logger)

	return &App{
		Logger:   logger,
		DBClient: dbClient,
		Queue:    rabbit,
		Server:   server,
		analysis: analysis,
	}, nil
}

// StartWorker registers the analysis consumer. It returns once the consumer
// is running; deliveries are handled until ctx is cancelled.
func (a *App) StartWorker(ctx context.Context) error {
	return a.Queue.ConsumeAnalysisJobs(ctx, analysisWorkers, func(ctx context.Context, job queue.AnalysisJob) error {
		return a.analysis.Process(ctx, job.ApplicationID)
	})
}

func (a *App) Close() {
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
