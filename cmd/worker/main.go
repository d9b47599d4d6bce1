package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ravenloom/backend/internal/aiclient"
	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/queue"
	"github.com/ravenloom/backend/internal/storage"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/graph"
	s3loader "github.com/ravenloom/backend/pkg/loader/s3"
	"github.com/ravenloom/backend/pkg/loader/web"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/logger/console"
	pgstore "github.com/ravenloom/backend/pkg/store/pgx"

	amqp "github.com/rabbitmq/amqp091-go"
)

type processor interface {
	Process(ctx context.Context, body []byte) error
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	client := storage.NewS3Client(ctx)

	// GraphAiClient
	aiClient, err := aiclient.New(aiclient.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	// Init pgx client
	pgConn, err := db.NewPool(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphStorage := pgstore.NewGraphDBStorageWithConnection(
		pgConn,
		aiClient,
		pgstore.WithFactSimilarityMin(util.GetEnvFloat("FACT_SIMILARITY_MIN", 0)),
	)
	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:        aiClient,
		ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),
		ChunkOptions: graph.ChunkOptions{
			TargetSize:   int(util.GetEnvNumeric("CHUNK_TARGET_SIZE", graph.DefaultChunkTargetSize)),
			MaxSize:      int(util.GetEnvNumeric("CHUNK_MAX_SIZE", graph.DefaultChunkMaxSize)),
			OverlapChars: int(util.GetEnvNumeric("CHUNK_OVERLAP", graph.DefaultChunkOverlap)),
		},
	})
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	leaseTTL := util.GetEnvMinutes("INGEST_LEASE_MIN", 5)
	sources := queue.NewDocumentSources(
		s3loader.NewS3SourceLoaderWithClient(storage.Bucket(), client),
		web.NewWebSourceLoader(nil),
	)
	ingester, err := queue.NewIngester(queue.NewIngesterParams{
		Conn:     pgConn,
		Graph:    graphClient,
		Store:    graphStorage,
		Sources:  sources,
		LeaseTTL: leaseTTL,
	})
	if err != nil {
		logger.Fatal("Could not create ingester", "err", err)
	}

	learner, err := facts.NewLearner(graphStorage, aiClient, util.GetEnv("AI_EXTRACT_MODEL"), facts.DetectorFromEnv())
	if err != nil {
		logger.Fatal("Could not create learner", "err", err)
	}

	processors := map[string]processor{
		queue.IngestQueue: ingester,
		queue.LearnQueue:  queue.NewLearnProcessor(learner, pgConn),
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	staleAfter := util.GetEnvMinutes("INGEST_STALE_MIN", 15)
	if staleAfter <= leaseTTL {
		staleAfter = 2 * leaseTTL
	}
	if n, err := queue.RecoverStaleDocuments(ctx, ch, pgConn, staleAfter); err != nil {
		logger.Error("Failed to recover stale documents", "err", err)
	} else if n > 0 {
		logger.Info("Requeued stale documents", "count", n)
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				if p, ok := processors[qm.queueName]; ok {
					processingErr = p.Process(ctx, qm.msg.Body)
				} else {
					logger.Warn("No processor for queue", "queue", qm.queueName)
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err := qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info(
					"Processing time",
					"duration", formatDuration(time.Since(startTime)),
				)
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
