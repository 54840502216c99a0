package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/review-insights/internal/audit"
	"github.com/suPer8Hu/review-insights/internal/config"
	"github.com/suPer8Hu/review-insights/internal/db"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/store/rabbitmq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxAttempts   = 3
	retryDelay    = 5 * time.Second
	attemptHeader = "x-attempt"
)

type outcome int

const (
	ack outcome = iota
	retry
	drop
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	zapLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer zapLog.Sync()
	log := logger.FromZap(zapLog)

	gdb, err := db.Connect(cfg.DBDSN, zapLog)
	if err != nil {
		zapLog.Fatal("db connect failed", zap.Error(err))
	}
	if err := gdb.AutoMigrate(&models.AuditLog{}); err != nil {
		zapLog.Fatal("db migrate failed", zap.Error(err))
	}
	repo := audit.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		zapLog.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zapLog.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		zapLog.Fatal("queue declare", zap.Error(err))
	}

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		zapLog.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		zapLog.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLog.Info("audit worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)
	// buffered deliveries are still finished after a shutdown signal
	workCtx := context.WithoutCancel(ctx)
	var pubMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(map[string]any{"worker": workerID})
			for d := range jobs {
				attempt := attemptOf(d.Headers)
				switch process(workCtx, repo, wlog, d.Body, attempt) {
				case ack:
					if err := d.Ack(false); err != nil {
						wlog.Warn("ack failed", map[string]any{"message_id": d.MessageId, "error": err})
					}
				case retry:
					pubMu.Lock()
					err := requeue(workCtx, ch, rabbitmq.RetryQueue(cfg.RabbitQueue), d, attempt+1)
					pubMu.Unlock()
					if err != nil {
						wlog.Error("requeue failed", map[string]any{"message_id": d.MessageId, "error": err})
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
				case drop:
					// dead-letters to <queue>.dlq
					_ = d.Nack(false, false)
				}
			}
		}(i)
	}

	// dispatcher
	dispatch(ctx, msgs, jobs, func(d amqp.Delivery) {
		// back to the broker for the next consumer
		_ = d.Nack(false, true)
	})
	zapLog.Info("worker shutting down")
	close(jobs)
	wg.Wait()
}

// dispatch forwards deliveries to the pool until ctx is done or in closes.
// A delivery held while every worker is busy is handed to unsent when ctx
// ends, so shutdown never waits on a free slot.
func dispatch[T any](ctx context.Context, in <-chan T, out chan<- T, unsent func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- d:
			case <-ctx.Done():
				unsent(d)
				return
			}
		}
	}
}

// process persists one audit event. attempt starts at 1.
func process(ctx context.Context, sink audit.Sink, log logger.Logger, body []byte, attempt int) outcome {
	var e models.AuditLog
	if err := json.Unmarshal(body, &e); err != nil || e.ID == "" || e.Type == "" {
		log.Warn("bad audit message", map[string]any{"error": err})
		return drop
	}

	start := time.Now()
	err := sink.Record(ctx, &e)
	switch {
	case err == nil:
		return ack
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// redelivered after a lost ack
		return ack
	case attempt >= maxAttempts:
		log.Error("audit event dropped", map[string]any{"id": e.ID, "attempt": attempt, "error": err})
		return drop
	default:
		log.Warn("audit write failed, will retry", map[string]any{
			"id":      e.ID,
			"attempt": attempt,
			"cost_ms": time.Since(start).Milliseconds(),
			"error":   err,
		})
		return retry
	}
}

func attemptOf(h amqp.Table) int {
	switch v := h[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}

// requeue parks d on the retry queue; its TTL dead-letters it back to the
// main queue.
func requeue(ctx context.Context, ch *amqp.Channel, retryQ string, d amqp.Delivery, attempt int) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(cctx, "", retryQ, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Timestamp:    d.Timestamp,
		Expiration:   strconv.FormatInt(retryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
		Body:         d.Body,
	})
}
