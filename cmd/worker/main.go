// Command worker drains the audit queue and persists events as audit
// records. Malformed deliveries go to the DLQ instead of being retried.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"chatgate/internal/audit"
	"chatgate/internal/config"
	"chatgate/internal/db"
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
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	repo := audit.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial failed", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel failed", zap.Error(err))
	}
	defer ch.Close()

	// Same main-queue arguments as the publisher so both sides agree on
	// the declared topology.
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatal("queue declare failed", zap.Error(err))
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos failed", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency))

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var ev audit.Event
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Kind == "" {
					log.Warn("bad delivery",
						zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if err := repo.Insert(ctx, audit.RecordFromEvent(ev)); err != nil {
					log.Error("persist audit event failed",
						zap.Int("worker", workerID),
						zap.String("kind", ev.Kind),
						zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				log.Info("audit event stored",
					zap.Int("worker", workerID),
					zap.String("kind", ev.Kind),
					zap.String("session_id", ev.SessionID))

				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", zap.Int("worker", workerID), zap.Error(err))
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(time.Second)
				continue
			}
			deliveries <- d
		}
	}
}
