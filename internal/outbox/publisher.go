package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hackgods/tenant-booking-engine/internal/metrics"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays committed outbox rows to Kafka. Rows are claimed with
// FOR UPDATE SKIP LOCKED, so several relays can run side by side.
type Publisher struct {
	pool      *pgxpool.Pool
	repo      *Repository
	log       zerolog.Logger
	metrics   *metrics.Metrics
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(pool *pgxpool.Pool, repo *Repository, log zerolog.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		log:       log,
		metrics:   m,
		brokers:   SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.log.Warn().Msg("outbox publisher disabled (no kafka brokers configured)")
		<-ctx.Done()
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx, writer)
			if err != nil {
				p.log.Error().Err(err).Msg("outbox publish failed")
				continue
			}
			if n > 0 {
				p.log.Debug().Int("count", n).Msg("outbox batch published")
			}
			if n == p.batchSize {
				if backlog, err := p.repo.Pending(ctx); err == nil {
					p.log.Info().Int64("backlog", backlog).Msg("outbox falling behind")
				}
			}
		}
	}
}

// PublishBatch relays at most one batch and reports how many rows were sent.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	started := time.Now()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, Message(ctx, r))
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.OutboxBatch(0, len(records), started)
		return 0, err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	p.metrics.OutboxBatch(len(records), 0, started)
	return len(records), nil
}
