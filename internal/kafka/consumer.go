package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const defaultMaxTries = 8

type Consumer struct {
	r          reader
	workers    int
	maxTries   uint
	newBackOff func() backoff.BackOff
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, defaultMaxTries, func() backoff.BackOff {
		return backoff.NewExponentialBackOff()
	})
}

func newConsumer(r reader, workers int, maxTries uint, newBackOff func() backoff.BackOff) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, maxTries: maxTries, newBackOff: newBackOff}
}

// Start reads until ctx is done. Each partition is owned by one worker, so
// messages of a partition (and therefore events of one order) are handled
// and committed strictly in offset order. A message whose handler still
// fails after maxTries stops the consumer without committing it; Start then
// returns that error and the message is redelivered on the next start.
func (c *Consumer) Start(parent context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				// setelah berhenti, sisa antrian dibuang tanpa commit
				if ctx.Err() != nil {
					continue
				}
				if err := c.handle(ctx, id, h, m); err != nil {
					cancel(err)
				}
			}
		}(i, queues[i])
	}
	stop := func() error {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		if parent.Err() == nil && ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return nil
	}

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if serr := stop(); serr != nil {
				return serr
			}
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[c.slot(m.Partition)] <- m:
		case <-ctx.Done():
			return stop()
		}
	}
}

// handle retries h on the same message with backoff and commits only after
// it succeeds.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := h(ctx, m); err != nil {
			log.Warn().Err(err).
				Int("worker", worker).
				Int("partition", m.Partition).
				Int64("offset", m.Offset).
				Int("attempt", attempt).
				Msg("kafka handler failed")
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("kafka handler gave up, stopping consumer")
		}
		return fmt.Errorf("kafka: partition %d offset %d: %w", m.Partition, m.Offset, err)
	}

	// commit on success
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("kafka commit failed")
	}
	return nil
}

func (c *Consumer) slot(partition int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % c.workers
}
