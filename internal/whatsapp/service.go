package whatsapp

import (
	"context"
	"hash/fnv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/recordpilot/internal/logging"
)

// FailureReply is sent when a message could not be processed.
const FailureReply = "I encountered an error processing your message. Please try again."

// Sender is the outbound half of the Cloud API.
type Sender interface {
	Send(ctx context.Context, to, body, replyTo string) (*SendResult, error)
	Typing(ctx context.Context, messageID string) error
}

// Conversations answers one message of one conversation.
type Conversations interface {
	Handle(ctx context.Context, id, input string) (string, error)
}

// ServiceConfig tunes the worker pool.
type ServiceConfig struct {
	Workers   int           // default 4
	QueueSize int           // per worker, default 64
	Timeout   time.Duration // per message, default 2m
	Region    string        // default region for Normalize
}

// Service feeds inbound messages to their sender's conversation and sends
// the replies back. Messages of one sender always land on the same worker,
// so they are answered in arrival order.
type Service struct {
	sender Sender
	conv   Conversations
	dedup  Deduper
	log    *logging.Logger
	cfg    ServiceConfig
	queues []chan Inbound
}

// NewService creates a Service. A nil dedup uses a MemoryDeduper.
func NewService(sender Sender, conv Conversations, dedup Deduper, cfg ServiceConfig, log *logging.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Region == "" {
		cfg.Region = "DE"
	}
	if dedup == nil {
		dedup = NewMemoryDeduper(0)
	}
	if log == nil {
		log = logging.Nop()
	}
	queues := make([]chan Inbound, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan Inbound, cfg.QueueSize)
	}
	return &Service{sender: sender, conv: conv, dedup: dedup, log: log, cfg: cfg, queues: queues}
}

// Enqueue hands msgs to the workers and returns how many were accepted.
// Already seen ids are skipped. It blocks while a worker queue is full.
func (s *Service) Enqueue(ctx context.Context, msgs []Inbound) (int, error) {
	accepted := 0
	for _, m := range msgs {
		fresh, err := s.dedup.FirstSeen(ctx, m.ID)
		if err != nil {
			// fail open
			s.log.Warn("WhatsApp dedup unavailable", "message_id", m.ID, "error", err)
			fresh = true
		}
		if !fresh {
			s.log.Debug("WhatsApp duplicate delivery skipped", "message_id", m.ID)
			continue
		}
		select {
		case s.queues[s.shard(m.From)] <- m:
			accepted++
		case <-ctx.Done():
			return accepted, ctx.Err()
		}
	}
	return accepted, nil
}

func (s *Service) shard(from string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(from))
	return int(h.Sum32() % uint32(len(s.queues)))
}

// Run starts the workers and blocks until ctx is cancelled. A message
// being answered when ctx ends is finished first.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range s.queues {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					if n := len(q); n > 0 {
						s.log.Warn("WhatsApp worker stopped with queued messages", "worker", i, "dropped", n)
					}
					return nil
				case m := <-q:
					s.Process(context.WithoutCancel(ctx), m)
				}
			}
		})
	}
	return g.Wait()
}

// Process answers one message synchronously.
func (s *Service) Process(ctx context.Context, m Inbound) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	log := s.log.With("message_id", m.ID, "phone", m.From)

	id, err := Normalize(m.From, s.cfg.Region)
	if err != nil {
		// keep the raw sender as the conversation id rather than dropping it
		log.Warn("WhatsApp sender not normalised", "error", err)
		id = m.From
	}

	if err := s.sender.Typing(ctx, m.ID); err != nil {
		log.Debug("WhatsApp typing indicator failed", "error", err)
	}

	reply, err := s.conv.Handle(ctx, id, m.Text)
	if err != nil {
		log.Error("WhatsApp message failed", "error", err)
		reply = FailureReply
	}

	if _, err := s.sender.Send(ctx, m.From, reply, m.ID); err != nil {
		log.Error("WhatsApp reply failed", "error", err)
		return
	}
	log.Info("WhatsApp reply sent", "chars", len(reply))
}
