package input

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned by Enqueue when the slot's shard has no room
	ErrQueueFull = errors.New("command queue full")
	// ErrQueueStopped is returned by Enqueue when no workers are running
	ErrQueueStopped = errors.New("command queue not running")
)

// CommandQueue decouples transports from the engine lock. Commands are sharded
// by slot so each player's commands apply in the order they arrived.
type CommandQueue struct {
	shards  []chan Command
	handler *Handler
	log     zerolog.Logger

	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	rejected    atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // per worker (default: 64)
	Workers    int // default: 2
}

// DefaultQueueConfig returns sensible defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 64,
		Workers:    2,
	}
}

// NewCommandQueue creates a new command queue with worker pool
func NewCommandQueue(handler *Handler, config QueueConfig, logger zerolog.Logger) *CommandQueue {
	def := DefaultQueueConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}

	shards := make([]chan Command, config.Workers)
	for i := range shards {
		shards[i] = make(chan Command, config.BufferSize)
	}
	return &CommandQueue{
		shards:   shards,
		handler:  handler,
		log:      logger.With().Str("component", "queue").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return
	}

	q.log.Info().Int("workers", len(q.shards)).Int("buffer", cap(q.shards[0])).Msg("command queue starting")

	for i := range q.shards {
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
}

// Stop shuts down the workers. Commands still buffered are discarded.
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return
	}

	close(q.stopChan)
	q.wg.Wait()

	q.log.Info().
		Uint64("enqueued", q.enqueued.Load()).
		Uint64("processed", q.processed.Load()).
		Uint64("dropped", q.dropped.Load()).
		Msg("command queue stopped")
}

// Enqueue adds a command without blocking. It fails with ErrQueueStopped
// before Start and after Stop.
func (q *CommandQueue) Enqueue(cmd Command) error {
	if !q.running.Load() {
		return ErrQueueStopped
	}
	cmd.ReceivedAt = time.Now()
	shard := q.shards[shardFor(cmd.Slot, len(q.shards))]

	select {
	case shard <- cmd:
		q.enqueued.Add(1)
		return nil
	default:
		if q.dropped.Add(1)%100 == 1 {
			q.log.Warn().Int("slot", cmd.Slot).Uint64("dropped", q.dropped.Load()).Msg("command queue full")
		}
		return ErrQueueFull
	}
}

func shardFor(slot, n int) int {
	if slot < 0 {
		slot = -slot
	}
	return slot % n
}

func (q *CommandQueue) worker(commands <-chan Command) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case cmd := <-commands:
			waitTime := time.Since(cmd.ReceivedAt)
			q.updateAvgWaitTime(waitTime)

			if waitTime > 100*time.Millisecond {
				q.log.Warn().Int("slot", cmd.Slot).Dur("wait", waitTime).Msg("command waited in queue")
			}

			if err := q.handler.ProcessCommand(cmd); err != nil {
				q.rejected.Add(1)
			}
			q.processed.Add(1)
		}
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	var pending int
	for _, s := range q.shards {
		pending += len(s)
	}
	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     q.processed.Load(),
		Rejected:      q.rejected.Load(),
		Dropped:       q.dropped.Load(),
		Pending:       pending,
		AvgWaitTimeMs: float64(q.avgWaitTime.Load()) / 1e6,
		Running:       q.running.Load(),
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Rejected      uint64  `json:"rejected"`
	Dropped       uint64  `json:"dropped"`
	Pending       int     `json:"pending"`
	AvgWaitTimeMs float64 `json:"avgWaitTimeMs"`
	Running       bool    `json:"running"`
}
