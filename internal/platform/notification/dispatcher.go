package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier is what the booking paths depend on. Notify never blocks on
// storage and never reports delivery failures to the caller. It returns
// false when the notification was not queued at all.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, appt AppointmentInfo, event Event) bool
}

type job struct {
	n     *Notification
	event Event
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the job buffer size. When the buffer is full new
// notifications are dropped.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithPublisher forwards every stored notification to p. It may be given
// more than once; publishers run in registration order.
func WithPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.publishers = append(d.publishers, p)
		}
	}
}

// WithJobTimeout bounds the time spent storing and publishing one notification.
func WithJobTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.jobTimeout = t
		}
	}
}

// Dispatcher renders notifications on the caller's goroutine and persists
// them from a fixed worker pool.
type Dispatcher struct {
	store      Store
	templates  *TemplateEngine
	publishers []Publisher
	logger     zerolog.Logger
	workers    int
	queueSize  int
	jobTimeout time.Duration

	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewDispatcher(store Store, templates *TemplateEngine, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		templates:  templates,
		logger:     logger.With().Str("component", "notification").Logger(),
		workers:    2,
		queueSize:  256,
		jobTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	d.jobs = make(chan job, d.queueSize)
	return d
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop stops accepting notifications and waits for queued ones to drain or
// for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, appt AppointmentInfo, event Event) bool {
	if userID == uuid.Nil {
		return false
	}
	n := d.templates.Render(event, userID, appt)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("event", string(event)).Msg("dispatcher stopped, notification dropped")
		return false
	}
	select {
	case d.jobs <- job{n: n, event: event}:
		return true
	default:
		d.logger.Warn().
			Str("event", string(event)).
			Str("user_id", userID.String()).
			Str("appointment_id", appt.ID.String()).
			Msg("notification queue full, dropping")
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	log := d.logger.With().
		Str("event", string(j.event)).
		Str("user_id", j.n.UserID.String()).
		Logger()

	if err := d.store.Create(ctx, j.n); err != nil {
		log.Error().Err(err).Msg("failed to store notification")
		return
	}
	for _, p := range d.publishers {
		if err := p.Publish(ctx, j.n); err != nil {
			log.Warn().Err(err).Str("notification_id", j.n.ID.String()).Msg("failed to publish notification")
		}
	}
}
