package nibe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is the tick of the poll loop.
	DefaultPollInterval = time.Second
	// DefaultRefresh is the age after which a subscribed coil is queried again.
	DefaultRefresh = 60 * time.Second
)

var (
	// ErrWritesDisabled is returned by Write unless EnableWrites is set.
	ErrWritesDisabled = errors.New("nibe: writes are disabled")
	// ErrNotWritable is returned when writing a sensor.
	ErrNotWritable = errors.New("nibe: variable is not writable")
	// ErrWriteRejected is returned when the heat pump refused a write.
	ErrWriteRejected = errors.New("nibe: write rejected by heat pump")
	// ErrUnknownVariable is returned for coils missing from the catalog.
	ErrUnknownVariable = errors.New("nibe: unknown variable")
)

// Requester sends a request and waits for its response. *Connector
// implements it.
type Requester interface {
	Request(ctx context.Context, m Message, timeout time.Duration) (Message, error)
}

// Observer is notified about changed values and lost connectivity. Calls
// may come from the poll loop and from the read loop of the connector.
type Observer interface {
	ValueChanged(coil uint16, info VariableInfo, value float64)
	ConnectivityDegraded(err error)
}

// PollerConfig is the runtime configuration of a Poller.
type PollerConfig struct {
	Model PumpModel
	// Interval between poll cycles
	Interval time.Duration
	// Refresh is used for subscriptions without their own interval.
	Refresh time.Duration
	// Timeout of a single request
	Timeout      time.Duration
	EnableReads  bool
	EnableWrites bool
}

// Poller keeps the cache of subscribed coils fresh. It is also a Listener
// so that data read-outs update the cache without a request.
type Poller struct {
	Logger logger

	cfg   PollerConfig
	req   Requester
	cache *Cache

	mu        sync.Mutex
	subs      map[uint16]time.Duration
	observers []Observer
}

// NewPoller creates a poller. Zero durations take their defaults.
func NewPoller(cfg PollerConfig, req Requester, cache *Cache) (*Poller, error) {
	if _, err := ParsePumpModel(string(cfg.Model)); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nibe: poller requires a requester")
	}
	if cfg.Interval < 0 || cfg.Refresh < 0 || cfg.Timeout < 0 {
		return nil, errors.New("nibe: poller durations must not be negative")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Refresh == 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Poller{
		cfg:   cfg,
		req:   req,
		cache: cache,
		subs:  make(map[uint16]time.Duration),
	}, nil
}

// Cache returns the cache of the poller.
func (p *Poller) Cache() *Cache {
	return p.cache
}

// AddObserver registers o.
func (p *Poller) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Subscribe adds coil to the poll set. A refresh of zero uses the default.
// The cached value is cleared so the coil is queried on the next cycle.
func (p *Poller) Subscribe(coil uint16, refresh time.Duration) error {
	if _, ok := Lookup(p.cfg.Model, coil); !ok {
		return fmt.Errorf("%w: coil %d of %s", ErrUnknownVariable, coil, p.cfg.Model)
	}
	if refresh <= 0 {
		refresh = p.cfg.Refresh
	}
	p.mu.Lock()
	p.subs[coil] = refresh
	p.mu.Unlock()

	p.cache.Clear(coil)
	return nil
}

// Unsubscribe removes coil from the poll set.
func (p *Poller) Unsubscribe(coil uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, coil)
}

// Refresh forces coil to be queried on the next cycle.
func (p *Poller) Refresh(coil uint16) {
	p.cache.Clear(coil)
}

// Subscriptions returns the subscribed coils in ascending order.
func (p *Poller) Subscriptions() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	coils := make([]uint16, 0, len(p.subs))
	for coil := range p.subs {
		coils = append(coils, coil)
	}
	slices.Sort(coils)
	return coils
}

type subscription struct {
	coil    uint16
	refresh time.Duration
}

func (p *Poller) snapshot() ([]subscription, []Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := make([]subscription, 0, len(p.subs))
	for coil, refresh := range p.subs {
		subs = append(subs, subscription{coil: coil, refresh: refresh})
	}
	slices.SortFunc(subs, func(a, b subscription) int { return int(a.coil) - int(b.coil) })
	return subs, p.observers
}

// PollOnce queries every subscribed coil that is unknown or older than its
// refresh interval. A timed out coil is reported to the observers and the
// cycle continues; other request failures end the cycle.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.cfg.EnableReads {
		return nil
	}
	subs, observers := p.snapshot()

	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.cache.Claim(sub.coil, sub.refresh) {
			continue
		}
		resp, err := p.req.Request(ctx, &ReadRequest{Coil: sub.coil}, p.cfg.Timeout)
		p.cache.Release(sub.coil)
		if err != nil {
			err = fmt.Errorf("read coil %d: %w", sub.coil, err)
			for _, o := range observers {
				o.ConnectivityDegraded(err)
			}
			errs = append(errs, err)
			if errors.Is(err, ErrTimeout) || errors.Is(err, ErrQueueFull) {
				continue
			}
			break
		}
		if r, ok := resp.(*ReadResponse); ok {
			p.handleValue(r.Coil, r.Value, observers)
		}
	}
	return errors.Join(errs...)
}

// Run polls every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.logf("nibe: poll: %v", err)
			}
		}
	}
}

// Write sets a Setting variable to value in physical units. The cached
// value of the coil is cleared afterwards whatever the outcome.
func (p *Poller) Write(ctx context.Context, coil uint16, value float64) error {
	if !p.cfg.EnableWrites {
		return ErrWritesDisabled
	}
	info, ok := Lookup(p.cfg.Model, coil)
	if !ok {
		return fmt.Errorf("%w: coil %d of %s", ErrUnknownVariable, coil, p.cfg.Model)
	}
	if info.Kind != Setting {
		return fmt.Errorf("%w: %s", ErrNotWritable, info.Name)
	}
	raw, err := info.Raw(value)
	if err != nil {
		return err
	}
	defer p.cache.Clear(coil)

	resp, err := p.req.Request(ctx, &WriteRequest{Coil: coil, Value: raw}, p.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("write coil %d: %w", coil, err)
	}
	if r, ok := resp.(*WriteResponse); !ok || !r.Success {
		return fmt.Errorf("%w: coil %d value %v", ErrWriteRejected, coil, value)
	}
	p.logf("nibe: wrote %v to %s (%d)", value, info.Name, coil)
	return nil
}

// MessageReceived implements Listener. Read-outs and read responses update
// the cache, including responses that arrived after their request timed out.
func (p *Poller) MessageReceived(m Message) {
	switch msg := m.(type) {
	case *DataReadOut:
		_, observers := p.snapshot()
		for _, v := range msg.Values {
			p.handleValue(v.Coil, v.Value, observers)
		}
	case *ReadResponse:
		_, observers := p.snapshot()
		p.handleValue(msg.Coil, msg.Value, observers)
	}
}

// ErrorOccurred implements Listener. Transport failures degrade
// connectivity; framing and decode errors were recovered already.
func (p *Poller) ErrorOccurred(err error) {
	var te *TransportError
	if !errors.As(err, &te) {
		return
	}
	_, observers := p.snapshot()
	for _, o := range observers {
		o.ConnectivityDegraded(err)
	}
}

func (p *Poller) handleValue(coil uint16, raw int32, observers []Observer) {
	info, ok := Lookup(p.cfg.Model, coil)
	if !ok {
		p.logf("nibe: unknown variable %d", coil)
		return
	}
	value := info.Scale(raw)
	if !p.cache.Update(coil, value) {
		return
	}
	for _, o := range observers {
		o.ValueChanged(coil, info, value)
	}
}

func (p *Poller) logf(format string, v ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, v...)
	}
}
