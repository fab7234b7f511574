package probe

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// Sink receives every probe result. session.Session satisfies it.
type Sink interface {
	Append(models.ProbeResult) error
}

// Dialer opens the TCP connection used as a reachability probe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config configures a Prober.
type Config struct {
	Targets  []string
	Interval time.Duration
	Timeout  time.Duration
	Dialer   Dialer
	Clock    func() time.Time
}

// Prober periodically TCP-dials each target and feeds the results into a sink.
type Prober struct {
	logger   *slog.Logger
	sink     Sink
	dialer   Dialer
	now      func() time.Time
	targets  []string
	interval time.Duration
	timeout  time.Duration

	mu   sync.Mutex
	seqs map[string]int64

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a prober; zero durations fall back to 1s interval and 2s timeout.
func New(logger *slog.Logger, sink Sink, cfg Config) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Prober{
		logger:   logger,
		sink:     sink,
		dialer:   dialer,
		now:      clock,
		targets:  append([]string(nil), cfg.Targets...),
		interval: interval,
		timeout:  timeout,
		seqs:     make(map[string]int64, len(cfg.Targets)),
	}
}

// ProbeOnce dials target, hands the result to the sink and returns it.
func (p *Prober) ProbeOnce(ctx context.Context, target string) models.ProbeResult {
	seq := p.nextSequence(target)

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	requested := p.now()
	started := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", dialAddress(target))
	rtt := time.Since(started)

	var result models.ProbeResult
	switch {
	case err == nil:
		_ = conn.Close()
		result = models.Success(target, seq, requested, rtt)
	case errors.Is(err, syscall.ECONNREFUSED):
		// a reset still proves the path to the target is up
		result = models.Success(target, seq, requested, rtt)
	default:
		result = models.Failure(target, seq, requested, nil, ClassifyError(err))
		p.logger.Debug("probe failed", slog.String("target", target), slog.Int64("seq", seq), slog.Any("error", err))
	}

	if p.sink != nil {
		if err := p.sink.Append(result); err != nil {
			attrs := []any{slog.String("target", target), slog.Int64("seq", seq), slog.Any("error", err)}
			if appErr, ok := utils.AsAppError(err); ok {
				attrs = append(attrs, slog.String("op", appErr.Op))
			}
			p.logger.Warn("probe result rejected", attrs...)
		}
	}
	return result
}

// ProbeAll probes every target concurrently and waits for all of them.
func (p *Prober) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, target := range p.targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			p.ProbeOnce(ctx, target)
		}(target)
	}
	wg.Wait()
}

// Start launches the probing loop. Calling Start on a running prober is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.run(ctx, p.stopCh, p.doneCh)
}

// Stop requests the probing loop to terminate and waits for it.
func (p *Prober) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	p.stopCh = nil
	p.doneCh = nil
}

func (p *Prober) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ProbeAll(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Prober) nextSequence(target string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.seqs[target]
	p.seqs[target] = seq + 1
	return seq
}

// SeedSequence makes the next probe for target use next, so a restored session keeps unique
// sequence numbers.
func (p *Prober) SeedSequence(target string, next int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if next > p.seqs[target] {
		p.seqs[target] = next
	}
}

// ClassifyError maps a dial error onto an ErrorKind.
func ClassifyError(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return models.ErrorKindTimeout
		}
		if dnsErr.IsNotFound {
			return models.ErrorKindDestinationUnreachable
		}
		return models.ErrorKindNetworkDown
	}
	switch {
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return models.ErrorKindNetworkDown
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.EHOSTDOWN):
		return models.ErrorKindDestinationUnreachable
	case errors.Is(err, syscall.EMSGSIZE):
		return models.ErrorKindPacketTooBig
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindUnknown
}

func dialAddress(target string) string {
	target = strings.TrimSpace(target)
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(target, "53")
}
