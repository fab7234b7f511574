package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	results []models.ProbeResult
}

func (r *recordingSink) Append(probe models.ProbeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, probe)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

type errDialer struct {
	err error
}

func (d errDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, d.err
}

func TestProbeOnceSuccess(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	sink := &recordingSink{}
	prober := New(nil, sink, Config{Targets: []string{lis.Addr().String()}, Timeout: time.Second})

	first := prober.ProbeOnce(context.Background(), lis.Addr().String())
	second := prober.ProbeOnce(context.Background(), lis.Addr().String())

	if first.Failed || first.RoundTripTimeMs == nil {
		t.Fatalf("expected successful probe, got %+v", first)
	}
	if err := first.Validate(); err != nil {
		t.Fatalf("probe result invalid: %v", err)
	}
	if first.SequenceNumber != 0 || second.SequenceNumber != 1 {
		t.Fatalf("unexpected sequence numbers: %d %d", first.SequenceNumber, second.SequenceNumber)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 results in sink, got %d", sink.count())
	}
}

func TestProbeOnceFailureKinds(t *testing.T) {
	cases := []struct {
		err  error
		want models.ErrorKind
	}{
		{context.DeadlineExceeded, models.ErrorKindTimeout},
		{&net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, models.ErrorKindTimeout},
		{&net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ENETUNREACH)}, models.ErrorKindNetworkDown},
		{&net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, models.ErrorKindDestinationUnreachable},
		{&net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}, models.ErrorKindDestinationUnreachable},
		{&net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true}, models.ErrorKindTimeout},
		{errors.New("something odd"), models.ErrorKindUnknown},
	}
	for _, tc := range cases {
		prober := New(nil, nil, Config{Dialer: errDialer{err: tc.err}})
		result := prober.ProbeOnce(context.Background(), "192.0.2.1")
		if !result.Failed || result.ErrorKind != tc.want {
			t.Fatalf("%v: expected %s, got %+v", tc.err, tc.want, result)
		}
		if err := result.Validate(); err != nil {
			t.Fatalf("%v: failure result invalid: %v", tc.err, err)
		}
	}
}

func TestProbeOnceRefusedCountsAsReachable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	prober := New(nil, nil, Config{Dialer: errDialer{err: refused}})
	if result := prober.ProbeOnce(context.Background(), "192.0.2.1:443"); result.Failed {
		t.Fatalf("refused connection should count as reachable: %+v", result)
	}
}

func TestSeedSequence(t *testing.T) {
	prober := New(nil, nil, Config{Dialer: errDialer{err: context.DeadlineExceeded}})
	prober.SeedSequence("a", 42)
	prober.SeedSequence("a", 7)
	if got := prober.ProbeOnce(context.Background(), "a").SequenceNumber; got != 42 {
		t.Fatalf("expected seeded sequence 42, got %d", got)
	}
}

func TestStartStop(t *testing.T) {
	sink := &recordingSink{}
	prober := New(nil, sink, Config{
		Targets:  []string{"a", "b"},
		Interval: 5 * time.Millisecond,
		Dialer:   errDialer{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded)},
	})
	prober.Start(context.Background())
	prober.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("prober produced only %d results", sink.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	prober.Stop()
	prober.Stop()

	after := sink.count()
	time.Sleep(20 * time.Millisecond)
	if sink.count() != after {
		t.Fatalf("prober kept running after Stop")
	}
}

func TestDialAddressDefaultsToDNSPort(t *testing.T) {
	if got := dialAddress("1.1.1.1"); got != "1.1.1.1:53" {
		t.Fatalf("unexpected address: %s", got)
	}
	if got := dialAddress("example.com:443"); got != "example.com:443" {
		t.Fatalf("unexpected address: %s", got)
	}
}
