package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

type fakeBot struct {
	mu    sync.Mutex
	said  []string
	ready chan struct{}
	done  chan struct{}
	err   error
	ended bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{ready: make(chan struct{}), done: make(chan struct{})}
}

func (b *fakeBot) Chat(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.said = append(b.said, text)
	return nil
}

func (b *fakeBot) Ready() <-chan struct{} { return b.ready }
func (b *fakeBot) Done() <-chan struct{}  { return b.done }

func (b *fakeBot) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *fakeBot) Quit() error {
	b.end(nil)
	return nil
}

func (b *fakeBot) end(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return
	}
	b.ended = true
	b.err = err
	close(b.done)
}

func (b *fakeBot) Said() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.said...)
}

// fakeLauncher fails while fail is set, otherwise hands out bots that log in
// immediately when autoReady is set.
type fakeLauncher struct {
	mu        sync.Mutex
	launches  atomic.Int32
	fail      bool
	autoReady bool
	bots      []*fakeBot
}

func (l *fakeLauncher) Launch(ctx context.Context, opts ports.BotOptions) (ports.BotConn, error) {
	l.launches.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("ECONNREFUSED")
	}
	b := newFakeBot()
	if l.autoReady {
		close(b.ready)
	}
	l.bots = append(l.bots, b)
	return b, nil
}

func (l *fakeLauncher) setFail(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = v
}

func (l *fakeLauncher) last() *fakeBot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bots[len(l.bots)-1]
}

var fastPolicy = ReconnectPolicy{MaxAttempts: 5, Delay: 5 * time.Millisecond}

var testBotOpts = ports.BotOptions{Username: "relaybot", Host: "mc.local", Port: 25565, InitCommand: "say Bot is Online"}

func TestBotSupervisor_CeilingIsExactlyFive(t *testing.T) {
	l := &fakeLauncher{fail: true}
	s := NewBotSupervisor(context.Background(), l, fastPolicy, mockLogger{})

	if err := s.Start(testBotOpts); err == nil {
		t.Fatal("Start() should report the failed first launch")
	}
	waitFor(t, func() bool { return s.Status().State == BotHalted })

	time.Sleep(50 * time.Millisecond)
	if got := l.launches.Load(); got != 5 {
		t.Fatalf("launches = %d, want exactly 5", got)
	}

	l.setFail(false)
	l.mu.Lock()
	l.autoReady = true
	l.mu.Unlock()
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	waitFor(t, s.Online)
	if got := l.launches.Load(); got != 6 {
		t.Errorf("launches after resume = %d, want 6", got)
	}
	waitFor(t, func() bool { return s.Status().Reconnect.Failures == 0 })
}

func TestBotSupervisor_ReconnectsAfterKick(t *testing.T) {
	l := &fakeLauncher{autoReady: true}
	s := NewBotSupervisor(context.Background(), l, fastPolicy, mockLogger{})

	if err := s.Start(testBotOpts); err != nil {
		t.Fatal(err)
	}
	waitFor(t, s.Online)
	first := l.last()
	waitFor(t, func() bool { return len(first.Said()) == 1 })
	if first.Said()[0] != "say Bot is Online" {
		t.Errorf("init command = %v", first.Said())
	}

	first.end(errors.New("kicked: flying is not enabled"))
	waitFor(t, func() bool { return l.launches.Load() == 2 && s.Online() })

	if err := s.Chat("hello"); err != nil {
		t.Fatalf("Chat() = %v", err)
	}
	found := false
	for _, line := range l.last().Said() {
		if line == "hello" {
			found = true
		}
	}
	if !found {
		t.Errorf("chat went to %v", l.last().Said())
	}
}

func TestBotSupervisor_StopPreventsReconnect(t *testing.T) {
	l := &fakeLauncher{autoReady: true}
	s := NewBotSupervisor(context.Background(), l, fastPolicy, mockLogger{})

	if err := s.Start(testBotOpts); err != nil {
		t.Fatal(err)
	}
	waitFor(t, s.Online)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if got := l.launches.Load(); got != 1 {
		t.Errorf("launches = %d after Stop, want 1", got)
	}
	if st := s.Status(); st.State != BotIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if err := s.Stop(); !errors.Is(err, domain.ErrBotNotRunning) {
		t.Errorf("second Stop() = %v, want ErrBotNotRunning", err)
	}
}

func TestBotSupervisor_ChatWithoutBot(t *testing.T) {
	s := NewBotSupervisor(context.Background(), &fakeLauncher{}, fastPolicy, mockLogger{})
	if err := s.Chat("hi"); !errors.Is(err, domain.ErrBotNotRunning) {
		t.Errorf("Chat() = %v, want ErrBotNotRunning", err)
	}
	if err := s.Resume(); !errors.Is(err, domain.ErrBotNotRunning) {
		t.Errorf("Resume() before Start = %v", err)
	}
}

func TestBotSupervisor_StartTwiceKeepsOneBot(t *testing.T) {
	l := &fakeLauncher{autoReady: true}
	s := NewBotSupervisor(context.Background(), l, fastPolicy, mockLogger{})

	_ = s.Start(testBotOpts)
	_ = s.Start(testBotOpts)
	if got := l.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

func TestReconnector_HaltCallback(t *testing.T) {
	halted := make(chan struct{})
	var calls atomic.Int32
	r := NewReconnector(context.Background(), "obs", ReconnectPolicy{MaxAttempts: 2, Delay: time.Millisecond},
		func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("refused")
		}, mockLogger{})
	r.OnHalt(func() { close(halted) })

	r.Lost("ExitStarted")
	select {
	case <-halted:
	case <-time.After(2 * time.Second):
		t.Fatal("never halted")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if !r.Status().Halted {
		t.Errorf("status not halted")
	}
}
