// Package botproc runs the game bot as a child process.
//
// The child receives its identity through BOT_USERNAME, BOT_HOST and BOT_PORT.
// Every line written to its stdin is a chat line. On stdout it reports
// "ready" once logged in and "kicked <reason>" or "error <reason>" before it
// exits; any other output is logged.
package botproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// QuitGrace is how long Quit waits before killing the child.
const QuitGrace = 3 * time.Second

// Launcher implements ports.BotLauncher.
type Launcher struct {
	argv   []string
	logger ports.Logger
}

// NewLauncher parses command with shell quoting rules.
func NewLauncher(command string, logger ports.Logger) (*Launcher, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("bot command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("bot command is empty")
	}
	return &Launcher{argv: argv, logger: logger}, nil
}

// Launch starts one bot process.
func (l *Launcher) Launch(ctx context.Context, opts ports.BotOptions) (ports.BotConn, error) {
	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.Env = append(os.Environ(),
		"BOT_USERNAME="+opts.Username,
		"BOT_HOST="+opts.Host,
		"BOT_PORT="+strconv.Itoa(opts.Port),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.argv[0], err)
	}

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		logger: l.logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		p.scanStdout(stdout)
	}()
	go func() {
		defer output.Done()
		p.scanStderr(stderr)
	}()
	go func() {
		output.Wait()
		p.finish(cmd.Wait())
	}()
	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger ports.Logger
	ready  chan struct{}
	done   chan struct{}

	readyOnce sync.Once
	writeMu   sync.Mutex

	mu       sync.Mutex
	reason   string
	err      error
	quitting bool
	finished bool
}

func (p *process) Ready() <-chan struct{} { return p.ready }
func (p *process) Done() <-chan struct{}  { return p.done }

func (p *process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *process) Chat(text string) error {
	text = strings.ReplaceAll(text, "\n", " ")
	p.mu.Lock()
	finished := p.finished
	p.mu.Unlock()
	if finished {
		return errors.New("bot process has exited")
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := io.WriteString(p.stdin, text+"\n"); err != nil {
		return fmt.Errorf("write to bot: %w", err)
	}
	return nil
}

func (p *process) Quit() error {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return nil
	}
	p.quitting = true
	p.mu.Unlock()

	p.writeMu.Lock()
	_ = p.stdin.Close()
	p.writeMu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-time.After(QuitGrace):
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}

func (p *process) scanStdout(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		verb, rest, _ := strings.Cut(line, " ")
		switch verb {
		case "ready":
			p.readyOnce.Do(func() { close(p.ready) })
		case "kicked", "error":
			p.mu.Lock()
			p.reason = strings.TrimSpace(verb + ": " + rest)
			p.mu.Unlock()
			p.logger.Warn("bot reported", ports.String("event", verb), ports.String("reason", rest))
		default:
			if line != "" {
				p.logger.Debug("bot output", ports.String("line", line))
			}
		}
	}
}

func (p *process) scanStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.logger.Warn("bot stderr", ports.String("line", sc.Text()))
	}
}

func (p *process) finish(waitErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	switch {
	case p.quitting:
		p.err = nil
	case p.reason != "":
		p.err = errors.New(p.reason)
	case waitErr != nil:
		p.err = fmt.Errorf("bot exited: %w", waitErr)
	default:
		p.err = errors.New("bot exited")
	}
	close(p.done)
}
