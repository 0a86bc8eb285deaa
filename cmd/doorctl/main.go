// Command doorctl authorizes one phrase and PIN and sends the resulting
// command to the lock without the terminal UI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/doorlink/internal/auth"
	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/link"
	"github.com/buckleypaul/doorlink/internal/lock"
	"github.com/buckleypaul/doorlink/internal/logging"
	"github.com/buckleypaul/doorlink/internal/store"
)

const (
	exitOK = iota
	exitError
	exitRefused
)

func main() {
	cwd, _ := os.Getwd()
	dir := flag.String("dir", cwd, "Directory holding .doorlink/")
	phrase := flag.String("phrase", "", "Command phrase, e.g. \"open door\"")
	pin := flag.String("pin", os.Getenv("DOORLINK_PIN"), "PIN (defaults to $DOORLINK_PIN)")
	peer := flag.String("peer", "", "Override the peer address")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)

	cfg := config.Load(*dir)
	if *peer != "" {
		cfg.PeerAddress = *peer
	}
	dialer, err := link.NewDialer(cfg.Transport, cfg.SerialBaudRate)
	if err != nil {
		logger.Error().Err(err).Msg("transport")
		os.Exit(exitError)
	}

	st := store.New(config.Dir(*dir))
	os.Exit(run(cfg, st, dialer, *phrase, *pin, logger))
}

// result collects what the listener saw. Fields are only touched on the
// main goroutine through the executor.
type result struct {
	connectErr error
	sendErr    error
	connected  bool
	finished   bool
}

type listener struct {
	r *result
	n *link.Notifier
	c lock.Command
}

func (l *listener) OnConnected() {
	l.r.connected = true
	l.n.Send(l.c)
}

func (l *listener) OnConnectFailed(err error) {
	l.r.connectErr = err
	l.r.finished = true
}

func (l *listener) OnCommandResult(code lock.Command, err error) {
	l.r.sendErr = err
	l.r.finished = true
}

func run(cfg config.Config, st *store.Store, dialer link.Dialer, phrase, pin string, logger zerolog.Logger) int {
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid config")
		return exitError
	}
	policy, err := cfg.Policy()
	if err != nil {
		logger.Error().Err(err).Msg("invalid phrase rules")
		return exitError
	}

	code, err := policy.Authorize(phrase, pin)
	if err != nil {
		reason := "Unknown command"
		if errors.Is(err, auth.ErrIncorrectPIN) {
			reason = "Incorrect PIN"
		}
		st.AddRejected(store.RejectedRecord{Phrase: phrase, Reason: reason, Timestamp: time.Now()})
		logger.Warn().Str("phrase", phrase).Msg(reason)
		return exitRefused
	}

	opts := cfg.LinkOptions()
	opts.Logger = &logger
	l := link.New(cfg.Peer(), dialer, opts)

	tasks := make(chan func(), 4)
	r := &result{}
	lst := &listener{r: r, c: code}
	n := link.NewNotifier(l, lst, func(fn func()) { tasks <- fn })
	lst.n = n

	target := cfg.Peer().String()
	connectStart := time.Now()
	var sentAt time.Time
	n.Start()
	for !r.finished {
		(<-tasks)()
		if r.connected && sentAt.IsZero() {
			sentAt = time.Now()
			st.AddSession(store.SessionRecord{
				Peer:      target,
				Transport: cfg.Transport,
				Timestamp: connectStart,
				Connected: true,
				Duration:  sentAt.Sub(connectStart).Round(time.Millisecond).String(),
			})
		}
	}
	n.Stop()
	<-l.Done()

	if r.connectErr != nil {
		st.AddSession(store.SessionRecord{
			Peer:      target,
			Transport: cfg.Transport,
			Timestamp: connectStart,
			Duration:  time.Since(connectStart).Round(time.Millisecond).String(),
			Error:     r.connectErr.Error(),
		})
		logger.Error().Err(r.connectErr).Str("peer", target).Msg("connect failed")
		return exitError
	}

	rec := store.CommandRecord{
		Command:   code.String(),
		Code:      code.Byte(),
		Peer:      target,
		Timestamp: sentAt,
		Success:   r.sendErr == nil,
		Duration:  time.Since(sentAt).Round(time.Millisecond).String(),
	}
	if r.sendErr != nil {
		rec.Error = r.sendErr.Error()
		st.AddCommand(rec)
		logger.Error().Err(r.sendErr).Stringer("command", code).Msg("send failed")
		return exitError
	}
	st.AddCommand(rec)
	fmt.Printf("%s sent to %s\n", code, target)
	return exitOK
}
