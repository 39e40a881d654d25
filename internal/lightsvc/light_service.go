// Package lightsvc drives the multi-phase lighting transactions against an
// open keyboard transport: read config, modify, write back, send the color
// payload, save to flash.
package lightsvc

import (
	"errors"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

var (
	// ErrReadIncomplete means fewer than 10 config fragments came back
	// within the polling window. Most operations fall back to the factory
	// template; the sleep timer refuses to guess and aborts.
	ErrReadIncomplete = errors.New("config read incomplete")

	// ErrBusy means a transaction is already in flight on this service.
	// The device handle is exclusively owned for the duration of one
	// operation; callers serialize.
	ErrBusy = errors.New("transaction already in flight")
)

// Transport is the raw fragment channel the sequencer drives. hidsvc
// provides the real one; tests script a fake.
type Transport interface {
	Send(f protocol.Frame) error
	Receive(timeout time.Duration) (protocol.Frame, bool, error)
}

// Phase is one step of the transaction state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseReading
	PhaseWriting
	PhasePalette
	PhasePerKey
	PhaseSaving
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReading:
		return "reading"
	case PhaseWriting:
		return "writing"
	case PhasePalette:
		return "palette"
	case PhasePerKey:
		return "perkey"
	case PhaseSaving:
		return "saving"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PhaseResult counts fragments sent and echoes observed in one phase.
// Echoes are best-effort delivery signals; the firmware regularly drops
// them, so Acked < Sent does not fail a transaction.
type PhaseResult struct {
	Phase Phase
	Sent  int
	Acked int
}

// Outcome is the aggregate result of one operation.
type Outcome struct {
	Operation string
	Phases    []PhaseResult
	Final     Phase

	// SaveAcked reports whether the save frame's echo arrived in time.
	// Its absence is logged, never fatal.
	SaveAcked bool

	// ReadComplete reports whether the read phase delivered all 10
	// config fragments (false also when the operation skips the read).
	ReadComplete bool
}

var defaultOptions = serviceOptions{
	echoTimeout:  200 * time.Millisecond,
	readTimeout:  300 * time.Millisecond,
	readAttempts: 12,
	settleDelay:  3 * time.Millisecond,
	readSettle:   50 * time.Millisecond,
	waitEcho:     true,
}

type serviceOptions struct {
	echoTimeout  time.Duration
	readTimeout  time.Duration
	readAttempts int
	settleDelay  time.Duration
	readSettle   time.Duration
	waitEcho     bool
	skipRead     bool
	progress     func(line string)
}

type Option func(*serviceOptions)

// WithEchoTimeout sets the per-fragment echo wait.
func WithEchoTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.echoTimeout = d
	}
}

// WithReadTimeout sets the per-attempt wait while polling config
// fragments.
func WithReadTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.readTimeout = d
	}
}

// WithReadAttempts bounds the config read polling loop.
func WithReadAttempts(n int) Option {
	return func(o *serviceOptions) {
		o.readAttempts = n
	}
}

// WithSettleDelay sets the inter-fragment pause that lets the firmware's
// internal state settle between writes.
func WithSettleDelay(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.settleDelay = d
	}
}

// WithoutEchoWait skips all echo reads and settle pauses for near-instant
// applies. Delivery becomes entirely fire-and-forget.
func WithoutEchoWait() Option {
	return func(o *serviceOptions) {
		o.waitEcho = false
	}
}

// WithoutReadPhase makes operations that tolerate a template fallback
// start from the factory template instead of reading the device first.
// The read polling window dominates transaction latency; operations that
// require the live state (sleep timer, read) still read.
func WithoutReadPhase() Option {
	return func(o *serviceOptions) {
		o.skipRead = true
	}
}

// WithProgress streams human-readable progress lines to fn as each phase
// completes.
func WithProgress(fn func(line string)) Option {
	return func(o *serviceOptions) {
		o.progress = fn
	}
}

// Service runs lighting transactions. One transaction at a time: the
// device processes fragments strictly in order and the host must observe
// each echo window before the next send.
type Service struct {
	log       *zap.Logger
	transport Transport
	options   serviceOptions
	inFlight  atomic.Bool
}

func New(log *zap.Logger, transport Transport, opts ...Option) *Service {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		log:       log,
		transport: transport,
		options:   options,
	}
}
