package lightsvc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

// tx tracks one in-flight transaction.
type tx struct {
	svc     *Service
	log     *zap.Logger
	phase   Phase
	outcome *Outcome
}

func (s *Service) begin(operation string) (*tx, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return &tx{
		svc:   s,
		log:   s.log.With(zap.String("operation", operation)),
		phase: PhaseIdle,
		outcome: &Outcome{
			Operation: operation,
			Final:     PhaseIdle,
		},
	}, nil
}

func (t *tx) end() {
	t.svc.inFlight.Store(false)
}

func (t *tx) enter(p Phase) {
	t.log.Debug("phase transition",
		zap.Stringer("from", t.phase), zap.Stringer("to", p))
	t.phase = p
}

func (t *tx) finish() *Outcome {
	t.enter(PhaseDone)
	t.outcome.Final = PhaseDone
	return t.outcome
}

func (t *tx) fail(err error) error {
	t.enter(PhaseFailed)
	t.outcome.Final = PhaseFailed
	return err
}

func (t *tx) progress(format string, args ...any) {
	if t.svc.options.progress == nil {
		return
	}
	t.svc.options.progress(fmt.Sprintf(format, args...))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sendAll pushes frames to the device in order, pausing between fragments
// and draining one echo per fragment when echo waits are enabled. A send
// error is unrecoverable; a silent or garbled echo window is not.
func (t *tx) sendAll(ctx context.Context, phase Phase, frames []protocol.Frame) (PhaseResult, error) {
	opts := t.svc.options
	t.enter(phase)
	result := PhaseResult{Phase: phase}
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := t.svc.transport.Send(f); err != nil {
			return result, fmt.Errorf("send fragment %d/%d: %w", i+1, len(frames), err)
		}
		result.Sent++
		if !opts.waitEcho {
			continue
		}
		if err := sleepCtx(ctx, opts.settleDelay); err != nil {
			return result, err
		}
		echo, ok, err := t.svc.transport.Receive(opts.echoTimeout)
		if err != nil {
			t.log.Warn("echo read failed", zap.Error(err),
				zap.Stringer("phase", phase), zap.Int("fragment", i))
			continue
		}
		if !ok {
			t.log.Debug("no echo within window",
				zap.Stringer("phase", phase), zap.Int("fragment", i))
			continue
		}
		if echo.Sequence() != f.Sequence() {
			t.log.Debug("echo sequence mismatch",
				zap.Uint8("want", f.Sequence()), zap.Uint8("got", echo.Sequence()))
		}
		result.Acked++
	}
	t.outcome.Phases = append(t.outcome.Phases, result)
	t.progress("%s: %d/%d fragments, %d echoed",
		phase, result.Sent, len(frames), result.Acked)
	return result, nil
}

// readConfig requests the 10-fragment config blob and polls for the
// fragments. The firmware streams them back unsolicited after the
// request; a short settle delay before the first poll avoids reading
// our own request back as garbage.
func (t *tx) readConfig(ctx context.Context) (protocol.ConfigBlob, bool, error) {
	opts := t.svc.options
	t.enter(PhaseReading)

	req, err := protocol.BuildFrame(protocol.CmdRead, protocol.SubConfirm, 0, nil)
	if err != nil {
		return protocol.ConfigBlob{}, false, err
	}
	if err := t.svc.transport.Send(req); err != nil {
		return protocol.ConfigBlob{}, false, fmt.Errorf("send read request: %w", err)
	}
	if err := sleepCtx(ctx, opts.readSettle); err != nil {
		return protocol.ConfigBlob{}, false, err
	}

	var (
		fragments [protocol.ConfigFragments]protocol.Frame
		have      [protocol.ConfigFragments]bool
		count     int
	)
	for attempt := 0; attempt < opts.readAttempts && count < protocol.ConfigFragments; attempt++ {
		if err := ctx.Err(); err != nil {
			return protocol.ConfigBlob{}, false, err
		}
		f, ok, err := t.svc.transport.Receive(opts.readTimeout)
		if err != nil {
			return protocol.ConfigBlob{}, false, fmt.Errorf("read fragment: %w", err)
		}
		if !ok {
			// The device stopped streaming; no point polling on.
			break
		}
		if f.Command() != protocol.CmdRead || f.Subcommand() != protocol.SubConfig {
			t.log.Debug("ignoring unrelated frame",
				zap.Uint8("command", uint8(f.Command())),
				zap.Uint8("subcommand", uint8(f.Subcommand())))
			continue
		}
		seq := int(f.Sequence())
		if seq >= protocol.ConfigFragments {
			t.log.Debug("config fragment out of range", zap.Int("sequence", seq))
			continue
		}
		if !have[seq] {
			count++
		}
		fragments[seq] = f
		have[seq] = true
	}

	t.outcome.Phases = append(t.outcome.Phases, PhaseResult{
		Phase: PhaseReading,
		Sent:  1,
		Acked: count,
	})
	t.progress("read: %d/%d config fragments", count, protocol.ConfigFragments)
	if count < protocol.ConfigFragments {
		t.log.Warn("config read incomplete",
			zap.Int("fragments", count))
		return protocol.ConfigBlob{}, false, nil
	}
	t.outcome.ReadComplete = true
	return protocol.NewConfigBlob(fragments), true, nil
}

// save commits the staged state to flash and waits (best effort) for the
// single echo.
func (t *tx) save(ctx context.Context) error {
	t.enter(PhaseSaving)
	frame, err := protocol.BuildFrame(protocol.CmdSave, protocol.SubConfirm, 0, []byte{0x04, 0x07})
	if err != nil {
		return err
	}
	if err := t.svc.transport.Send(frame); err != nil {
		return fmt.Errorf("send save: %w", err)
	}
	result := PhaseResult{Phase: PhaseSaving, Sent: 1}
	if t.svc.options.waitEcho {
		_, ok, err := t.svc.transport.Receive(t.svc.options.echoTimeout)
		if err != nil {
			t.log.Warn("save echo read failed", zap.Error(err))
		} else if ok {
			result.Acked = 1
			t.outcome.SaveAcked = true
		} else {
			t.log.Debug("save echo missing")
		}
	}
	t.outcome.Phases = append(t.outcome.Phases, result)
	if t.outcome.SaveAcked {
		t.progress("save: acknowledged")
	} else {
		t.progress("save: sent")
	}
	return nil
}
