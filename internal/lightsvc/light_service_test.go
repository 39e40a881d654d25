package lightsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openaula/aulactl/internal/protocol"
)

type reply struct {
	frame protocol.Frame
	ok    bool
	err   error
}

// fakeTransport records every sent frame and serves scripted replies.
// With echoWrites set it echoes each non-read frame back, mimicking the
// firmware's per-fragment acknowledgement.
type fakeTransport struct {
	sent       []protocol.Frame
	queue      []reply
	echoWrites bool
	sendErr    error
	recvErr    error
}

func (ft *fakeTransport) Send(f protocol.Frame) error {
	if ft.sendErr != nil {
		return ft.sendErr
	}
	ft.sent = append(ft.sent, f)
	if ft.echoWrites && f.Command() != protocol.CmdRead {
		ft.queue = append(ft.queue, reply{frame: f, ok: true})
	}
	return nil
}

func (ft *fakeTransport) Receive(time.Duration) (protocol.Frame, bool, error) {
	if ft.recvErr != nil {
		return protocol.Frame{}, false, ft.recvErr
	}
	if len(ft.queue) == 0 {
		return protocol.Frame{}, false, nil
	}
	r := ft.queue[0]
	ft.queue = ft.queue[1:]
	return r.frame, r.ok, r.err
}

func (ft *fakeTransport) queueStoredConfig() {
	frames := protocol.TemplateConfig().Frames()
	for _, f := range frames {
		ft.queue = append(ft.queue, reply{frame: f, ok: true})
	}
}

func newTestService(ft *fakeTransport, extra ...Option) *Service {
	opts := append([]Option{
		WithEchoTimeout(time.Millisecond),
		WithReadTimeout(time.Millisecond),
		WithSettleDelay(0),
	}, extra...)
	svc := New(zap.NewNop(), ft, opts...)
	svc.options.readSettle = 0
	return svc
}

func ptr(v uint8) *uint8 { return &v }

func TestSetEffectFullTransaction(t *testing.T) {
	ft := &fakeTransport{echoWrites: true}
	ft.queueStoredConfig()
	svc := newTestService(ft)

	outcome, err := svc.SetEffect(context.Background(), SetEffectRequest{
		Effect:     protocol.EffectRespire,
		Brightness: ptr(3),
		Speed:      ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	assert.True(t, outcome.ReadComplete)
	assert.True(t, outcome.SaveAcked)

	// Read request, 10 config fragments, 37 palette fragments, save.
	require.Len(t, ft.sent, 1+protocol.ConfigFragments+protocol.PaletteFragments+1)
	assert.Equal(t, protocol.CmdRead, ft.sent[0].Command())
	assert.Equal(t, protocol.SubConfirm, ft.sent[0].Subcommand())

	config := ft.sent[1 : 1+protocol.ConfigFragments]
	for i, f := range config {
		assert.Equal(t, protocol.CmdWrite, f.Command())
		assert.Equal(t, uint8(i), f.Sequence())
		assert.True(t, f.VerifyChecksum())
	}
	assert.Equal(t, byte(protocol.EffectRespire), config[0][15])

	var phases []Phase
	for _, r := range outcome.Phases {
		phases = append(phases, r.Phase)
	}
	assert.Equal(t, []Phase{PhaseReading, PhaseWriting, PhasePalette, PhaseSaving}, phases)
	assert.Equal(t, protocol.ConfigFragments, outcome.Phases[1].Acked)
	assert.Equal(t, protocol.PaletteFragments, outcome.Phases[2].Acked)
}

func TestSetEffectTemplateFallback(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft, WithoutEchoWait())

	outcome, err := svc.SetEffect(context.Background(), SetEffectRequest{
		Effect: protocol.EffectSnake,
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	assert.False(t, outcome.ReadComplete)
	require.Len(t, ft.sent, 1+protocol.ConfigFragments+protocol.PaletteFragments+1)
	assert.Equal(t, byte(protocol.EffectSnake), ft.sent[1][15])
}

func TestWithoutReadPhaseSkipsRead(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft, WithoutEchoWait(), WithoutReadPhase())

	outcome, err := svc.SetEffect(context.Background(), SetEffectRequest{
		Effect: protocol.EffectRespire,
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	assert.False(t, outcome.ReadComplete)

	// Straight to config writes: no read request frame at all.
	require.Len(t, ft.sent, protocol.ConfigFragments+protocol.PaletteFragments+1)
	assert.Equal(t, protocol.CmdWrite, ft.sent[0].Command())
	assert.Equal(t, PhaseWriting, outcome.Phases[0].Phase)
}

func TestSleepReadsEvenWithoutReadPhase(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueStoredConfig()
	svc := newTestService(ft, WithoutEchoWait(), WithoutReadPhase())

	_, err := svc.SetSleepTimer(context.Background(), 5)
	require.NoError(t, err)
	// The sleep write still starts with a read request.
	assert.Equal(t, protocol.CmdRead, ft.sent[0].Command())
}

func TestSetEffectValidatesBeforeSending(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft)

	_, err := svc.SetEffect(context.Background(), SetEffectRequest{Effect: 19})
	require.ErrorIs(t, err, protocol.ErrUnknownEffect)
	assert.Empty(t, ft.sent)

	_, err = svc.SetEffect(context.Background(), SetEffectRequest{
		Effect: protocol.EffectRainbow,
		Color:  &protocol.RGB{R: 0xFF},
	})
	require.Error(t, err)
	assert.Empty(t, ft.sent)
}

func TestSetEffectCustomColorPatchesPalette(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueStoredConfig()
	svc := newTestService(ft, WithoutEchoWait())

	color := protocol.RGB{R: 0x10, G: 0x20, B: 0x30}
	_, err := svc.SetEffect(context.Background(), SetEffectRequest{
		Effect: protocol.EffectFixedOn,
		Color:  &color,
	})
	require.NoError(t, err)

	slot1 := ft.sent[1+protocol.ConfigFragments+1]
	assert.Equal(t, protocol.CmdColor, slot1.Command())
	assert.Equal(t, uint8(1), slot1.Sequence())
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, []byte(slot1[12:15]))
	assert.Equal(t, byte(0xFF), slot1[16])
}

func TestSleepRequiresCompleteRead(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft)

	outcome, err := svc.SetSleepTimer(context.Background(), 10)
	require.ErrorIs(t, err, ErrReadIncomplete)
	assert.Equal(t, PhaseFailed, outcome.Final)
	// Only the read request went out.
	assert.Len(t, ft.sent, 1)
}

func TestSleepWritesConfigOnly(t *testing.T) {
	ft := &fakeTransport{echoWrites: true}
	ft.queueStoredConfig()
	svc := newTestService(ft)

	outcome, err := svc.SetSleepTimer(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	// No palette or per-key payload for a sleep change.
	require.Len(t, ft.sent, 1+protocol.ConfigFragments+1)
	assert.Equal(t, byte(20), ft.sent[2][15])
	assert.Equal(t, protocol.CmdSave, ft.sent[len(ft.sent)-1].Command())
}

func TestSleepRejectsInvalidMinutes(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueStoredConfig()
	svc := newTestService(ft)

	_, err := svc.SetSleepTimer(context.Background(), 7)
	require.Error(t, err)
	// The read went through but no write followed.
	assert.Len(t, ft.sent, 1)
}

func TestApplyPerKeyTransaction(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueStoredConfig()
	svc := newTestService(ft, WithoutEchoWait())

	var colors protocol.ColorMap
	require.NoError(t, colors.Set(0, protocol.RGB{R: 0xFF}))
	require.NoError(t, colors.Set(125, protocol.RGB{B: 0xFF}))

	outcome, err := svc.ApplyPerKey(context.Background(), &colors)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	require.Len(t, ft.sent, 1+protocol.ConfigFragments+protocol.PerKeyFragments+1)

	// Config switches to self-define with custom color mode.
	assert.Equal(t, byte(protocol.EffectSelfDefine), ft.sent[1][15])
	assert.Equal(t, byte(0x01), ft.sent[1][17])

	plane := ft.sent[1+protocol.ConfigFragments]
	assert.Equal(t, protocol.CmdPerKey, plane.Command())
}

func TestFactoryResetSkipsRead(t *testing.T) {
	ft := &fakeTransport{echoWrites: true}
	svc := newTestService(ft)

	outcome, err := svc.FactoryReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	assert.False(t, outcome.ReadComplete)
	require.Len(t, ft.sent, protocol.ConfigFragments+protocol.PaletteFragments+1)

	first := ft.sent[0]
	assert.Equal(t, protocol.CmdWrite, first.Command())
	assert.Equal(t, byte(0x01), first[8])
	assert.Equal(t, byte(0x00), first[14])
}

func TestReadState(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueStoredConfig()
	svc := newTestService(ft)

	report, err := svc.ReadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.EffectFixedOn, report.Effect.Number)
	assert.True(t, report.HasParams)
	assert.Equal(t, uint8(0), report.SleepMinutes)
}

func TestReadStateIncomplete(t *testing.T) {
	ft := &fakeTransport{}
	// Deliver only half the fragments.
	frames := protocol.TemplateConfig().Frames()
	for _, f := range frames[:5] {
		ft.queue = append(ft.queue, reply{frame: f, ok: true})
	}
	svc := newTestService(ft)

	_, err := svc.ReadState(context.Background())
	require.ErrorIs(t, err, ErrReadIncomplete)
}

func TestOneTransactionAtATime(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft)

	held, err := svc.begin("held")
	require.NoError(t, err)

	_, err = svc.FactoryReset(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	held.end()
	_, err = svc.FactoryReset(context.Background())
	require.NoError(t, err)
}

func TestSendErrorFailsTransaction(t *testing.T) {
	ft := &fakeTransport{sendErr: errors.New("device unplugged")}
	svc := newTestService(ft)

	outcome, err := svc.FactoryReset(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, outcome.Final)
}

func TestMissingEchoesAreNotFatal(t *testing.T) {
	ft := &fakeTransport{} // never echoes
	svc := newTestService(ft)

	outcome, err := svc.FactoryReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, outcome.Final)
	assert.False(t, outcome.SaveAcked)
	assert.Equal(t, 0, outcome.Phases[0].Acked)
	assert.Equal(t, protocol.ConfigFragments, outcome.Phases[0].Sent)
}

func TestContextCancelAborts(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.FactoryReset(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRawEcho(t *testing.T) {
	ft := &fakeTransport{echoWrites: true}
	svc := newTestService(ft)

	f, err := protocol.BuildFrame(protocol.CmdSave, protocol.SubConfirm, 0, []byte{0x04, 0x07})
	require.NoError(t, err)

	echo, acked, err := svc.Raw(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, acked)
	assert.Equal(t, f, echo)
}

func TestRawHonorsCancelledContext(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(ft)

	f, err := protocol.BuildFrame(protocol.CmdSave, protocol.SubConfirm, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = svc.Raw(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.sent)
}

func TestProgressLines(t *testing.T) {
	ft := &fakeTransport{}
	var lines []string
	svc := newTestService(ft, WithoutEchoWait(), WithProgress(func(line string) {
		lines = append(lines, line)
	}))

	_, err := svc.FactoryReset(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "save")
}
