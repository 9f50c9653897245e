package clocksync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hmtl.go/pkg/wire"
)

type sentMsg struct {
	dst wire.Address
	msg *wire.TimeSync
}

type testSender struct {
	t        *testing.T
	capacity int
	sent     []sentMsg
}

func newTestSender(t *testing.T) *testSender {
	return &testSender{t: t, capacity: wire.MaxFrameLen}
}

func (s *testSender) SendTo(dst wire.Address, data []byte) error {
	f, err := wire.Decode(data)
	require.NoError(s.t, err)
	require.Equal(s.t, dst, f.Address)
	msg, err := f.TimeSync()
	require.NoError(s.t, err)
	s.sent = append(s.sent, sentMsg{dst: dst, msg: msg})
	return nil
}

func (s *testSender) Capacity() int { return s.capacity }

func (s *testSender) take() sentMsg {
	require.NotEmpty(s.t, s.sent, "expect a message sent")
	m := s.sent[0]
	s.sent = s.sent[1:]
	return m
}

type clockPair struct {
	t         *testing.T
	iSrc      *ManualSource
	rSrc      *ManualSource
	initiator *Clock
	responder *Clock
	toR, toI  *testSender
}

const (
	initiatorAddr wire.Address = 1
	responderAddr wire.Address = 2
)

func newClockPair(t *testing.T, iStart, rStart uint32) *clockPair {
	p := &clockPair{
		t:    t,
		iSrc: NewManualSource(iStart),
		rSrc: NewManualSource(rStart),
		toR:  newTestSender(t),
		toI:  newTestSender(t),
	}
	p.initiator, p.responder = New(p.iSrc), New(p.rSrc)
	return p
}

func (p *clockPair) elapse(ms uint32) *clockPair {
	p.iSrc.Advance(ms)
	p.rSrc.Advance(ms)
	return p
}

func (p *clockPair) deliverToResponder() *clockPair {
	m := p.toR.take()
	require.Equal(p.t, responderAddr, m.dst)
	p.responder.Handle(p.toI, initiatorAddr, m.msg)
	return p
}

func (p *clockPair) deliverToInitiator() *clockPair {
	m := p.toI.take()
	require.Equal(p.t, initiatorAddr, m.dst)
	p.initiator.Handle(p.toR, responderAddr, m.msg)
	return p
}

func TestHandshake(t *testing.T) {
	testCases := []struct {
		name           string
		iStart, rStart uint32
		hop            uint32
	}{
		{"responder behind", 50000, 1000, 10},
		{"responder ahead", 1000, 50000, 7},
		{"zero latency", 0, 0, 0},
		{"wraparound", 0xfffffff0, 20, 15},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newClockPair(t, tc.iStart, tc.rStart)
			require.True(t, p.initiator.Synchronize(p.toR, responderAddr))
			require.Equal(t, StateAwaitingAck, p.initiator.State())

			p.elapse(tc.hop).deliverToResponder()
			require.Equal(t, StateAwaitingSet, p.responder.State())
			require.True(t, p.responder.Pending())

			p.elapse(tc.hop).deliverToInitiator()
			require.Equal(t, StateIdle, p.initiator.State())
			require.False(t, p.initiator.Pending())

			p.elapse(tc.hop).deliverToResponder()
			require.Equal(t, StateSynced, p.responder.State())
			require.False(t, p.responder.Pending())
			require.Equal(t, tc.hop, p.responder.Latency())

			diff := int32(p.responder.Millis() - p.initiator.Millis())
			if diff < 0 {
				diff = -diff
			}
			require.True(t, uint32(diff) <= p.responder.Latency(), "diff %d", diff)

			p.elapse(12345)
			require.Equal(t, p.initiator.Millis(), p.responder.Millis())
		})
	}
}

func TestHandshakeAsymmetricLatency(t *testing.T) {
	p := newClockPair(t, 5000, 0)
	p.initiator.Synchronize(p.toR, responderAddr)
	p.elapse(2).deliverToResponder()
	p.elapse(10).deliverToInitiator()
	p.elapse(4).deliverToResponder()
	require.Equal(t, StateSynced, p.responder.State())
	require.Equal(t, uint32(7), p.responder.Latency())
	diff := int32(p.responder.Millis() - p.initiator.Millis())
	require.Equal(t, int32(3), diff)
	require.True(t, uint32(diff) <= p.responder.Latency())
}

func TestResync(t *testing.T) {
	p := newClockPair(t, 10000, 0)
	p.initiator.Synchronize(p.toR, responderAddr)
	p.elapse(5).deliverToResponder()
	p.elapse(5).deliverToInitiator()
	p.elapse(5).deliverToResponder()
	require.Equal(t, StateSynced, p.responder.State())

	// initiator clock jumps, resync moves the responder without renegotiation
	p.initiator.Set(p.initiator.Millis() + 1000)
	p.initiator.Resynchronize(p.toR, responderAddr)
	p.elapse(5).deliverToResponder()
	require.Equal(t, StateSynced, p.responder.State())
	require.Equal(t, uint32(5), p.responder.Latency())
	require.Equal(t, p.initiator.Millis(), p.responder.Millis())
}

func TestResyncIgnoredUnlessSynced(t *testing.T) {
	c := New(NewManualSource(100))
	out := newTestSender(t)
	c.Handle(out, 1, &wire.TimeSync{Phase: wire.SyncPhaseResync, Timestamp: 99999})
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, uint32(100), c.Millis())
	require.Empty(t, out.sent)
}

func TestSetIgnoredUnlessAwaiting(t *testing.T) {
	c := New(NewManualSource(100))
	out := newTestSender(t)
	c.Handle(out, 1, &wire.TimeSync{Phase: wire.SyncPhaseSet, Timestamp: 99999})
	require.Equal(t, StateIdle, c.State())
	require.Zero(t, c.Delta())
}

func TestSyncIgnoredWhileAwaitingAck(t *testing.T) {
	c := New(NewManualSource(100))
	out := newTestSender(t)
	c.Synchronize(out, 3)
	out.take()
	require.True(t, c.Handle(out, 3, &wire.TimeSync{Phase: wire.SyncPhaseSync}))
	require.Equal(t, StateAwaitingAck, c.State())
	require.Empty(t, out.sent)
}

func TestSyncRestartsFromSynced(t *testing.T) {
	p := newClockPair(t, 100, 0)
	for i := 0; i < 2; i++ {
		p.initiator.Synchronize(p.toR, responderAddr)
		p.elapse(1).deliverToResponder()
		require.Equal(t, StateAwaitingSet, p.responder.State())
		p.elapse(1).deliverToInitiator()
		p.elapse(1).deliverToResponder()
		require.Equal(t, StateSynced, p.responder.State())
	}
}

func TestLostAckWedgesUntilNewSync(t *testing.T) {
	p := newClockPair(t, 100, 0)
	p.initiator.Synchronize(p.toR, responderAddr)
	p.elapse(1).deliverToResponder()
	p.toI.take() // ACK lost
	p.elapse(60000)
	require.True(t, p.initiator.Pending())
	require.True(t, p.responder.Pending())

	p.initiator.Synchronize(p.toR, responderAddr)
	p.elapse(1)
	m := p.toR.take()
	// responder still awaits SET and ignores the new SYNC
	require.True(t, p.responder.Handle(p.toI, initiatorAddr, m.msg))
	require.Empty(t, p.toI.sent)
}

func TestCheck(t *testing.T) {
	p := newClockPair(t, 1000, 0)
	p.initiator.Synchronize(p.toR, responderAddr)
	p.elapse(4).deliverToResponder()
	p.elapse(4).deliverToInitiator()
	p.elapse(4).deliverToResponder()

	p.initiator.Check(p.toR, responderAddr)
	p.elapse(4)
	m := p.toR.take()
	require.Equal(t, wire.SyncPhaseCheck, m.msg.Phase)
	require.False(t, p.responder.Handle(p.toI, initiatorAddr, m.msg))
	require.Equal(t, StateSynced, p.responder.State())

	reply := p.toI.take()
	require.Equal(t, wire.SyncPhaseAck, reply.msg.Phase)
	require.Equal(t, p.responder.Millis()+p.responder.Latency(), reply.msg.Timestamp)

	// initiator is idle so the ACK is only measured
	p.initiator.Handle(p.toR, responderAddr, reply.msg)
	require.Equal(t, StateIdle, p.initiator.State())
	require.Empty(t, p.toR.sent)
}

func TestSendBufferTooSmall(t *testing.T) {
	c := New(NewManualSource(0))
	out := newTestSender(t)
	out.capacity = wire.HeaderSize
	require.True(t, c.Synchronize(out, 5))
	require.Empty(t, out.sent)
	require.Equal(t, StateAwaitingAck, c.State())
}

func TestSet(t *testing.T) {
	src := NewManualSource(500)
	c := New(src)
	c.Set(100)
	require.Equal(t, uint32(100), c.Millis())
	require.Equal(t, int32(-400), c.Delta())
	src.Advance(50)
	require.Equal(t, uint32(150), c.Millis())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "synced", StateSynced.String())
	require.Equal(t, "unknown", State(9).String())
}
