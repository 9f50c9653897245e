package membus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

func TestBusDelivery(t *testing.T) {
	bus := New(0)
	a, b, c := bus.Attach(1), bus.Attach(2), bus.Attach(3)
	require.Equal(t, 3, bus.Len())

	data := []byte{1, 2, 3}
	require.NoError(t, a.SendTo(2, data))
	data[0] = 9

	pkt, ok := b.Receive()
	require.True(t, ok)
	require.Equal(t, &transport.Packet{Data: []byte{1, 2, 3}, Source: 1, Dest: 2}, pkt)
	_, ok = c.Receive()
	require.False(t, ok)
	_, ok = a.Receive()
	require.False(t, ok)

	require.NoError(t, b.SendTo(wire.Broadcast, []byte{4}))
	for _, s := range []*Socket{a, c} {
		pkt, ok := s.Receive()
		require.True(t, ok)
		require.Equal(t, wire.Address(2), pkt.Source)
		require.Equal(t, []byte{4}, pkt.Data)
	}
	_, ok = b.Receive()
	require.False(t, ok)
}

func TestBusAddressChange(t *testing.T) {
	bus := New(0)
	a, b := bus.Attach(1), bus.Attach(2)
	b.SetSourceAddress(7)
	require.NoError(t, a.SendTo(2, []byte{1}))
	_, ok := b.Receive()
	require.False(t, ok)
	require.NoError(t, a.SendTo(7, []byte{1}))
	_, ok = b.Receive()
	require.True(t, ok)
}

func TestBusCapacity(t *testing.T) {
	bus := New(4)
	a := bus.Attach(1)
	require.Equal(t, 4, a.Capacity())
	var tle *transport.TooLargeError
	require.ErrorAs(t, a.SendTo(2, make([]byte, 5)), &tle)
}

func TestBusClose(t *testing.T) {
	bus := New(0)
	a, b := bus.Attach(1), bus.Attach(2)
	require.NoError(t, b.Close())
	require.Equal(t, 1, bus.Len())
	require.NoError(t, a.SendTo(2, []byte{1}))
	_, ok := b.Receive()
	require.False(t, ok)
	require.ErrorIs(t, b.SendTo(1, []byte{1}), transport.ErrClosed)
}
