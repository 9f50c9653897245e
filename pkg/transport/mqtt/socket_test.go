package mqtt

import (
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/hmtl.go/pkg/transport"
	"github.com/robotalks/hmtl.go/pkg/wire"
)

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

type fakeBroker struct {
	lock      sync.Mutex
	subs      map[*fakeClient]map[string]paho.MessageHandler
	published []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[*fakeClient]map[string]paho.MessageHandler)}
}

func (b *fakeBroker) queue(prefix string) *Queue {
	return &Queue{Client: &fakeClient{broker: b}, TopicPrefix: prefix}
}

func (b *fakeBroker) topics(c paho.Client) (topics []string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for topic := range b.subs[c.(*fakeClient)] {
		topics = append(topics, topic)
	}
	return
}

type fakeClient struct {
	paho.Client
	broker *fakeBroker
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	c.broker.lock.Lock()
	defer c.broker.lock.Unlock()
	subs := c.broker.subs[c]
	if subs == nil {
		subs = make(map[string]paho.MessageHandler)
		c.broker.subs[c] = subs
	}
	subs[topic] = cb
	return &paho.DummyToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, cb paho.MessageHandler) paho.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, cb)
	}
	return &paho.DummyToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.broker.lock.Lock()
	defer c.broker.lock.Unlock()
	for _, topic := range topics {
		delete(c.broker.subs[c], topic)
	}
	return &paho.DummyToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	type delivery struct {
		client *fakeClient
		cb     paho.MessageHandler
	}
	var deliveries []delivery
	c.broker.lock.Lock()
	c.broker.published = append(c.broker.published, topic)
	for client, subs := range c.broker.subs {
		for filter, cb := range subs {
			if MatchTopic(topic, filter) {
				deliveries = append(deliveries, delivery{client, cb})
			}
		}
	}
	c.broker.lock.Unlock()
	for _, d := range deliveries {
		d.cb(d.client, &fakeMessage{topic: topic, payload: payload.([]byte)})
	}
	return &paho.DummyToken{}
}

func (c *fakeClient) Disconnect(uint) {}

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic, pattern string
		match          bool
	}{
		{"bus/1", "bus/+", true},
		{"bus/all", "bus/+", true},
		{"bus/1/x", "bus/+", false},
		{"bus", "bus/+", false},
		{"bus", "bus/#", true},
		{"bus/1/x", "bus/#", true},
		{"a/b/c", "#", true},
		{"a/b/c", "a/+/c", true},
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},
		{"a", "a/b", false},
		{"a/b", "a", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}

func TestBusTopic(t *testing.T) {
	require.Equal(t, "bus/all", BusTopic(wire.Broadcast))
	require.Equal(t, "bus/258", BusTopic(258))

	testCases := []struct {
		topic string
		addr  wire.Address
		ok    bool
	}{
		{"bus/all", wire.Broadcast, true},
		{"bus/0", 0, true},
		{"bus/65534", 65534, true},
		{"bus/65536", 0, false},
		{"bus/x", 0, false},
		{"other/1", 0, false},
	}
	for _, tc := range testCases {
		addr, ok := ParseBusTopic(tc.topic)
		require.Equal(t, tc.ok, ok, tc.topic)
		require.Equal(t, tc.addr, addr, tc.topic)
	}
}

func TestPayload(t *testing.T) {
	payload := EncodePayload(0x0102, []byte{0xfc, 0x00})
	require.Equal(t, []byte{0x02, 0x01, 0xfc, 0x00}, payload)
	pkt, err := DecodePayload("bus/7", payload)
	require.NoError(t, err)
	require.Equal(t, &transport.Packet{Data: []byte{0xfc, 0x00}, Source: 0x0102, Dest: 7}, pkt)

	_, err = DecodePayload("bus/7", []byte{1})
	require.ErrorIs(t, err, ErrShortPayload)
	_, err = DecodePayload("nope", payload)
	require.Error(t, err)
}

func TestSocketOverBroker(t *testing.T) {
	broker := newFakeBroker()
	a := NewSocket(broker.queue("hmtl/"), 1)
	b := NewSocket(broker.queue("hmtl/"), 2)
	a.subscribe()
	b.subscribe()
	require.ElementsMatch(t, []string{"hmtl/bus/2", "hmtl/bus/all"}, broker.topics(b.Queue.Client))

	require.NoError(t, a.SendTo(2, []byte{0xaa}))
	require.Equal(t, []string{"hmtl/bus/2"}, broker.published)
	pkt, ok := b.Receive()
	require.True(t, ok)
	require.Equal(t, &transport.Packet{Data: []byte{0xaa}, Source: 1, Dest: 2}, pkt)

	require.NoError(t, a.SendTo(wire.Broadcast, []byte{0xbb}))
	pkt, ok = b.Receive()
	require.True(t, ok)
	require.Equal(t, wire.Broadcast, pkt.Dest)
	_, ok = a.Receive()
	require.False(t, ok, "own broadcast must be dropped")

	b.SetSourceAddress(5)
	require.ElementsMatch(t, []string{"hmtl/bus/5", "hmtl/bus/all"}, broker.topics(b.Queue.Client))
	require.NoError(t, a.SendTo(2, []byte{1}))
	_, ok = b.Receive()
	require.False(t, ok)
	require.NoError(t, a.SendTo(5, []byte{2}))
	pkt, ok = b.Receive()
	require.True(t, ok)
	require.Equal(t, []byte{2}, pkt.Data)

	var tle *transport.TooLargeError
	require.ErrorAs(t, a.SendTo(5, make([]byte, wire.MaxFrameLen+1)), &tle)

	b.unsubscribe()
	require.Empty(t, broker.topics(b.Queue.Client))
}

func TestSubscribeBus(t *testing.T) {
	broker := newFakeBroker()
	mon := broker.queue("")
	var got []*transport.Packet
	SubscribeBus(mon, func(pkt *transport.Packet) { got = append(got, pkt) })
	s := NewSocket(broker.queue(""), 3)
	require.NoError(t, s.SendTo(9, []byte{1}))
	require.NoError(t, s.SendTo(wire.Broadcast, []byte{2}))
	require.Len(t, got, 2)
	require.Equal(t, wire.Address(9), got[0].Dest)
	require.Equal(t, wire.Broadcast, got[1].Dest)
	require.Equal(t, wire.Address(3), got[1].Source)
}

func TestSubscriptionSharing(t *testing.T) {
	broker := newFakeBroker()
	q := broker.queue("")
	var n1, n2 int
	s1 := q.Sub("bus/1", func(string, []byte) { n1++ })
	s2 := q.Sub("bus/1", func(string, []byte) { n2++ })
	q.Pub("bus/1", []byte{0, 0})
	require.Equal(t, 1, n1)
	require.Equal(t, 1, n2)

	require.NoError(t, s1.Close())
	require.Equal(t, []string{"bus/1"}, broker.topics(q.Client))
	q.Pub("bus/1", []byte{0, 0})
	require.Equal(t, 1, n1)
	require.Equal(t, 2, n2)

	require.NoError(t, s2.Close())
	require.Empty(t, broker.topics(q.Client))
	require.NoError(t, s2.Close())
}
