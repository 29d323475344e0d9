package amqp

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
)

// pump drives bytes between two bound transports until both sides stop
// producing new output, simulating a lossless synchronous wire. Real
// embedders would do this over a socket; tests can do it in lockstep
// since the engine performs no I/O of its own (§5).
func pump(t *testing.T, a, b *Connection) {
	t.Helper()
	for i := 0; i < 64; i++ {
		require.NoError(t, a.Process())
		require.NoError(t, b.Process())

		moved := false
		if p := a.transport.Pending(); len(p) > 0 {
			n, err := b.transport.Read(p)
			require.NoError(t, err)
			a.transport.Pop(n)
			moved = true
		}
		if p := b.transport.Pending(); len(p) > 0 {
			n, err := a.transport.Read(p)
			require.NoError(t, err)
			b.transport.Pop(n)
			moved = true
		}
		if !moved {
			return
		}
	}
	t.Fatal("pump did not settle within 64 rounds")
}

func newPair(t *testing.T) (client, server *Connection) {
	t.Helper()
	client = NewConnection()
	client.ContainerID = "client"
	server = NewConnection()
	server.ContainerID = "server"
	Bind(client)
	Bind(server)
	return client, server
}

func TestHandshakeOpenBeginAttach(t *testing.T) {
	defer leaktest.Check(t)()

	client, server := newPair(t)
	client.Open()
	server.Open()
	require.NoError(t, client.Process())

	s := client.NewSession()
	s.Open()

	recv, err := NewReceiver(s, "link-1", &Terminus{Address: "queue-1"})
	require.NoError(t, err)

	pump(t, client, server)

	// The server's auto-created link stays locally uninitialised until the
	// server opens it; its ATTACH reply is what activates recv.Remote.
	for _, ss := range server.sessionsByChannel {
		if l, ok := ss.linksByName("link-1"); ok {
			l.Open()
		}
	}
	pump(t, client, server)

	require.Equal(t, StateActive, client.Local)
	require.Equal(t, StateActive, client.Remote)
	require.Equal(t, StateActive, s.Local)
	require.Equal(t, StateActive, s.Remote)
	require.Equal(t, StateActive, recv.Local)
	require.Equal(t, StateActive, recv.Remote)

	require.Equal(t, "client", server.RemoteContainerID)
	require.Equal(t, "server", client.RemoteContainerID)

	// server auto-created the complementary sender link.
	require.Len(t, server.sessionsByChannel, 1)
	var serverSession *Session
	for _, ss := range server.sessionsByChannel {
		serverSession = ss
	}
	require.NotNil(t, serverSession)
	peer, ok := serverSession.IncomingLink()
	require.True(t, ok)
	require.Equal(t, encoding.RoleSender, peer.Role)
	require.Equal(t, "queue-1", peer.Source.Address)
}

func TestTransferCreditAndSettlement(t *testing.T) {
	client, server := newPair(t)
	client.Open()
	server.Open()

	cs := client.NewSession()
	cs.Open()
	sender, err := NewSender(cs, "xfer-link", &Terminus{Address: "q"})
	require.NoError(t, err)

	pump(t, client, server)

	var serverSession *Session
	for _, ss := range server.sessionsByChannel {
		serverSession = ss
	}
	require.NotNil(t, serverSession)
	peerLink, ok := serverSession.IncomingLink()
	require.True(t, ok)
	receiver := &Receiver{Link: peerLink}
	receiver.Open()
	receiver.Flow(10, false)

	pump(t, client, server)

	tag := []byte("delivery-1")
	payload := []byte("hello amqp")
	d := sender.Send(tag, payload, false)
	require.False(t, d.Settled())

	pump(t, client, server)

	got, ok := receiver.Receive()
	require.True(t, ok)
	require.Equal(t, payload, got.Buf)
	require.Equal(t, tag, got.Tag)

	got.Accept()

	pump(t, client, server)

	require.True(t, d.RemoteSettled())
	_, accepted := d.RemoteState.(*Accepted)
	require.True(t, accepted)

	// The engine never auto-settles a sender's delivery just because the
	// peer settled its half (§4.5, dispatchDisposition only ever sets
	// RemoteState/remotelySettled) — the application settles explicitly
	// once it's satisfied with the observed outcome.
	d.Settle()
	pump(t, client, server)

	require.True(t, d.Settled())
	require.Equal(t, 0, sender.Unsettled())
	require.Equal(t, 0, receiver.Unsettled())
}

func TestLinkCreditLimitsTransfer(t *testing.T) {
	client, server := newPair(t)
	client.Open()
	server.Open()

	cs := client.NewSession()
	cs.Open()
	sender, err := NewSender(cs, "credit-link", &Terminus{Address: "q"})
	require.NoError(t, err)

	pump(t, client, server)

	var serverSession *Session
	for _, ss := range server.sessionsByChannel {
		serverSession = ss
	}
	peerLink, _ := serverSession.IncomingLink()
	receiver := &Receiver{Link: peerLink}
	receiver.Open()
	// no credit granted yet.

	pump(t, client, server)

	sender.Send([]byte("t1"), []byte("payload"), true)
	pump(t, client, server)

	_, ok := receiver.Receive()
	require.False(t, ok, "transfer must not go out before credit is granted")

	receiver.Flow(1, false)
	pump(t, client, server)

	got, ok := receiver.Receive()
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got.Buf)
}

func TestConnectionCloseCascades(t *testing.T) {
	client, server := newPair(t)
	client.Open()
	server.Open()

	cs := client.NewSession()
	cs.Open()
	_, err := NewSender(cs, "s1", &Terminus{Address: "q"})
	require.NoError(t, err)

	pump(t, client, server)

	client.Close(nil)
	pump(t, client, server)

	require.Equal(t, StateClosed, client.Local)
	require.Equal(t, StateClosed, server.Remote)

	// Receiving CLOSE doesn't auto-mirror a local close: that decision is
	// left to the embedder, same as proton-c. Here the server chooses to.
	server.Close(nil)
	pump(t, client, server)

	require.Equal(t, StateClosed, client.Remote)
	require.Equal(t, StateClosed, server.Local)
}

func TestTickEmitsKeepalive(t *testing.T) {
	client, _ := newPair(t)
	client.IdleTimeout = 100 * time.Millisecond
	client.Open()
	require.NoError(t, client.Process())
	client.transport.Pop(len(client.transport.Pending()))

	start := time.Now()
	client.transport.LastOutput = start

	next := client.Tick(start)
	require.False(t, next.IsZero())

	client.Tick(start.Add(40 * time.Millisecond))
	require.Empty(t, client.transport.Pending(), "keepalive not due yet")

	client.Tick(start.Add(120 * time.Millisecond))
	require.NotEmpty(t, client.transport.Pending(), "keepalive frame should have been queued")
}
