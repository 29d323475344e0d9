package amqp

import (
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

// Bind/Unbind must never start a goroutine: §5 promises this engine has
// no concurrency of its own, so a bare Bind-then-Unbind is a meaningful
// regression guard on its own, independent of any frame traffic.
func TestBindUnbindSpawnsNoGoroutine(t *testing.T) {
	defer leaktest.Check(t)()

	conn := NewConnection()
	tr := Bind(conn)
	require.Same(t, tr, conn.transport)

	tr.Unbind()
	require.Nil(t, conn.transport)
}

func TestTransportRejectsInvalidProtocolHeader(t *testing.T) {
	conn := NewConnection()
	tr := Bind(conn)

	_, err := tr.Read([]byte("GARBAGE!"))
	require.Error(t, err, "a framing failure is returned as well as recorded on Err")
	require.True(t, tr.Closed)
	require.Error(t, tr.Err)
}

func TestTransportReadAfterCloseErrors(t *testing.T) {
	conn := NewConnection()
	tr := Bind(conn)
	tr.Closed = true

	_, err := tr.Read([]byte{0})
	require.Error(t, err)
}
