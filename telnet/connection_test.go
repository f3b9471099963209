package telnet

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLog(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	c := Wrap(client, nil, nil)
	defer c.Close()
	var raw bytes.Buffer
	c.SetRawLogWriter(&raw)

	expected := []byte{'h', IAC, DO, Echo, 'i'}
	go server.Write(expected)

	buf := make([]byte, len(expected))
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, expected, buf)
	assert.Equal(t, expected, raw.Bytes())
	assert.False(t, c.Secure())
	assert.False(t, c.Urgent())
}

func TestWriteAfterCloseIsTransportError(t *testing.T) {
	client, server := net.Pipe()
	server.Close()
	c := Wrap(client, nil, nil)
	c.Close()

	_, err := c.Write([]byte("x"))
	require.Error(t, err)
	assert.Equal(t, TransportError, KindOf(err))
}

func TestStartTLSNeedsConfig(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := Wrap(client, nil, nil)
	defer c.Close()

	err := c.StartTLS()
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))
}
