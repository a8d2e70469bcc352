package telnet

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pipeConn returns a Conn reading whatever is written to the returned
// client side.
func pipeConn(t testing.TB, input []byte) *Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	go func() {
		_, _ = client.Write(input)
		client.Close()
	}()
	return NewConn("test", server, time.Second, time.Second)
}

func TestReadLine_Terminators(t *testing.T) {
	conn := pipeConn(t, []byte("1d6\r\n4d20+10\n2d8\rlast"))

	for _, want := range []string{"1d6", "4d20+10", "2d8"} {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	line, err := conn.ReadLine()
	assert.Equal(t, "last", line)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_FiltersIAC(t *testing.T) {
	input := []byte{
		IAC, DO, OptSuppressGoAhead,
		'2', IAC, SB, 24, 0, 'x', 't', IAC, SE, 'd', '8',
		IAC, 241, // NOP
		'+', '1', '\r', '\n',
	}
	conn := pipeConn(t, input)

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "2d8+1", line)
}

func TestReadLine_FiltersControlCharacters(t *testing.T) {
	conn := pipeConn(t, []byte("1d\x076\t+ 2\x1b\n"))
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "1d6\t+ 2", line)
}

func TestReadLine_TooLong(t *testing.T) {
	conn := pipeConn(t, []byte(strings.Repeat("9", MaxLineLength+1)+"\n"))
	_, err := conn.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestNegotiate(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := NewConn("test", server, 0, time.Second)
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Negotiate() }()

	buf := make([]byte, 3)
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{IAC, WILL, OptSuppressGoAhead}, buf)
	require.NoError(t, <-errCh)
}

func TestWriteLineAndPrompt(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := NewConn("test", server, 0, time.Second)
	go func() {
		_ = conn.WritePrompt("roll> ")
		_ = conn.WriteLine("= 7")
		conn.Close()
	}()

	out, err := io.ReadAll(client)
	require.NoError(t, err)
	assert.Equal(t, "roll> = 7\r\n", string(out))
}

// Property: printable lines without IAC bytes pass through ReadLine unchanged.
func TestPropertyReadLine_PrintablePassThrough(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[ -~]{0,80}`).Draw(rt, "text")
		conn := pipeConn(t, []byte(text+"\r\n"))
		line, err := conn.ReadLine()
		require.NoError(rt, err)
		assert.Equal(rt, text, line)
	})
}
