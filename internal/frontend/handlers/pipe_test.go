package handlers

import (
	"io"
	"net"
	"testing"
)

func netPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func drain(c net.Conn) {
	_, _ = io.Copy(io.Discard, c)
}
