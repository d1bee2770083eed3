package email

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// silentServer accepts connections and never answers. With serverTLS set it
// completes the TLS handshake first and then goes quiet.
func silentServer(t *testing.T, serverTLS *tls.Config) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if serverTLS != nil {
					tc := tls.Server(c, serverTLS)
					if err := tc.Handshake(); err != nil {
						return
					}
					c = tc
				}
				_, _ = io.Copy(io.Discard, c)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func fetchWithin(t *testing.T, cfg Config, timeout time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := New(cfg).Fetch(ctx, nil, 10)
		errc <- err
	}()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch ignored the context deadline")
		return nil
	}
}

// TestFetch_HangingHandshakeHonorsContext verifies a server that never
// completes TLS cannot hold the source past its deadline.
func TestFetch_HangingHandshakeHonorsContext(t *testing.T) {
	addr := silentServer(t, nil)
	err := fetchWithin(t, Config{Addr: addr, Username: "u", Password: "p"}, 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error from a silent server")
	}
}

// TestFetch_MissingGreetingHonorsContext verifies login is bounded by the
// context when the server never sends its greeting.
func TestFetch_MissingGreetingHonorsContext(t *testing.T) {
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	defer ts.Close()
	clientTLS := ts.Client().Transport.(*http.Transport).TLSClientConfig

	addr := silentServer(t, ts.TLS)
	err := fetchWithin(t, Config{Addr: addr, Username: "u", Password: "p", TLSConfig: clientTLS}, 300*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestFetch_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Addr: "127.0.0.1:993"}).Fetch(context.Background(), nil, 10)
	if err == nil {
		t.Fatal("expected an error without credentials")
	}
}
