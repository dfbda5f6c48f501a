package probe

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livemon/internal/media/ffprobe"
)

const (
	defaultRTMPPort  = "1935"
	defaultRTMPSPort = "443"
	rtmpVersion      = 0x03
	rtmpC1Size       = 1536
)

// Dialer opens transport connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Demuxer runs the media demuxer against an address.
type Demuxer interface {
	ProbeStream(ctx context.Context, address string, opts ffprobe.StreamOptions) (ffprobe.Result, error)
}

// HostPort returns host:port for u, defaulting the port to 1935 for rtmp and
// 443 for rtmps.
func HostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = defaultRTMPPort
		if strings.EqualFold(u.Scheme, "rtmps") {
			port = defaultRTMPSPort
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// tlsDialer completes a TLS handshake on every connection the inner dialer
// opens, so rtmps runs the same tier-1 exchange as rtmp.
type tlsDialer struct {
	inner  Dialer
	config *tls.Config
}

func (d tlsDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	raw, err := d.inner.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{}
	if d.config != nil {
		cfg = d.config.Clone()
	}
	if cfg.ServerName == "" {
		host, _, splitErr := net.SplitHostPort(address)
		if splitErr != nil {
			host = address
		}
		cfg.ServerName = host
	}
	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return conn, nil
}

// DialTCP connects to hostport and closes the connection immediately.
func DialTCP(ctx context.Context, dialer Dialer, hostport string) error {
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return err
	}
	return conn.Close()
}

// RTMPHandshake connects to hostport, sends C0 and C1, and expects the server's
// S0 version byte to echo the protocol version.
func RTMPHandshake(ctx context.Context, dialer Dialer, hostport string) error {
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write(handshakeFrame(time.Now())); err != nil {
		return fmt.Errorf("write C0+C1: %w", err)
	}
	var s0 [1]byte
	if _, err := io.ReadFull(conn, s0[:]); err != nil {
		return fmt.Errorf("read S0: %w", err)
	}
	if s0[0] != rtmpVersion {
		return fmt.Errorf("unexpected S0 version byte 0x%02x", s0[0])
	}
	return nil
}

// handshakeFrame builds C0 (version) followed by C1 (timestamp, four zero
// bytes, zero padding).
func handshakeFrame(now time.Time) []byte {
	frame := make([]byte, 1+rtmpC1Size)
	frame[0] = rtmpVersion
	binary.BigEndian.PutUint32(frame[1:5], uint32(now.UnixMilli()))
	return frame
}

// HTTPRange requests the first byte of address. Any status below 400 counts
// as reachable; redirects are followed by the client.
func HTTPRange(ctx context.Context, client *http.Client, address, userAgent string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

func isRTMP(scheme string) bool {
	return scheme == "rtmp" || scheme == "rtmps"
}

func isHTTP(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func hasRecordingSuffix(address string, suffixes []string) bool {
	p := address
	if u, err := url.Parse(address); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.ToLower(p)
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}
