package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"livemon/internal/config"
	"livemon/internal/media/ffprobe"
	"livemon/internal/services"
)

type countingDialer struct {
	calls atomic.Int32
	inner net.Dialer
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	return d.inner.DialContext(ctx, network, address)
}

type fakeDemuxer struct {
	calls   atomic.Int32
	streams int
	err     error
}

func (f *fakeDemuxer) ProbeStream(ctx context.Context, _ string, _ ffprobe.StreamOptions) (ffprobe.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ffprobe.Result{}, f.err
	}
	return ffprobe.Result{Streams: make([]ffprobe.Stream, f.streams)}, nil
}

func testConfig() config.Probe {
	cfg := config.Default().Probe
	cfg.TCPTimeout = 0.5
	cfg.HTTPTimeout = 0.5
	cfg.DemuxerTimeout = 0.5
	cfg.CaptureSeconds = 0.1
	return cfg
}

// rtmpServer accepts connections and answers the C0+C1 frame with reply.
func rtmpServer(t *testing.T, reply []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 1+rtmpC1Size)
				if _, err := io.ReadFull(conn, buf); err != nil {
					return
				}
				if len(reply) > 0 {
					_, _ = conn.Write(reply)
				}
			}()
		}
	}()
	return ln.Addr().String()
}

// rtmpsServer is rtmpServer behind TLS. It returns the address and a client
// configuration that trusts the server certificate.
func rtmpsServer(t *testing.T, reply []byte) (string, *tls.Config) {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.NotFoundHandler())
	srv.StartTLS()
	t.Cleanup(srv.Close)
	clientConfig := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: srv.TLS.Certificates})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 1+rtmpC1Size)
				if _, err := io.ReadFull(conn, buf); err != nil {
					return
				}
				_, _ = conn.Write(reply)
			}()
		}
	}()
	return ln.Addr().String(), clientConfig
}

func refusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestRecordingShortcutDoesNoIO(t *testing.T) {
	dialer := &countingDialer{}
	demuxer := &fakeDemuxer{streams: 1}
	transport := &countingTransport{}
	engine := NewEngine(testConfig(), nil,
		WithDialer(dialer),
		WithDemuxer(demuxer),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	for _, address := range []string{"a.mp4", "http://h/vod/A.MP4?token=1", "rtmp://h/app/clip.mp4"} {
		v := engine.Check(context.Background(), address)
		if !v.Live() || v.Tier != TierRecording {
			t.Fatalf("%s: expected recording shortcut, got %+v", address, v)
		}
	}
	if dialer.calls.Load() != 0 || demuxer.calls.Load() != 0 || transport.calls.Load() != 0 {
		t.Fatal("recording shortcut must not perform network or process calls")
	}
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected request")
}

func TestRTMPHandshakeEscalatesToDemuxer(t *testing.T) {
	addr := rtmpServer(t, append([]byte{rtmpVersion}, make([]byte, 16)...))
	demuxer := &fakeDemuxer{streams: 2}
	engine := NewEngine(testConfig(), nil, WithDemuxer(demuxer))

	v := engine.Check(context.Background(), "rtmp://"+addr+"/app/s1")
	if !v.Live() || v.Tier != TierDemuxer {
		t.Fatalf("expected live via demuxer, got %+v", v)
	}
	if demuxer.calls.Load() != 1 {
		t.Fatalf("demuxer calls = %d", demuxer.calls.Load())
	}
}

func TestRTMPDemuxerFailures(t *testing.T) {
	addr := rtmpServer(t, []byte{rtmpVersion})
	cases := map[string]*fakeDemuxer{
		"no streams": {streams: 0},
		"exit":       {err: ffprobe.ErrExit},
	}
	for name, demuxer := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewEngine(testConfig(), nil, WithDemuxer(demuxer)).Check(context.Background(), "rtmp://"+addr+"/app/s")
			if v.Live() || v.Kind() != services.KindProcessFailure {
				t.Fatalf("expected process failure, got %+v", v)
			}
		})
	}
}

func TestRTMPRejections(t *testing.T) {
	cfg := testConfig()
	cfg.Demuxer = config.DemuxerOff
	cases := map[string]string{
		"refused":      refusedAddr(t),
		"wrong byte":   rtmpServer(t, []byte{0x06}),
		"silent close": rtmpServer(t, nil),
	}
	for name, addr := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewEngine(cfg, nil).Check(context.Background(), "rtmp://"+addr+"/app/s")
			if v.Live() || v.Kind() != services.KindProbeRejected {
				t.Fatalf("expected probe_rejected, got %+v (err=%v)", v, v.Err)
			}
		})
	}
}

func TestRTMPWithoutHandshakeAcceptsTCP(t *testing.T) {
	cfg := testConfig()
	cfg.Demuxer = config.DemuxerOff
	cfg.RTMPHandshake = false
	addr := rtmpServer(t, nil)
	v := NewEngine(cfg, nil).Check(context.Background(), "rtmp://"+addr+"/app/s")
	if !v.Live() || v.Tier != TierTCP {
		t.Fatalf("expected live via tcp accept, got %+v", v)
	}
}

func TestHTTPTier(t *testing.T) {
	var sawRange atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redirect":
			http.Redirect(w, r, "/live.m3u8", http.StatusFound)
		case "/live.m3u8":
			if r.Header.Get("Range") == "bytes=0-0" {
				sawRange.Store(true)
			}
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("#"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	demuxer := &fakeDemuxer{streams: 1}
	engine := NewEngine(testConfig(), nil, WithDemuxer(demuxer))

	if v := engine.Check(context.Background(), srv.URL+"/redirect"); !v.Live() || v.Tier != TierHTTP {
		t.Fatalf("expected live after redirect, got %+v", v)
	}
	if !sawRange.Load() {
		t.Fatal("expected range header on the final request")
	}
	if demuxer.calls.Load() != 0 {
		t.Fatal("http addresses should not escalate in rtmp demuxer mode")
	}
	if v := engine.Check(context.Background(), srv.URL+"/missing"); v.Live() || v.Kind() != services.KindProbeRejected {
		t.Fatalf("expected 404 rejection, got %+v", v)
	}

	cfg := testConfig()
	cfg.Demuxer = config.DemuxerAll
	all := NewEngine(cfg, nil, WithDemuxer(demuxer))
	if v := all.Check(context.Background(), srv.URL+"/live.m3u8"); !v.Live() || v.Tier != TierDemuxer {
		t.Fatalf("demuxer=all should escalate http, got %+v", v)
	}
}

func TestOtherSchemes(t *testing.T) {
	demuxer := &fakeDemuxer{streams: 1}
	if v := NewEngine(testConfig(), nil, WithDemuxer(demuxer)).Check(context.Background(), "rtsp://cam/stream"); !v.Live() || v.Tier != TierDemuxer {
		t.Fatalf("rtsp should go straight to the demuxer, got %+v", v)
	}

	cfg := testConfig()
	cfg.Demuxer = config.DemuxerOff
	if v := NewEngine(cfg, nil).Check(context.Background(), "rtsp://cam/stream"); v.Live() || v.Kind() != services.KindProbeRejected {
		t.Fatalf("rtsp without demuxer should be rejected, got %+v", v)
	}
	if v := NewEngine(cfg, nil).Check(context.Background(), "not a url"); v.Live() || v.Kind() != services.KindProbeRejected {
		t.Fatalf("unparseable address should be rejected, got %+v", v)
	}
}

func TestCancelledContextIsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	// Accept and hold connections open without replying.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	cfg := testConfig()
	cfg.TCPTimeout = 5
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	v := NewEngine(cfg, nil).Check(ctx, "rtmp://"+ln.Addr().String()+"/app/s")
	if v.Live() || v.Kind() != services.KindProbeTimeout {
		t.Fatalf("expected probe_timeout, got %+v", v)
	}
	if v.Elapsed > 2*time.Second {
		t.Fatalf("handshake ignored cancellation: %v", v.Elapsed)
	}
}

func TestHostPortDefaults(t *testing.T) {
	u, _ := url.Parse("rtmp://h/app/s1")
	if HostPort(u) != "h:1935" {
		t.Fatalf("HostPort = %q", HostPort(u))
	}
	u, _ = url.Parse("rtmp://h:19350/app")
	if HostPort(u) != "h:19350" {
		t.Fatalf("HostPort = %q", HostPort(u))
	}
	u, _ = url.Parse("rtmps://h/app/s1")
	if HostPort(u) != "h:443" {
		t.Fatalf("HostPort = %q", HostPort(u))
	}
}

func TestSecureRTMPHandshakeWithoutDemuxer(t *testing.T) {
	addr, clientConfig := rtmpsServer(t, []byte{rtmpVersion})
	cfg := testConfig()
	cfg.Demuxer = config.DemuxerOff
	demuxer := &fakeDemuxer{streams: 1}
	engine := NewEngine(cfg, nil, WithDemuxer(demuxer), WithTLSConfig(clientConfig))

	v := engine.Check(context.Background(), "rtmps://"+addr+"/app/s1")
	if !v.Live() || v.Tier != TierRTMP {
		t.Fatalf("expected live via rtmp handshake, got %+v", v)
	}
	if demuxer.calls.Load() != 0 {
		t.Fatalf("demuxer calls = %d", demuxer.calls.Load())
	}
}

func TestSecureRTMPEscalatesToDemuxer(t *testing.T) {
	addr, clientConfig := rtmpsServer(t, []byte{rtmpVersion})
	cfg := testConfig()
	cfg.Demuxer = config.DemuxerRTMP
	demuxer := &fakeDemuxer{streams: 1}
	engine := NewEngine(cfg, nil, WithDemuxer(demuxer), WithTLSConfig(clientConfig))

	v := engine.Check(context.Background(), "rtmps://"+addr+"/app/s1")
	if !v.Live() || v.Tier != TierDemuxer {
		t.Fatalf("expected live via demuxer, got %+v", v)
	}
	if demuxer.calls.Load() != 1 {
		t.Fatalf("demuxer calls = %d", demuxer.calls.Load())
	}
}

func TestSecureRTMPUntrustedCertificateIsDead(t *testing.T) {
	addr, _ := rtmpsServer(t, []byte{rtmpVersion})
	cfg := testConfig()
	cfg.Demuxer = config.DemuxerOff
	engine := NewEngine(cfg, nil)

	v := engine.Check(context.Background(), "rtmps://"+addr+"/app/s1")
	if v.Live() || v.Tier != TierRTMP {
		t.Fatalf("expected dead at rtmp tier, got %+v", v)
	}
	if !errors.Is(v.Err, services.ErrProbeRejected) {
		t.Fatalf("expected probe_rejected, got %v", v.Err)
	}
}

func TestStateTransitionsAreTerminal(t *testing.T) {
	for _, s := range []State{StateLive, StateDead} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateStart, StateTier1, StateTier2} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
