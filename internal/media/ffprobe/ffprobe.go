package ffprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Errors returned by ProbeStream. Callers distinguish a process that ran and
// failed from output that could not be understood.
var (
	ErrEmptyAddress = errors.New("ffprobe: empty address")
	ErrExit         = errors.New("ffprobe: non-zero exit")
	ErrDecode       = errors.New("ffprobe: undecodable output")
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single elementary stream.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata.
type Format struct {
	NBStreams  int    `json:"nb_streams"`
	FormatName string `json:"format_name"`
}

// StreamCount returns the number of streams ffprobe detected.
func (r Result) StreamCount() int {
	if n := len(r.Streams); n > 0 {
		return n
	}
	return r.Format.NBStreams
}

// HasMedia reports whether at least one audio or video stream was found.
func (r Result) HasMedia() bool {
	for _, stream := range r.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "audio", "video":
			return true
		}
	}
	return false
}

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) (stdout []byte, stderr []byte, err error)
}

// Option configures a Prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// Prober invokes ffprobe.
type Prober struct {
	binary string
	exec   Executor
}

// New returns a Prober using binary, or "ffprobe" when blank.
func New(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StreamOptions bounds a single probe.
type StreamOptions struct {
	// Capture limits how long ffprobe reads the stream before reporting.
	Capture time.Duration
	// UserAgent is sent for http(s) addresses.
	UserAgent string
}

// ProbeStream runs ffprobe against address. A non-zero exit yields ErrExit and
// unparseable stdout yields ErrDecode; both wrap the underlying cause.
func (p *Prober) ProbeStream(ctx context.Context, address string, opts StreamOptions) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}, ErrEmptyAddress
	}
	stdout, stderr, err := p.exec.Output(ctx, p.binary, BuildArgs(address, opts))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrExit, ctxErr)
		}
		return Result{}, fmt.Errorf("%w: %w: %s", ErrExit, err, firstLine(stderr))
	}
	var result Result
	if err := json.Unmarshal(stdout, &result); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return result, nil
}

// BuildArgs assembles the ffprobe command line for address.
func BuildArgs(address string, opts StreamOptions) []string {
	args := []string{"-v", "error", "-hide_banner"}
	if opts.Capture > 0 {
		micros := strconv.FormatInt(opts.Capture.Microseconds(), 10)
		args = append(args, "-analyzeduration", micros, "-rw_timeout", micros)
	}
	if opts.UserAgent != "" && isHTTP(address) {
		args = append(args, "-user_agent", opts.UserAgent)
	}
	return append(args, "-show_streams", "-show_format", "-of", "json", "--", address)
}

func isHTTP(address string) bool {
	lower := strings.ToLower(address)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func firstLine(stderr []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(stderr)), "\n")
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	configureProcessGroup(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
