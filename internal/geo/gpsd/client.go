// Package gpsd is a minimal client for the gpsd JSON protocol. It opens
// a watch, waits for the first live TPV report with a 2D or better fix,
// and classifies failures for the caller.
package gpsd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Failure classification. Callers map these onto the user-facing
// location errors.
var (
	ErrUnavailable = errors.New("gpsd unavailable")
	ErrNoFix       = errors.New("no gps fix")
	ErrDenied      = errors.New("gpsd access denied")
	ErrTimedOut    = errors.New("gps fix timed out")
)

// Fix is a live position report from the receiver.
type Fix struct {
	Latitude  float64
	Longitude float64
	// Accuracy is the estimated horizontal error in meters, when the
	// receiver reports one.
	Accuracy float64
	Time     time.Time
}

// Client reads position reports from a gpsd daemon over TCP.
type Client struct {
	address string
	timeout time.Duration
}

// New builds a client for the given gpsd address, normally
// localhost:2947. timeout caps the whole acquisition including dialing.
func New(address string, timeout time.Duration) *Client {
	if address == "" {
		address = "localhost:2947"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{address: address, timeout: timeout}
}

// watchRequest enables JSON streaming on the gpsd connection.
const watchRequest = `?WATCH={"enable":true,"json":true};` + "\n"

// tpv is the subset of gpsd's TPV report we consume. Mode 2 is a 2D
// fix, 3 is 3D; below that the report carries no usable position.
type tpv struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	EPH   float64 `json:"eph"`
	EPX   float64 `json:"epx"`
	EPY   float64 `json:"epy"`
	Time  string  `json:"time"`
}

// Acquire waits for the first live fix. Reports timestamped before the
// watch began are discarded so a stale receiver cache never satisfies a
// fresh capture.
func (c *Client) Acquire(ctx context.Context) (Fix, error) {
	started := time.Now().UTC()
	deadline := started.Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	dialer := net.Dialer{Timeout: time.Until(deadline)}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return Fix{}, classifyDialError(err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return Fix{}, fmt.Errorf("set gpsd deadline: %w", err)
	}
	if _, err := conn.Write([]byte(watchRequest)); err != nil {
		return Fix{}, fmt.Errorf("enable gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return Fix{}, fmt.Errorf("gps acquisition: %w", ErrTimedOut)
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, `"TPV"`) {
			continue
		}
		var report tpv
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			continue
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}
		if report.Lat == 0 && report.Lon == 0 {
			continue
		}
		fixTime := parseTPVTime(report.Time)
		if !fixTime.IsZero() && fixTime.Before(started.Add(-2*time.Second)) {
			continue
		}
		return Fix{
			Latitude:  report.Lat,
			Longitude: report.Lon,
			Accuracy:  horizontalError(report),
			Time:      fixTime,
		}, nil
	}
	if err := scanner.Err(); err != nil {
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return Fix{}, fmt.Errorf("gps acquisition: %w", ErrTimedOut)
		}
		return Fix{}, fmt.Errorf("read gpsd stream: %w", err)
	}
	return Fix{}, fmt.Errorf("gpsd stream ended: %w", ErrNoFix)
}

func horizontalError(report tpv) float64 {
	if report.EPH > 0 {
		return report.EPH
	}
	if report.EPX > report.EPY {
		return report.EPX
	}
	return report.EPY
}

func parseTPVTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func classifyDialError(err error) error {
	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("dial gpsd: %w", ErrDenied)
	case isTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("dial gpsd: %w", ErrTimedOut)
	default:
		return fmt.Errorf("dial gpsd at unreachable address: %w", ErrUnavailable)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
