package gpsd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeGPSD accepts one connection, waits for the watch request, then
// writes the given lines and closes.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		request, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || !strings.Contains(request, "?WATCH=") {
			return
		}
		for _, line := range lines {
			fmt.Fprintln(conn, line)
		}
	}()
	return listener.Addr().String()
}

func tpvLine(mode int, lat, lon, eph float64, at time.Time) string {
	return fmt.Sprintf(`{"class":"TPV","mode":%d,"lat":%f,"lon":%f,"eph":%f,"time":%q}`,
		mode, lat, lon, eph, at.UTC().Format(time.RFC3339Nano))
}

func TestAcquireReturnsFirstLiveFix(t *testing.T) {
	now := time.Now()
	address := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		tpvLine(1, 0, 0, 0, now),
		tpvLine(3, 37.7749, -122.4194, 4.2, now),
	)

	fix, err := New(address, 5*time.Second).Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if fix.Latitude != 37.7749 || fix.Longitude != -122.4194 {
		t.Errorf("fix = %+v", fix)
	}
	if fix.Accuracy != 4.2 {
		t.Errorf("Accuracy = %f", fix.Accuracy)
	}
}

func TestAcquireDiscardsStaleReports(t *testing.T) {
	now := time.Now()
	address := fakeGPSD(t,
		tpvLine(3, 1.0, 1.0, 3.0, now.Add(-time.Hour)),
		tpvLine(3, 40.0, -105.0, 3.0, now),
	)

	fix, err := New(address, 5*time.Second).Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if fix.Latitude != 40.0 {
		t.Errorf("stale cached report accepted: %+v", fix)
	}
}

func TestAcquireIgnoresReportsWithoutAFix(t *testing.T) {
	now := time.Now()
	address := fakeGPSD(t,
		tpvLine(0, 0, 0, 0, now),
		tpvLine(1, 0, 0, 0, now),
		`{"class":"SKY","satellites":[]}`,
		`not even json`,
	)

	_, err := New(address, 2*time.Second).Acquire(context.Background())
	if !errors.Is(err, ErrNoFix) {
		t.Fatalf("err = %v, want ErrNoFix when the stream ends fixless", err)
	}
}

func TestAcquireUnreachableDaemon(t *testing.T) {
	// Grab a port and close it so the dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	_, err = New(address, time.Second).Acquire(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestHorizontalErrorPrefersEPH(t *testing.T) {
	if got := horizontalError(tpv{EPH: 5, EPX: 9, EPY: 3}); got != 5 {
		t.Errorf("eph ignored: %f", got)
	}
	if got := horizontalError(tpv{EPX: 9, EPY: 3}); got != 9 {
		t.Errorf("largest axis not used: %f", got)
	}
	if got := horizontalError(tpv{EPX: 2, EPY: 7}); got != 7 {
		t.Errorf("largest axis not used: %f", got)
	}
}
