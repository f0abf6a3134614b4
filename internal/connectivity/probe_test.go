package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	logpkg "github.com/stationkit/redeemq/pkg/log"
)

func testLogger() logpkg.Logger {
	l, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return l
}

func TestStaticFiresOnTransitionOnly(t *testing.T) {
	s := NewStatic(false)
	fired := 0
	s.OnOnline(func() { fired++ })

	s.SetOnline(true)
	if fired != 1 {
		t.Fatalf("fired = %d after offline->online, want 1", fired)
	}
	s.SetOnline(true) // no transition
	if fired != 1 {
		t.Fatalf("fired = %d after online->online, want 1", fired)
	}
	s.SetOnline(false)
	s.SetOnline(true)
	if fired != 2 {
		t.Fatalf("fired = %d after second transition, want 2", fired)
	}
}

func TestProbeCheckNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, 0, testLogger())
	fired := 0
	p.OnOnline(func() { fired++ })

	if p.IsOnline() {
		t.Fatalf("probe should start offline")
	}
	if !p.CheckNow() {
		t.Fatalf("check against live server should succeed")
	}
	if !p.IsOnline() || fired != 1 {
		t.Fatalf("online=%v fired=%d after successful check", p.IsOnline(), fired)
	}

	srv.Close()
	if p.CheckNow() {
		t.Fatalf("check against closed server should fail")
	}
	if p.IsOnline() {
		t.Fatalf("probe should be offline after failed check")
	}
}

func TestProbeCountsErrorStatusAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, 0, testLogger())
	if !p.CheckNow() {
		t.Fatalf("a 500 response still means the network is reachable")
	}
}
