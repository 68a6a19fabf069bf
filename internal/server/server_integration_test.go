package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/roomcount/internal/capture"
	"github.com/ayusman/roomcount/internal/detector"
	"github.com/ayusman/roomcount/internal/logging"
	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/store"
	"github.com/ayusman/roomcount/internal/tracker"
)

// newTestManager builds a manager over mock frames and a mock detector that
// reports two people in every frame.
func newTestManager(t *testing.T, frames int) (*occupancy.Manager, *capture.MockOpener) {
	t.Helper()

	mats := make([]*gocv.Mat, frames)
	for i := range mats {
		m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
		mats[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range mats {
			m.Close()
		}
	})

	det := detector.NewMockDetector()
	det.SetDetections([]occupancy.Detection{
		detector.StandingPerson(100),
		detector.StandingPerson(400),
	})

	opener := capture.NewMockOpener(mats, false)
	mgr, err := occupancy.NewManager(occupancy.Config{
		Opener:     opener,
		Detector:   det,
		NewTracker: tracker.Factory(tracker.DefaultConfig()),
		Tunables:   occupancy.DefaultTunables(),
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return mgr, opener
}

func waitIdle(t *testing.T, client *http.Client, baseURL string) (count int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/count")
		if err != nil {
			t.Fatalf("GET /count error = %v", err)
		}
		var body struct {
			Count      int  `json:"count"`
			Processing bool `json:"processing"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if !body.Processing {
			return body.Count
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return 0
}

func TestAPI_JobWorkflow(t *testing.T) {
	mgr, opener := newTestManager(t, 30)
	srv := New(Config{Manager: mgr, Logger: logging.Discard()})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Start a job through the legacy route
	resp, err := client.Post(ts.URL+"/process_video_url", "application/json", bytes.NewBufferString(`{"url": "hall.mp4"}`))
	if err != nil {
		t.Fatalf("POST /process_video_url error = %v", err)
	}
	var started struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if started.Status != "processing_started" {
		t.Fatalf("status = %q, want processing_started", started.Status)
	}

	// 2. Poll until the job ends
	if count := waitIdle(t, client, ts.URL); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	if opened := opener.Opened(); len(opened) != 1 || opened[0].URI != "hall.mp4" {
		t.Errorf("opened = %+v, want hall.mp4", opened)
	}
	for _, src := range opener.Sources() {
		if src.IsOpen() {
			t.Error("source should be closed after the job ends")
		}
	}

	// 3. The full status keeps the last count
	resp, err = client.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	var status occupancy.Status
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.Count != 2 || status.Processing || status.Frames != 30 {
		t.Errorf("status = %+v, want count 2, idle, 30 frames", status)
	}
}

func TestAPI_StartFromSavedSource(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	mgr, opener := newTestManager(t, 5)
	srv := New(Config{Manager: mgr, Store: s, Logger: logging.Discard()})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Post(ts.URL+"/api/sources", "application/json", bytes.NewBufferString(`{"name": "lobby", "uri": "rtsp://lobby/live"}`))
	if err != nil {
		t.Fatalf("POST /api/sources error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/sources status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp, err = client.Post(ts.URL+"/api/jobs", "application/json", bytes.NewBufferString(`{"source_id": "`+created.ID+`"}`))
	if err != nil {
		t.Fatalf("POST /api/jobs error = %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/jobs status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	resp.Body.Close()

	waitIdle(t, client, ts.URL)
	if opened := opener.Opened(); len(opened) != 1 || opened[0].URI != "rtsp://lobby/live" {
		t.Errorf("opened = %+v, want the saved source URI", opened)
	}
}

func TestAPI_StatusWebsocket(t *testing.T) {
	mgr, _ := newTestManager(t, 30)
	srv := New(Config{Manager: mgr, Logger: logging.Discard(), StatusInterval: 20 * time.Millisecond})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	// The first message is sent on connect.
	var first occupancy.Status
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read first snapshot: %v", err)
	}
	if first.Processing || first.Count != 0 {
		t.Errorf("first snapshot = %+v, want idle with count 0", first)
	}

	if _, err := mgr.Start(occupancy.Descriptor{URI: "hall.mp4"}); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	// Pushed snapshots eventually show the finished job's count.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var st occupancy.Status
		conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		if !st.Processing && st.Count == 2 {
			break
		}
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{DetectorReady: true})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		DetectorReady bool   `json:"detector_ready"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if !health.DetectorReady {
		t.Error("detector_ready = false, want true")
	}
}
