package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/fanout"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/pipeline"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/store"
)

type hotClassifier struct{}

// anomalous when temperature goes past 100
func (hotClassifier) Classify(r model.Reading) (bool, error) {
	return r.Feature("temperature") > 100, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *pipeline.Pipeline) {
	t.Helper()
	pipe := pipeline.New(logger.New("error"), store.NewMemory(1000, 100), hotClassifier{}, fanout.NewBroker(16), nil)
	srv := NewServer(Deps{Log: logger.New("error"), Pipe: pipe}, Config{})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, pipe
}

func TestPostAndGetData(t *testing.T) {
	ts, _ := newTestServer(t)

	body := `{"temperature": 21.5, "humidity": 48, "sensor_id": "kitchen"}`
	resp, err := http.Post(ts.URL+"/api/data", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["status"] != "success" {
		t.Fatalf("body = %v", out)
	}

	resp, err = http.Get(ts.URL + "/api/data")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var readings []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(readings) != 1 || readings[0]["sensor_id"] != "kitchen" {
		t.Fatalf("readings = %v", readings)
	}
	if readings[0]["timestamp"] == nil {
		t.Fatal("stored reading should carry a timestamp")
	}
}

func TestPostFormData(t *testing.T) {
	ts, pipe := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/api/data", url.Values{"temperature": {"19.5"}})
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := pipe.RecentReadings(1)
	// form values arrive as strings; scoring coerces them
	if got[0]["temperature"] != "19.5" || got[0].Feature("temperature") != 19.5 {
		t.Fatalf("form reading = %v", got[0])
	}
}

func TestPostMalformedData(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/data", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["error"] == "" {
		t.Fatal("error body missing")
	}
}

func TestAnomalyEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, body := range []string{
		`{"temperature": 21.0}`,
		`{"temperature": 5000.0}`,
	} {
		resp, err := http.Post(ts.URL+"/api/data", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
	}

	for _, path := range []string{"/api/anomalies", "/api/alerts"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var alerts []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		resp.Body.Close()
		if len(alerts) != 1 || alerts[0]["type"] != model.AlertAnomaly {
			t.Fatalf("%s = %v", path, alerts)
		}
	}
}

func uploadCSV(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	resp, err := http.Post(url+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestUploadCSV(t *testing.T) {
	ts, pipe := newTestServer(t)

	resp := uploadCSV(t, ts.URL, "batch.csv", "temperature,humidity\n21,50\n22,51\nbad\n23,52\n")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["records_processed"] != float64(3) || out["records_failed"] != float64(1) {
		t.Fatalf("body = %v", out)
	}
	if len(pipe.RecentReadings(10)) != 3 {
		t.Fatal("rows after the malformed one must still ingest")
	}
}

func TestUploadRejectsWrongExtension(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadCSV(t, ts.URL, "data.txt", "temperature\n21\n")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/upload", "multipart/form-data", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebsocketSnapshotThenLive(t *testing.T) {
	ts, _ := newTestServer(t)

	// seed history before connecting
	resp, err := http.Post(ts.URL+"/api/data", "application/json", strings.NewReader(`{"temperature": 20.0}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var init struct {
		Type    string `json:"type"`
		Payload struct {
			SensorData []map[string]any `json:"sensor_data"`
			Anomalies  []map[string]any `json:"anomalies"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read init: %v", err)
	}
	if init.Type != "init_data" || len(init.Payload.SensorData) != 1 {
		t.Fatalf("init = %+v", init)
	}

	resp, err = http.Post(ts.URL+"/api/data", "application/json", strings.NewReader(`{"temperature": 25.0}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var live struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("read live: %v", err)
	}
	if live.Type != "new_data" || live.Payload["temperature"] != 25.0 {
		t.Fatalf("live = %+v", live)
	}
}
