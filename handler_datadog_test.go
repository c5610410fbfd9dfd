package statline

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDataDogEncoder(t *testing.T) {
	ser, _, err := canonicalizeTags(Tags("host", "web1", "route", "/api"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	q := NewPayloadQueue(2048, 4)
	w := NewWriter(q, datadogEncoder{}, nil, nil)
	w.Add(Reading{Name: "hits", Type: TypeCounter, Value: 7, Tags: ser, Time: at})
	w.Add(Reading{Name: "temp", Type: TypeGauge, Value: 21.5, Tags: emptySerializedTags, Time: at})
	w.Finish()

	batch := q.TakeForFlush()
	if len(batch) != 1 {
		t.Fatalf("payloads = %d", len(batch))
	}

	var body struct {
		Series []struct {
			Metric string      `json:"metric"`
			Points [][]float64 `json:"points"`
			Type   string      `json:"type"`
			Host   string      `json:"host"`
			Tags   []string    `json:"tags"`
		} `json:"series"`
	}
	if err := json.Unmarshal(batch[0].Data, &body); err != nil {
		t.Fatalf("payload not valid JSON: %v\n%s", err, batch[0].Data)
	}
	if len(body.Series) != 2 {
		t.Fatalf("series = %d", len(body.Series))
	}

	s := body.Series[0]
	if s.Metric != "hits" || s.Type != "count" || s.Host != "web1" {
		t.Fatalf("series[0] = %+v", s)
	}
	if len(s.Points) != 1 || s.Points[0][0] != float64(at.Unix()) || s.Points[0][1] != 7 {
		t.Fatalf("points = %v", s.Points)
	}
	if len(s.Tags) != 2 || s.Tags[0] != "host:web1" {
		t.Fatalf("tags = %v", s.Tags)
	}

	if body.Series[1].Type != "gauge" || body.Series[1].Host != "" {
		t.Fatalf("series[1] = %+v", body.Series[1])
	}
}

func TestDataDogHandler_APIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("DD-API-KEY")
		if r.URL.Path != "/api/v1/series" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h, err := NewDataDogHandler(srv.URL, "secret", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Init(testHandlerConfig()); err != nil {
		t.Fatal(err)
	}

	bw := h.BeginBatch()
	bw.Add(testReading("a", 1, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)))
	bw.Finish()
	if err := h.Flush(context.Background(), func(SendReport) {}); err != nil {
		t.Fatal(err)
	}
	if gotKey != "secret" {
		t.Fatalf("DD-API-KEY = %q", gotKey)
	}
}

func TestSignalFxBatch_GroupsByType(t *testing.T) {
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var gotBodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/datapoint" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if tok := r.Header.Get("X-SF-TOKEN"); tok != "token" {
			t.Errorf("X-SF-TOKEN = %q", tok)
		}
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(gz)
		gotBodies = append(gotBodies, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, err := NewSignalFxHandler(srv.URL, "token", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Init(testHandlerConfig()); err != nil {
		t.Fatal(err)
	}

	bw := h.BeginBatch()
	bw.Add(Reading{Name: "hits", Type: TypeCounter, Value: 1, Tags: emptySerializedTags, Time: at})
	bw.Add(Reading{Name: "temp", Type: TypeGauge, Value: 2, Tags: emptySerializedTags, Time: at})
	bw.Add(Reading{Name: "total", Type: TypeCumulativeCounter, Value: 3, Tags: emptySerializedTags, Time: at})
	bw.Finish()

	if err := h.Flush(context.Background(), func(SendReport) {}); err != nil {
		t.Fatal(err)
	}

	// One payload per type group, each a well-formed single-group object.
	if len(gotBodies) != 3 {
		t.Fatalf("posts = %d", len(gotBodies))
	}
	groups := map[string]int{}
	for _, body := range gotBodies {
		var decoded map[string][]struct {
			Metric     string            `json:"metric"`
			Value      float64           `json:"value"`
			Timestamp  int64             `json:"timestamp"`
			Dimensions map[string]string `json:"dimensions"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("body not valid JSON: %v\n%s", err, body)
		}
		if len(decoded) != 1 {
			t.Fatalf("mixed groups in one payload: %s", body)
		}
		for group, points := range decoded {
			groups[group] += len(points)
			if points[0].Timestamp != at.UnixMilli() {
				t.Fatalf("timestamp = %d", points[0].Timestamp)
			}
		}
	}
	want := map[string]int{"counter": 1, "gauge": 1, "cumulative_counter": 1}
	for g, n := range want {
		if groups[g] != n {
			t.Fatalf("groups = %v, want %v", groups, want)
		}
	}
}
