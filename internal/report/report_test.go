package report

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = Defaults{
	Env:      "staging",
	Platform: "go",
	Project:  "checkout",
}

func TestNewEnvelope_PopulatesBase(t *testing.T) {
	env := NewEnvelope(TypeGC, testDefaults, map[string]int{"n": 1})

	assert.Equal(t, TypeGC, env.Type)
	assert.Equal(t, "staging", env.Base.Env)
	assert.Equal(t, "go", env.Base.Platform)
	assert.Equal(t, "checkout", env.Base.Project)
}

func TestApplyDefaults_KeepsExplicitFields(t *testing.T) {
	env := Envelope{
		Type: TypeMemory,
		Base: Base{
			Project: "custom",
			Extra:   map[string]string{"region": "eu"},
		},
	}
	env.ApplyDefaults(Defaults{
		Env:      "prod",
		Platform: "go",
		Project:  "ignored",
		Extra:    map[string]string{"region": "us", "host": "a"},
	})

	assert.Equal(t, "prod", env.Base.Env)
	assert.Equal(t, "go", env.Base.Platform)
	assert.Equal(t, "custom", env.Base.Project)
	assert.Equal(t, map[string]string{"region": "eu", "host": "a"}, env.Base.Extra)
}

func TestMulti_FansOut(t *testing.T) {
	var got []string
	record := func(name string) Reporter {
		return ReporterFunc(func(env Envelope, opts Options) {
			got = append(got, name+":"+string(env.Type))
		})
	}

	Multi{record("a"), Nop(), record("b")}.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})

	assert.Equal(t, []string{"a:memory", "b:memory"}, got)
}

func TestLogReporter_LevelFollowsDev(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	r := NewLogReporter(logger)

	r.Report(NewEnvelope(TypeGC, testDefaults, nil), Options{Dev: false})
	assert.Zero(t, buf.Len(), "non-dev envelopes log at debug level")

	r.Report(NewEnvelope(TypeGC, testDefaults, map[string]float64{"load": 0.5}), Options{Dev: true})
	assert.Contains(t, buf.String(), `"type":"gc"`)
	assert.Contains(t, buf.String(), `"load":0.5`)
}

func TestEncodeDecode(t *testing.T) {
	env := NewEnvelope(TypeMemory, testDefaults, map[string]float64{"heapUsed": 12.5})

	body, err := Encode(env)
	require.NoError(t, err)

	decoded, data, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, TypeMemory, decoded.Type)
	assert.Equal(t, env.Base, decoded.Base)
	assert.JSONEq(t, `{"heapUsed":12.5}`, string(data))
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not base64!"))
	assert.Error(t, err)
}

type capturedRequest struct {
	path        string
	contentType string
	body        []byte
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)

	return ts, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestHTTPReporter_PostsEncodedEnvelope(t *testing.T) {
	ts, requests := newCaptureServer(t, http.StatusOK)

	r, err := NewHTTPReporter(HTTPConfig{
		URL:    ts.URL + "/prod",
		DevURL: ts.URL + "/dev",
	}, zerolog.Nop())
	require.NoError(t, err)
	r.now = func() time.Time { return time.UnixMilli(1700000000123) }

	r.Report(NewEnvelope(TypeGC, testDefaults, map[string]int{"count": 3}), Options{Dev: true})
	r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{Dev: false})
	require.NoError(t, r.Close())

	got := requests()
	require.Len(t, got, 2)

	paths := map[string]capturedRequest{}
	for _, req := range got {
		paths[req.path] = req
	}
	require.Contains(t, paths, "/dev")
	require.Contains(t, paths, "/prod")

	dev := paths["/dev"]
	assert.Equal(t, "text/plain", dev.contentType)

	env, data, err := Decode(dev.body)
	require.NoError(t, err)
	assert.Equal(t, TypeGC, env.Type)
	assert.Equal(t, int64(1700000000123), env.Base.ClientTimestamp)
	assert.Equal(t, "checkout", env.Base.Project)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 3, payload["count"])
}

func TestHTTPReporter_DevFallsBackToURL(t *testing.T) {
	ts, requests := newCaptureServer(t, http.StatusOK)

	r, err := NewHTTPReporter(HTTPConfig{URL: ts.URL + "/prod"}, zerolog.Nop())
	require.NoError(t, err)

	r.Report(NewEnvelope(TypeGC, testDefaults, nil), Options{Dev: true})
	require.NoError(t, r.Close())

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "/prod", got[0].path)
}

func TestHTTPReporter_ToleratesServerErrors(t *testing.T) {
	ts, requests := newCaptureServer(t, http.StatusInternalServerError)

	var buf bytes.Buffer
	r, err := NewHTTPReporter(HTTPConfig{URL: ts.URL}, zerolog.New(&buf))
	require.NoError(t, err)

	r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})
	require.NoError(t, r.Close())

	assert.Len(t, requests(), 1)
	assert.Contains(t, buf.String(), "Report endpoint rejected envelope")
}

func TestHTTPReporter_DropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	var hits sync.WaitGroup
	hits.Add(1)
	var once sync.Once
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(hits.Done)
		<-release
	}))
	t.Cleanup(ts.Close)

	var buf bytes.Buffer
	r, err := NewHTTPReporter(HTTPConfig{URL: ts.URL, MaxInFlight: 1}, zerolog.New(&buf))
	require.NoError(t, err)

	r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})
	hits.Wait()
	r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})

	close(release)
	require.NoError(t, r.Close())
	assert.Contains(t, buf.String(), "Too many reports in flight")
}

func TestHTTPReporter_DropsAfterClose(t *testing.T) {
	ts, requests := newCaptureServer(t, http.StatusOK)

	var buf bytes.Buffer
	r, err := NewHTTPReporter(HTTPConfig{URL: ts.URL}, zerolog.New(&buf))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})
	require.NoError(t, r.Close())

	assert.Empty(t, requests())
	assert.Contains(t, buf.String(), "Reporter closed, dropping envelope")
}

func TestHTTPReporter_ReportDuringClose(t *testing.T) {
	ts, _ := newCaptureServer(t, http.StatusOK)

	r, err := NewHTTPReporter(HTTPConfig{URL: ts.URL, MaxInFlight: 64}, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Report(NewEnvelope(TypeMemory, testDefaults, nil), Options{})
			}
		}()
	}
	require.NoError(t, r.Close())
	wg.Wait()
	require.NoError(t, r.Close())
}

func TestNewHTTPReporter_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPReporter(HTTPConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewEnvelope_PlatformFallback(t *testing.T) {
	env := NewEnvelope(TypeMemory, Defaults{Project: "p"}, nil)
	assert.Equal(t, DefaultPlatform, env.Base.Platform)
}
