package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formsheet/internal/telemetry"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingAppender struct {
	rows []submission.Row
	err  error
}

func (r *recordingAppender) Append(_ context.Context, _ submission.Target, row submission.Row) error {
	r.rows = append(r.rows, row)
	return r.err
}

func newTestServer(t *testing.T, appender submission.Appender, cfg Config, opts ...Option) *Server {
	t.Helper()
	pipeline, err := submission.NewPipeline(appender, submission.Target{StoreID: "sheet", Range: "Sheet1"})
	require.NoError(t, err)
	srv, err := New(context.Background(), pipeline, cfg, opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]string
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && path != "/openapi.json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

func TestSubmit_AppendsFlattenedRow(t *testing.T) {
	appender := &recordingAppender{}
	srv := newTestServer(t, appender, Config{})

	body := `{"personalprofile":{"firstName":"Ada","age":"<25","city":null},"goals":{"goals":[{"name":"car"}]}}`
	rec, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Form data submitted successfully", payload["message"])
	require.Len(t, appender.rows, 1)
	assert.Equal(t, submission.Row{
		"personalprofile.firstName: Ada",
		"personalprofile.age: <25",
		"personalprofile.city: NA",
		`goals.goals: [{"name":"car"}]`,
	}, appender.rows[0])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestSubmit_RejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json": `{"a":`,
		"array":    `[1,2]`,
		"scalar":   `"text"`,
		"empty":    `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			appender := &recordingAppender{}
			srv := newTestServer(t, appender, Config{})

			rec, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid form data", payload["error"])
			assert.NotEmpty(t, payload["details"])
			assert.Empty(t, appender.rows)
		})
	}
}

func TestSubmit_MapsStoreFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "rejected", err: submission.NewError(submission.CodeStoreRejected, "sheets rejected row"), status: http.StatusBadGateway},
		{name: "unavailable", err: submission.NewError(submission.CodeStoreUnavailable, "sheets unavailable"), status: http.StatusServiceUnavailable},
		{name: "unclassified", err: errors.New("dial tcp: refused"), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &recordingAppender{err: tc.err}, Config{})
			rec, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", `{"a":{"b":"c"}}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "Failed to submit form data", payload["error"])
			assert.NotEmpty(t, payload["details"])
		})
	}
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, []byte) error { return errors.New("boom") }

func TestSubmit_UnknownErrorIs500(t *testing.T) {
	srv, err := New(context.Background(), failingSubmitter{}, Config{})
	require.NoError(t, err)
	rec, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", `{"a":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", payload["details"])
}

func TestSubmit_OtherMethodsAreNotAllowed(t *testing.T) {
	srv := newTestServer(t, &recordingAppender{}, Config{})
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec, payload := do(t, srv.Handler(), method, "/api/submit", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "Method not allowed", payload["error"], method)
	}
}

func TestSubmit_BodyLimit(t *testing.T) {
	appender := &recordingAppender{}
	srv := newTestServer(t, appender, Config{BodyLimit: 32})
	body := `{"a":{"b":"` + strings.Repeat("x", 64) + `"}}`

	rec, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Invalid form data", payload["error"])
	assert.Empty(t, appender.rows)
}

func TestSubmit_RateLimitedPerClient(t *testing.T) {
	srv := newTestServer(t, &recordingAppender{}, Config{RequestsPerSecond: 0.001, Burst: 1})

	first, _ := do(t, srv.Handler(), http.MethodPost, "/api/submit", `{"a":{"b":1}}`)
	second, payload := do(t, srv.Handler(), http.MethodPost, "/api/submit", `{"a":{"b":1}}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "Too many requests", payload["error"])
}

func TestAuxiliaryRoutes(t *testing.T) {
	metrics := telemetry.NewMetrics()
	appender := &recordingAppender{}
	pipeline, err := submission.NewPipeline(appender, submission.Target{StoreID: "sheet"}, submission.WithObserver(metrics))
	require.NoError(t, err)
	srv, err := New(context.Background(), pipeline, Config{}, WithMetrics(metrics))
	require.NoError(t, err)

	rec, _ := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/openapi.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"submitForm"`)

	do(t, srv.Handler(), http.MethodPost, "/api/submit", `{"a":{"b":1}}`)
	rec, _ = do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `formsheet_submissions_total{code="OK"} 1`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, &recordingAppender{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, &recordingAppender{}, Config{ShutdownGrace: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestContract_RejectsNonObjects(t *testing.T) {
	contract, err := LoadContract(context.Background())
	require.NoError(t, err)

	assert.NoError(t, contract.ValidateSubmission([]byte(`{"a":{"b":[1,2]}}`)))
	err = contract.ValidateSubmission([]byte(`[{"a":1}]`))
	assert.True(t, errors.Is(err, submission.ErrMalformedInput))
}
