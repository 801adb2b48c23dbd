package api

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/posthog/posthog-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furisto/switchboard/api/go/client"
	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/backend/agent"
	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/backend/stream"
)

var fixedNow = time.UnixMilli(1700000000000)

type chatCall struct {
	query          string
	conversationID string
}

type fakeAgent struct {
	mu     sync.Mutex
	events []*v1.AgentResponse
	err    error
	open   bool
	calls  []chatCall
	cancel chan struct{}
}

func (f *fakeAgent) StreamAgentResponse(ctx context.Context, query, conversationID string) *stream.Stream {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{query: query, conversationID: conversationID})
	f.mu.Unlock()

	opts := []stream.Option{stream.WithClock(func() time.Time { return fixedNow })}
	if f.cancel != nil {
		opts = append(opts, stream.WithCancel(func() { close(f.cancel) }))
	}

	s := stream.New(opts...)
	for _, event := range f.events {
		s.Publish(event)
	}
	switch {
	case f.open:
	case f.err != nil:
		s.Fail(f.err)
	default:
		s.End()
	}
	return s
}

type fakeChecker struct {
	result health.Result
}

func (f *fakeAgent) recorded() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f fakeChecker) Check(context.Context) health.Result {
	return f.result
}

func response(event v1.Event) *v1.AgentResponse {
	return &v1.AgentResponse{Event: event, Timestamp: fixedNow.UnixMilli()}
}

func postChat(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readLines(t *testing.T, r io.Reader) []string {
	t.Helper()

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func assertJSONLines(t *testing.T, want, got []string) {
	t.Helper()

	require.Len(t, got, len(want), "got lines:\n%s", strings.Join(got, "\n"))
	for i := range want {
		assert.JSONEq(t, want[i], got[i], "line %d", i)
	}
}

func TestChat_StreamsEventsAsNDJSON(t *testing.T) {
	fake := &fakeAgent{events: []*v1.AgentResponse{
		response(v1.EventThought{Text: "thinking"}),
		response(v1.EventToolCall{ToolCall: v1.ToolCall{ToolName: "search", ToolInput: "{}", ToolOutput: "[]", Status: "completed"}}),
		response(v1.EventChunk{Text: "Hi"}),
		response(v1.EventDone{Done: true}),
	}}
	server := httptest.NewServer(New(fake, fakeChecker{}).Handler())
	defer server.Close()

	resp := postChat(t, server.URL, `{"query":"hello","conversation_id":"conv-1"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, stream.ContentType, resp.Header.Get("Content-Type"))
	assertJSONLines(t, []string{
		`{"event":{"thought":"thinking"},"timestamp":1700000000000}`,
		`{"event":{"tool_call":{"tool_name":"search","tool_input":"{}","tool_output":"[]","status":"completed"}},"timestamp":1700000000000}`,
		`{"event":{"chunk":"Hi"},"timestamp":1700000000000}`,
		`{"event":{"done":true},"timestamp":1700000000000}`,
	}, readLines(t, resp.Body))

	if diff := cmp.Diff([]chatCall{{query: "hello", conversationID: "conv-1"}}, fake.recorded(), cmp.AllowUnexported(chatCall{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestChat_TransportFailureEndsWithErrorRecord(t *testing.T) {
	fake := &fakeAgent{
		events: []*v1.AgentResponse{response(v1.EventChunk{Text: "par"})},
		err:    errors.New("unavailable: connection refused"),
	}
	server := httptest.NewServer(New(fake, fakeChecker{}).Handler())
	defer server.Close()

	resp := postChat(t, server.URL, `{"query":"hello"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertJSONLines(t, []string{
		`{"event":{"chunk":"par"},"timestamp":1700000000000}`,
		`{"event":{"error":"unavailable: connection refused"},"timestamp":1700000000000}`,
	}, readLines(t, resp.Body))
}

func TestChat_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "empty query",
			body:       `{"query":""}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"query must not be empty"}`,
		},
		{
			name:       "blank query",
			body:       `{"query":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"query must not be empty"}`,
		},
		{
			name:       "malformed body",
			body:       `{"query":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAgent{}
			server := httptest.NewServer(New(fake, fakeChecker{}).Handler())
			defer server.Close()

			resp := postChat(t, server.URL, tt.body)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
			assert.Empty(t, fake.recorded())
		})
	}
}

func TestChat_ClientDisconnectCancelsAgentCall(t *testing.T) {
	fake := &fakeAgent{
		events: []*v1.AgentResponse{response(v1.EventChunk{Text: "first"})},
		open:   true,
		cancel: make(chan struct{}),
	}
	server := httptest.NewServer(New(fake, fakeChecker{}).Handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/api/chat", strings.NewReader(`{"query":"hello"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":{"chunk":"first"},"timestamp":1700000000000}`, line)

	cancel()
	resp.Body.Close()

	select {
	case <-fake.cancel:
	case <-time.After(5 * time.Second):
		t.Fatal("agent call was not cancelled")
	}
}

type analyticsRecorder struct {
	mu       sync.Mutex
	captures []posthog.Capture
}

func (r *analyticsRecorder) Enqueue(msg posthog.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, msg.(posthog.Capture))
	return nil
}

func (r *analyticsRecorder) recorded() []posthog.Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captures
}

func TestChat_EmitsAnalytics(t *testing.T) {
	fake := &fakeAgent{events: []*v1.AgentResponse{
		response(v1.EventChunk{Text: "Hi"}),
		response(v1.EventDone{Done: true}),
	}}
	recorder := &analyticsRecorder{}
	server := httptest.NewServer(New(fake, fakeChecker{}, WithAnalytics(recorder)).Handler())
	defer server.Close()

	resp := postChat(t, server.URL, `{"query":"hello","conversation_id":"conv-9"}`)
	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 2 }, 5*time.Second, 10*time.Millisecond)
	captures := recorder.recorded()
	assert.Equal(t, "chat_started", captures[0].Event)
	assert.Equal(t, "chat_finished", captures[1].Event)
	assert.Equal(t, "conv-9", captures[1].Properties["conversation_id"])
	assert.Equal(t, v1.KindDone, captures[1].Properties["outcome"])
	assert.Equal(t, 2, captures[1].Properties["events"])
}

func TestHealth(t *testing.T) {
	checker := fakeChecker{result: health.Result{Healthy: false, Message: health.MessageNonOK}}
	server := httptest.NewServer(New(&fakeAgent{}, checker).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"healthy":false,"message":"API returned non-OK status"}`, string(body))
}

func TestLiveness(t *testing.T) {
	server := httptest.NewServer(New(&fakeAgent{}, fakeChecker{}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.JSONEq(t, `{"message":"ok"}`, string(body))
}

func TestMetrics_ExposeStreamCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := stream.NewMetrics(registry)
	fake := &fakeAgent{events: []*v1.AgentResponse{response(v1.EventDone{Done: true})}}
	server := httptest.NewServer(New(fake, fakeChecker{}, WithRegistry(registry), WithStreamMetrics(metrics)).Handler())
	defer server.Close()

	resp := postChat(t, server.URL, `{"query":"hello"}`)
	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	metricsResp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "agent_stream_bytes_total")
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	server := httptest.NewServer(New(&fakeAgent{}, fakeChecker{}, WithAllowedOrigins("http://localhost:3000")).Handler())
	defer server.Close()

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestChat_EndToEndWithAgentService(t *testing.T) {
	agentServer := httptest.NewServer(agent.NewServer(agent.Echo(0)).Handler())
	defer agentServer.Close()

	agentClient := client.New(client.Config{Address: agentServer.Listener.Addr().String()})
	server := httptest.NewServer(New(agentClient, fakeChecker{}).Handler())
	defer server.Close()

	resp := postChat(t, server.URL, `{"query":"hello there"}`)
	lines := readLines(t, resp.Body)

	var got []string
	for _, line := range lines {
		var record v1.AgentResponse
		require.NoError(t, record.UnmarshalJSON([]byte(line)))
		got = append(got, record.Kind())
	}

	want := []string{v1.KindThought, v1.KindToolCall, v1.KindChunk, v1.KindChunk, v1.KindDone}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakeAgent{}, fakeChecker{}, WithShutdownTimeout(time.Second)).Serve(ctx, l)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
