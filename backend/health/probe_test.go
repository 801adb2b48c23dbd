package health

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_Check(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    Result
	}{
		{
			name: "healthy with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"message":"all systems go"}`)
			},
			want: Result{Healthy: true, Message: "all systems go"},
		},
		{
			name: "healthy without message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"status":"healthy"}`)
			},
			want: Result{Healthy: true, Message: MessageHealthy},
		},
		{
			name: "non ok status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, `{"message":"down"}`)
			},
			want: Result{Healthy: false, Message: MessageNonOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			got := NewProbe(server.URL, time.Second).Check(context.Background())

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProbe_RequestsHealthPath(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	NewProbe(server.URL+"/", time.Second).Check(context.Background())

	assert.Equal(t, "/health", path)
}

func TestProbe_InvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>`)
	}))
	defer server.Close()

	got := NewProbe(server.URL, time.Second).Check(context.Background())

	assert.False(t, got.Healthy)
	assert.Contains(t, got.Message, "Failed to connect to API: ")
	assert.Contains(t, got.Message, "invalid health response")
}

func TestProbe_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := l.Addr().String()
	l.Close()

	got := NewProbe("http://"+address, time.Second).Check(context.Background())

	assert.False(t, got.Healthy)
	assert.Contains(t, got.Message, "Failed to connect to API: ")
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	got := NewProbe(server.URL, 50*time.Millisecond).Check(context.Background())

	assert.False(t, got.Healthy)
	assert.Contains(t, got.Message, "context deadline exceeded")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewProbe_Defaults(t *testing.T) {
	p := NewProbe("", 0)

	assert.Equal(t, DefaultBaseURL+"/health", p.URL())
	assert.Equal(t, DefaultTimeout, p.timeout)
}
