package tele

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

func TestTransportHTTP(t *testing.T) {
	t.Parallel()

	type Case struct {
		name        string
		mock        *helpers.MockHTTP
		expectSend  bool
		expectCheck bool
	}
	cases := []Case{
		{name: "ack",
			mock:       &helpers.MockHTTP{Body: []byte(`{"response":"ack"}`)},
			expectSend: true, expectCheck: true},
		{name: "ack-missing-response",
			mock:       &helpers.MockHTTP{Body: []byte(`{"status":"ack"}`)},
			expectSend: true, expectCheck: false},
		{name: "ack-response-not-string",
			mock:       &helpers.MockHTTP{Body: []byte(`{"response":1}`)},
			expectSend: true, expectCheck: false},
		{name: "ack-array",
			mock:       &helpers.MockHTTP{Body: []byte(`["response"]`)},
			expectSend: true, expectCheck: false},
		{name: "ack-garbage",
			mock:       &helpers.MockHTTP{Body: []byte(`<html>`)},
			expectSend: true, expectCheck: false},
		{name: "empty-body",
			mock:       &helpers.MockHTTP{},
			expectSend: true, expectCheck: true},
		{name: "status-500",
			mock:       &helpers.MockHTTP{Header: []byte("HTTP/1.0 500 Internal Server Error\r\n\r\n"), Body: []byte(`{"response":"oops"}`)},
			expectSend: true, expectCheck: false},
		{name: "status-201",
			mock:       &helpers.MockHTTP{Header: []byte("HTTP/1.0 201 Created\r\n\r\n")},
			expectSend: true, expectCheck: false},
		{name: "network-error",
			mock:       &helpers.MockHTTP{Err: errors.New("dial tcp: connection refused")},
			expectSend: false, expectCheck: false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			tr := NewTransportHTTP(log, "http://collector:8000/", time.Second, c.mock)
			ctx := context.Background()
			payload := []byte(`{"error":"x"}`)

			errSend := tr.Send(ctx, tele_api.EndpointTemperature, payload)
			errCheck := tr.SendCheck(ctx, tele_api.EndpointError, payload)
			assert.Equal(t, c.expectSend, errSend == nil, "Send err=%v", errSend)
			assert.Equal(t, c.expectCheck, errCheck == nil, "SendCheck err=%v", errCheck)

			reqs := c.mock.Requests()
			require.Len(t, reqs, 2)
			assert.Equal(t, http.MethodPost, reqs[0].Method)
			assert.Equal(t, "http://collector:8000/api/temperature", reqs[0].URL)
			assert.Equal(t, "http://collector:8000/api/error", reqs[1].URL)
			assert.Equal(t, "application/json", reqs[1].Header.Get("Content-Type"))
			assert.Equal(t, string(payload), string(reqs[1].Body))
		})
	}
}

func TestTransportHTTPFreshConnection(t *testing.T) {
	t.Parallel()

	var conns int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"pong"}`))
	}))
	srv.Config.ConnState = func(_ net.Conn, s http.ConnState) {
		if s == http.StateNew {
			atomic.AddInt32(&conns, 1)
		}
	}
	srv.Start()
	defer srv.Close()

	tr := NewTransportHTTP(log2.NewTest(t, log2.LDebug), srv.URL, time.Second, nil)
	const n = 3
	for i := 0; i < n; i++ {
		require.NoError(t, tr.SendCheck(context.Background(), tele_api.EndpointPing, nil))
	}
	assert.Equal(t, int32(n), atomic.LoadInt32(&conns), "no connection reuse")
}

func TestTransportHTTPTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewTransportHTTP(log2.NewTest(t, log2.LDebug), srv.URL, 50*time.Millisecond, nil)
	begin := time.Now()
	err := tr.Send(context.Background(), tele_api.EndpointTemperature, []byte("{}"))
	require.Error(t, err)
	assert.Less(t, int64(time.Since(begin)), int64(5*time.Second))
}
