package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kode4food/runstream/internal/assert"
	"github.com/kode4food/runstream/internal/auth"
	"github.com/kode4food/runstream/internal/server"
	"github.com/kode4food/runstream/pkg/api"
)

type (
	mockExecutor struct {
		mu    sync.Mutex
		err   error
		calls []execCall
	}

	execCall struct {
		flowID api.FlowID
		runID  string
	}

	testRelay struct {
		*assert.Wrapper
		Hub      *server.Hub
		Server   *server.Server
		Executor *mockExecutor
		HTTP     *httptest.Server
	}
)

const (
	wsReadTimeout = 2 * time.Second
	quietPeriod   = 100 * time.Millisecond
)

func (m *mockExecutor) Execute(
	_ context.Context, flowID api.FlowID, runID string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{flowID: flowID, runID: runID})
	return m.err
}

func (m *mockExecutor) Calls() []execCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]execCall(nil), m.calls...)
}

func withRelay(t *testing.T, fn func(*testRelay), opts ...server.Option) {
	t.Helper()
	hub := server.NewHub()
	exec := &mockExecutor{}
	srv := server.NewServer(hub, exec, opts...)
	ts := httptest.NewServer(srv.SetupRoutes())

	env := &testRelay{
		Wrapper:  assert.New(t),
		Hub:      hub,
		Server:   srv,
		Executor: exec,
		HTTP:     ts,
	}
	defer func() {
		srv.CloseWebSockets()
		ts.Close()
		hub.Close()
	}()
	fn(env)
}

func (e *testRelay) Dial() *websocket.Conn {
	e.Helper()
	url := "ws" + strings.TrimPrefix(e.HTTP.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	e.Require.NoError(err)
	e.Eventually(func() bool {
		return e.Server.SocketCount() > 0
	}, wsReadTimeout, "socket never registered")
	return conn
}

func (e *testRelay) Post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path,
		bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.Server.SetupRoutes().ServeHTTP(w, req)
	return w
}

func readMessage(t *testing.T, conn *websocket.Conn) *api.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	msg, err := api.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		env.Server.SetupRoutes().ServeHTTP(w, req)

		env.Equal(http.StatusOK, w.Code)
		var res api.HealthResponse
		env.NoError(json.Unmarshal(w.Body.Bytes(), &res))
		env.Equal("runstream-relay", res.Service)
		env.Equal("healthy", res.Status)
		env.Equal(0, res.Sockets)

		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		w = httptest.NewRecorder()
		env.Server.SetupRoutes().ServeHTTP(w, req)
		env.NoError(json.Unmarshal(w.Body.Bytes(), &res))
		env.Equal(1, res.Sockets)
	})
}

func TestCORSPreflight(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		req := httptest.NewRequest(http.MethodOptions, "/flows/42/execute", nil)
		w := httptest.NewRecorder()
		env.Server.SetupRoutes().ServeHTTP(w, req)

		env.Equal(http.StatusOK, w.Code)
		env.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestExecuteEndpoint(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		w := env.Post("/flows/42/execute", `{"runId":"run-1"}`)
		env.Equal(http.StatusAccepted, w.Code)
		env.Contains(w.Body.String(), "flow 42")
		env.Contains(w.Body.String(), "run-1")

		w = env.Post("/flows/43/execute", "")
		env.Equal(http.StatusAccepted, w.Code)

		calls := env.Executor.Calls()
		env.Len(calls, 2)
		env.Equal(api.FlowID("42"), calls[0].flowID)
		env.Equal("run-1", calls[0].runID)
		env.Equal(api.FlowID("43"), calls[1].flowID)
		env.NotEmpty(calls[1].runID)
	})
}

func TestExecuteErrors(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		w := env.Post("/flows/42/execute", `{"runId":`)
		env.Equal(http.StatusBadRequest, w.Code)
		env.Contains(w.Body.String(), server.ErrInvalidJSON.Error())

		env.Executor.err = server.ErrAlreadyRunning
		w = env.Post("/flows/42/execute", "")
		env.Equal(http.StatusConflict, w.Code)

		env.Executor.err = errors.New("boom")
		w = env.Post("/flows/42/execute", "")
		env.Equal(http.StatusInternalServerError, w.Code)

		var res api.ErrorResponse
		env.NoError(json.Unmarshal(w.Body.Bytes(), &res))
		env.Contains(res.Error, "boom")
	})
}

func TestEventsBroadcast(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		a := env.Dial()
		defer func() { _ = a.Close() }()
		b := env.Dial()
		defer func() { _ = b.Close() }()
		env.Eventually(func() bool {
			return env.Server.SocketCount() == 2
		}, wsReadTimeout, "second socket never registered")

		w := env.Post("/flows/42/events",
			`{"status":"running","progress":25,"message":"quarter"}`)
		env.Equal(http.StatusAccepted, w.Code)

		for _, conn := range []*websocket.Conn{a, b} {
			msg := readMessage(t, conn)
			upd := msg.UpdateFor("42")
			env.Require.NotNil(upd)
			env.Equal(25, *upd.Progress)
			env.Equal("quarter", *upd.Message)
		}
	})
}

func TestEventsErrors(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		w := env.Post("/flows/42/events", `not json`)
		env.Equal(http.StatusBadRequest, w.Code)

		w = env.Post("/flows/42/events", `{"flowId":"7"}`)
		env.Equal(http.StatusBadRequest, w.Code)
		env.Contains(w.Body.String(), server.ErrFlowMismatch.Error())
	})
}

func TestSocketAuthRequired(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		env.Hub.Publish(api.NewUpdate("42").WithProgress(10))
		_ = conn.SetReadDeadline(time.Now().Add(quietPeriod))
		_, _, err := conn.ReadMessage()
		env.Error(err, "unauthenticated socket received an update")
	}, server.WithTokens(auth.Static("secret")))
}

func TestSocketAuthAccepted(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		env.NoError(conn.WriteJSON(api.NewAuthMessage("secret", "user-1")))

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					env.Hub.Publish(api.NewUpdate("42").WithProgress(10))
				}
			}
		}()

		msg := readMessage(t, conn)
		env.NotNil(msg.UpdateFor("42"))
	}, server.WithTokens(auth.Static("secret")))
}

func TestSocketAuthRejected(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		env.NoError(conn.WriteJSON(api.NewAuthMessage("wrong", "user-1")))
		msg := readMessage(t, conn)
		env.Equal(api.TypeError, msg.Type)
		env.Equal("authentication failed", msg.Error.Message)

		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, _, err := conn.ReadMessage()
		env.Error(err)
		env.Eventually(func() bool {
			return env.Server.SocketCount() == 0
		}, wsReadTimeout, "rejected socket never unregistered")
	}, server.WithTokens(auth.Static("secret")))
}

func TestSocketIgnoresGarbage(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		env.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
		env.NoError(conn.WriteJSON(api.NewErrorMessage("client trouble")))

		env.Hub.Publish(api.NewUpdate("42").WithProgress(10))
		msg := readMessage(t, conn)
		env.Equal(api.TypeExecutionUpdate, msg.Type)
	})
}

func TestCloseWebSockets(t *testing.T) {
	withRelay(t, func(env *testRelay) {
		conn := env.Dial()
		defer func() { _ = conn.Close() }()

		env.Server.CloseWebSockets()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, _, err := conn.ReadMessage()
		env.Error(err)
		env.Eventually(func() bool {
			return env.Server.SocketCount() == 0
		}, wsReadTimeout, "socket never unregistered")
	})
}
