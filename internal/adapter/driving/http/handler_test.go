package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Wyydra/callbridge/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/callbridge/internal/adapter/driven/provisioning/memory"
	"github.com/Wyydra/callbridge/internal/core/codec"
	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/Wyydra/callbridge/internal/core/port"
	"github.com/Wyydra/callbridge/internal/core/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type failingProvisioner struct {
	err error
}

func (p failingProvisioner) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.MeetingCredentials, error) {
	return nil, p.err
}

func newTestServer(t *testing.T, p port.Provisioner) (*httptest.Server, *service.Router) {
	t.Helper()

	hub := ws.NewHub()
	go hub.Run()

	router := service.NewRouter(hub)
	h := NewHandler(router, service.NewMeetingService(p, ""), hub, DefaultOptions())

	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Stop)
	return srv, router
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ domain.EventType, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := codec.Decode(frame)
	require.NoError(t, err)
	return ev
}

func waitStats(t *testing.T, router *service.Router, want domain.Stats) {
	t.Helper()
	require.Eventually(t, func() bool { return router.Stats() == want }, 2*time.Second, 10*time.Millisecond)
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestCallLifecycleOverWebSocket(t *testing.T) {
	srv, router := newTestServer(t, memory.NewProvisioner("us-east-1"))

	agent := dial(t, srv)
	customer := dial(t, srv)
	waitStats(t, router, domain.Stats{TotalConnections: 2})

	send(t, agent, domain.EventRegister, map[string]string{"type": "agent", "userId": "a1"})
	send(t, customer, domain.EventRegister, map[string]string{"type": "customer", "userId": "c1"})
	waitStats(t, router, domain.Stats{TotalConnections: 2, Agents: 1, Customers: 1})

	req := domain.CallRequest{ID: "call1", CustomerName: "Ann", MeetingID: "m1", Timestamp: "2024-01-01T00:00:00.000Z"}
	send(t, customer, domain.EventCallRequest, req)
	assert.Equal(t, req, readEvent(t, agent))

	status, body := get(t, srv.URL+"/api/calls")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", gjson.GetBytes(body, "0.status").String())
	assert.Equal(t, "Ann", gjson.GetBytes(body, "0.customerName").String())

	resp := domain.CallResponse{ID: "call1", Accepted: true, AgentID: "a1", MeetingID: "m1"}
	send(t, agent, domain.EventCallResponse, resp)
	assert.Equal(t, resp, readEvent(t, customer))

	send(t, agent, domain.EventAgentJoined, domain.AgentJoined{AgentID: "a1", MeetingID: "m1"})
	assert.Equal(t, domain.AgentJoined{AgentID: "a1", MeetingID: "m1"}, readEvent(t, customer))

	send(t, customer, domain.EventCustomerJoined, domain.CustomerJoined{CustomerID: "c1", MeetingID: "m1"})
	assert.Equal(t, domain.CustomerJoined{CustomerID: "c1", MeetingID: "m1"}, readEvent(t, agent))

	require.NoError(t, customer.Close())
	assert.Equal(t, domain.CallEnded{CallID: "call1", MeetingID: "m1", Reason: domain.EndReasonDisconnection}, readEvent(t, agent))
	waitStats(t, router, domain.Stats{TotalConnections: 1, Agents: 1})
}

func TestCallEndedByParticipant(t *testing.T) {
	srv, router := newTestServer(t, memory.NewProvisioner("us-east-1"))

	agent := dial(t, srv)
	customer := dial(t, srv)
	send(t, agent, domain.EventRegister, map[string]string{"type": "agent", "userId": "a1"})
	send(t, customer, domain.EventRegister, map[string]string{"type": "customer", "userId": "c1"})
	waitStats(t, router, domain.Stats{TotalConnections: 2, Agents: 1, Customers: 1})

	send(t, customer, domain.EventCallRequest, domain.CallRequest{ID: "call1", MeetingID: "m1"})
	readEvent(t, agent)
	send(t, agent, domain.EventCallResponse, domain.CallResponse{ID: "call1", Accepted: true, AgentID: "a1", MeetingID: "m1"})
	readEvent(t, customer)

	send(t, agent, domain.EventCallEnded, domain.CallEnded{CallID: "call1", MeetingID: "m1"})
	assert.Equal(t, domain.CallEnded{CallID: "call1", MeetingID: "m1"}, readEvent(t, customer))
	waitStats(t, router, domain.Stats{TotalConnections: 2, Agents: 1, Customers: 1})
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	srv, router := newTestServer(t, memory.NewProvisioner("us-east-1"))

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, "typing", map[string]string{})
	send(t, conn, domain.EventRegister, map[string]string{"type": "agent", "userId": "a1"})

	waitStats(t, router, domain.Stats{TotalConnections: 1, Agents: 1})
}

func TestStatsAndHealth(t *testing.T) {
	srv, router := newTestServer(t, memory.NewProvisioner("us-east-1"))

	conn := dial(t, srv)
	send(t, conn, domain.EventRegister, map[string]string{"type": "customer", "userId": "c1"})
	waitStats(t, router, domain.Stats{TotalConnections: 1, Customers: 1})

	status, body := get(t, srv.URL+"/api/socket/stats")
	require.Equal(t, http.StatusOK, status)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, domain.Stats{TotalConnections: 1, Customers: 1}, stats)
	assert.True(t, gjson.GetBytes(body, "activeCalls").Exists())

	status, body = get(t, srv.URL+"/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", gjson.GetBytes(body, "status").String())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "socket.totalConnections").Int())
	_, err := time.Parse(isoTimestamp, gjson.GetBytes(body, "timestamp").String())
	assert.NoError(t, err)
}

func TestGetMeeting(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewProvisioner("us-east-1"))

	status, body := get(t, srv.URL+"/api/meeting")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "demo-meeting", gjson.GetBytes(body, "Meeting.ExternalMeetingId").String())
	assert.Regexp(t, `^customer-`, gjson.GetBytes(body, "Attendee.ExternalUserId").String())
	assert.True(t, gjson.GetBytes(body, "timestamp").Exists())

	status, body = get(t, srv.URL+"/api/meeting?role=agent&meetingId=m42")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "m42", gjson.GetBytes(body, "Meeting.ExternalMeetingId").String())
	assert.Regexp(t, `^agent-`, gjson.GetBytes(body, "Attendee.ExternalUserId").String())

	status, body = get(t, srv.URL+"/api/meeting?role=admin")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid role", gjson.GetBytes(body, "error").String())
}

func TestGetMeetingProviderFailure(t *testing.T) {
	perr := &domain.ProvisionError{Stage: domain.StageCreateAttendee, Err: errors.New("limit exceeded")}
	srv, _ := newTestServer(t, failingProvisioner{err: perr})

	status, body := get(t, srv.URL+"/api/meeting?role=agent")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to create attendee", gjson.GetBytes(body, "error").String())
	assert.Equal(t, "limit exceeded", gjson.GetBytes(body, "details").String())

	srv, _ = newTestServer(t, failingProvisioner{err: errors.New("boom")})
	status, body = get(t, srv.URL+"/api/meeting")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", gjson.GetBytes(body, "error").String())
	assert.Equal(t, "boom", gjson.GetBytes(body, "message").String())
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewProvisioner("us-east-1"))

	status, body := get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Not Found"}`, string(body))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, memory.NewProvisioner("us-east-1"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/meeting", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, []string{"*", "http://localhost:3000"}, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/socket", nil)

	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, originChecker([]string{"*"})(req))
	assert.False(t, originChecker([]string{"https://app.example"})(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, originChecker([]string{"https://app.example"})(req))

	req.Header.Del("Origin")
	assert.True(t, originChecker([]string{"https://app.example"})(req))
}
