// File: internal/handlers/ws_handler_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/weichi/go-chatroom/internal/domain"
	"github.com/weichi/go-chatroom/internal/middleware"
	messagerepo "github.com/weichi/go-chatroom/internal/repository/message"
	userrepo "github.com/weichi/go-chatroom/internal/repository/user"
	"github.com/weichi/go-chatroom/internal/services"
	"github.com/weichi/go-chatroom/internal/services/chat"
	"github.com/weichi/go-chatroom/internal/services/user_services"
)

const readTimeout = 2 * time.Second

type testServer struct {
	httpServer *httptest.Server
	auth       *user_services.AuthService
}

// newChatServer wires the real stack against an in-memory database: gorm
// repositories, auth service, room service with a running write queue, and
// the HTTP/WebSocket routes.
func newChatServer(t *testing.T, cfg chat.Config) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.ChatMessage{}))

	logger := &services.NoOpLogger{}
	users := userrepo.NewGormUserRepository(db)
	messages := messagerepo.NewMessageRepository(db)
	auth := user_services.NewAuthService(users, "integration-test-secret", logger)

	registry := chat.NewSessionRegistry()
	router := chat.NewRouter(registry)
	writer := chat.NewQueuedWriter(messages, cfg.QueueSize, logger)
	room, err := chat.NewRoomService(registry, router, writer, messages, cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go writer.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-writer.Done()
	})

	wsHandler := NewWSHandler(auth, room, cfg.SendBuffer)
	messageHandler := NewMessageHandler(room)
	requireAuth := middleware.NewJWTMiddleware(auth)

	r := mux.NewRouter()
	r.HandleFunc("/ws", wsHandler.Serve)
	r.Handle("/api/messages/{id:[0-9]+}",
		requireAuth(http.HandlerFunc(messageHandler.Delete))).Methods(http.MethodDelete)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{httpServer: srv, auth: auth}
}

func (s *testServer) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	_, err := s.auth.Register(ctx, username, "Password1", "Password1")
	require.NoError(t, err)
	token, err := s.auth.Login(ctx, username, "Password1")
	require.NoError(t, err)
	return token
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	return decoded
}

// expectClose reads until the peer closes and returns the close code.
func expectClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		closeErr, ok := err.(*websocket.CloseError)
		require.True(t, ok, "expected a close frame, got: %v", err)
		return closeErr.Code
	}
}

func memberList(frame map[string]interface{}) []string {
	raw, _ := frame["members"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.(string))
	}
	return out
}

func TestWSRejectsMissingToken(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	conn := srv.dial(t, "")
	assert.Equal(t, chat.CloseInvalidToken, expectClose(t, conn))
}

func TestWSRejectsInvalidToken(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	conn := srv.dial(t, "not-a-real-token")
	assert.Equal(t, chat.CloseInvalidToken, expectClose(t, conn))
}

func TestChatSessionEndToEnd(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	token := srv.registerAndLogin(t, "alice")

	conn := srv.dial(t, token)

	history := readFrame(t, conn)
	assert.Equal(t, "history", history["type"])
	assert.Empty(t, history["messages"])

	members := readFrame(t, conn)
	assert.Equal(t, "member_list_update", members["type"])
	assert.Equal(t, []string{"alice"}, memberList(members))

	joined := readFrame(t, conn)
	assert.Equal(t, "system", joined["type"])
	assert.Contains(t, joined["message"], "alice joined")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	chatFrame := readFrame(t, conn)
	assert.Equal(t, "chat", chatFrame["type"])
	assert.Equal(t, "alice", chatFrame["nickname"])
	assert.Equal(t, "hello", chatFrame["message"])
	// The join announcement was recorded first and holds id 1.
	assert.Equal(t, float64(2), chatFrame["id"])
}

func TestDuplicateLoginEvictsOldConnection(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	token := srv.registerAndLogin(t, "alice")

	first := srv.dial(t, token)
	for i := 0; i < 3; i++ {
		readFrame(t, first) // history, member list, joined
	}

	second := srv.dial(t, token)

	// The old connection is told exactly why it is going away.
	assert.Equal(t, chat.CloseDuplicateLogin, expectClose(t, first))

	history := readFrame(t, second)
	assert.Equal(t, "history", history["type"])

	// Membership is size-stable and no second join is announced.
	members := readFrame(t, second)
	assert.Equal(t, "member_list_update", members["type"])
	assert.Equal(t, []string{"alice"}, memberList(members))

	require.NoError(t, second.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := second.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestOversizedMessageGetsPrivateWarning(t *testing.T) {
	cfg := chat.DefaultConfig()
	cfg.MaxMessageChars = 10
	srv := newChatServer(t, cfg)
	token := srv.registerAndLogin(t, "alice")

	conn := srv.dial(t, token)
	for i := 0; i < 3; i++ {
		readFrame(t, conn)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("this is far too long")))

	warning := readFrame(t, conn)
	assert.Equal(t, "system", warning["type"])
	assert.Contains(t, warning["message"], "rejected")

	// The rejected text must not surface in history on reconnect.
	require.NoError(t, conn.Close())
	fresh := srv.dial(t, token)
	history := readFrame(t, fresh)
	payload, err := json.Marshal(history)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "far too long")
}

func TestMediaFrameRoundtrip(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	token := srv.registerAndLogin(t, "alice")

	conn := srv.dial(t, token)
	for i := 0; i < 3; i++ {
		readFrame(t, conn)
	}

	frame := `{"type":"file","imageData":"/static/uploads/report.pdf","filename":"report.pdf"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	echoed := readFrame(t, conn)
	assert.Equal(t, "file", echoed["type"])
	assert.Equal(t, "alice", echoed["nickname"])
	assert.Equal(t, "/static/uploads/report.pdf", echoed["imageData"])
	assert.Equal(t, "report.pdf", echoed["filename"])
}

func TestDeleteOverHTTPBroadcastsRemoval(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	token := srv.registerAndLogin(t, "alice")

	conn := srv.dial(t, token)
	for i := 0; i < 3; i++ {
		readFrame(t, conn)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("delete me")))
	chatFrame := readFrame(t, conn)
	id := int(chatFrame["id"].(float64))
	require.NotZero(t, id)

	req, err := http.NewRequest(http.MethodDelete,
		srv.httpServer.URL+"/api/messages/"+strconv.Itoa(id), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.httpServer.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deleteFrame := readFrame(t, conn)
	assert.Equal(t, "delete", deleteFrame["type"])
	assert.Equal(t, float64(id), deleteFrame["id"])
}

func TestDeleteRequiresAuth(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())

	req, err := http.NewRequest(http.MethodDelete, srv.httpServer.URL+"/api/messages/1", nil)
	require.NoError(t, err)
	resp, err := srv.httpServer.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteByNonAuthorIsForbidden(t *testing.T) {
	srv := newChatServer(t, chat.DefaultConfig())
	aliceToken := srv.registerAndLogin(t, "alice")
	bobToken := srv.registerAndLogin(t, "bob")

	conn := srv.dial(t, aliceToken)
	for i := 0; i < 3; i++ {
		readFrame(t, conn)
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("mine")))
	chatFrame := readFrame(t, conn)
	id := int(chatFrame["id"].(float64))

	req, err := http.NewRequest(http.MethodDelete,
		srv.httpServer.URL+"/api/messages/"+strconv.Itoa(id), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bobToken)

	resp, err := srv.httpServer.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "author")
}
