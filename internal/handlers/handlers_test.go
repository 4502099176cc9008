package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/gateway"
	"casino-miniapp/internal/gateway/gatewaytest"
	"casino-miniapp/internal/handlers"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/reels"
	"casino-miniapp/internal/services"
	"casino-miniapp/internal/session"
	"casino-miniapp/internal/telegram"
)

const botToken = "42:HANDLER-TEST"

type env struct {
	router    *gin.Engine
	srv       *httptest.Server
	gw        *gatewaytest.Fake
	validator *telegram.Validator
	sessions  *services.SessionManager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	redisService := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisService.Close() })
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test", JWTExpiry: time.Hour})

	gw := gatewaytest.New()
	gw.SpinResult = &models.SpinResult{
		Symbols:  []string{"🍒", "🍒", "🍒"},
		Winnings: 100,
		Standing: models.Standing{Balance: 10090, XP: 30, Level: 1},
	}
	gw.FlipResult = &models.CoinFlipResult{
		Result:   models.CoinTails,
		Message:  "better luck next time",
		Standing: models.Standing{Balance: 9990, XP: 5, Level: 1},
	}

	hub := handlers.NewWebSocketHub(handlers.DefaultHubConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	reelCfg := reels.DefaultConfig()
	reelCfg.SpinBase = 20 * time.Millisecond
	reelCfg.Stagger = 5 * time.Millisecond
	reelCfg.SettleDuration = 20 * time.Millisecond
	reelCfg.FrameInterval = 2 * time.Millisecond

	sessions := services.NewSessionManager(gw, hub,
		session.WithReelConfig(reelCfg),
		session.WithFlipDuration(5*time.Millisecond),
	)
	t.Cleanup(sessions.CloseAll)

	validator := telegram.NewValidator(botToken, time.Hour)
	router := handlers.NewRouter(handlers.RouterConfig{
		Redis:           redisService,
		JWT:             jwtService,
		Auth:            handlers.NewAuthHandler(redisService, jwtService, sessions, validator),
		Game:            handlers.NewGameHandler(sessions, redisService),
		User:            handlers.NewUserHandler(redisService, sessions),
		WebSocket:       handlers.NewWebSocketHandler(hub, sessions, redisService),
		ActionRateLimit: 100,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{router: router, srv: srv, gw: gw, validator: validator, sessions: sessions}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (e *env) initData(userID int64) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":`+strconv.FormatInt(userID, 10)+`,"first_name":"Ada","username":"ada"}`)
	values.Set("hash", e.validator.Sign(values))
	return values.Encode()
}

func (e *env) login(t *testing.T, userID int64) string {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "/auth/telegram", "", gin.H{"init_data": e.initData(userID)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthenticateOpensSession(t *testing.T) {
	e := newEnv(t)
	w, body := e.do(t, http.MethodPost, "/auth/telegram", "", gin.H{"init_data": e.initData(7)})
	require.Equal(t, http.StatusOK, w.Code)

	view := body["view"].(map[string]any)
	assert.Equal(t, true, view["identified"])
	assert.Equal(t, true, view["loaded"])
	assert.Equal(t, float64(10000), view["state"].(map[string]any)["balance"])
	assert.Equal(t, 1, e.gw.Calls(gateway.OpGetState))
}

func TestAuthenticateWithoutIdentity(t *testing.T) {
	e := newEnv(t)
	w, body := e.do(t, http.MethodPost, "/auth/telegram", "", gin.H{"init_data": "user=%7B%7D&hash=00"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	notice := body["notice"].(map[string]any)
	assert.Equal(t, string(session.NoticeMissingIdentity), notice["kind"])
	assert.Zero(t, e.gw.TotalCalls())
}

func TestSpinEndpoint(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)

	w, body := e.do(t, http.MethodPost, "/api/spin", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := body["result"].(map[string]any)
	assert.Equal(t, float64(100), result["winnings"])
	view := body["view"].(map[string]any)
	assert.Equal(t, float64(10090), view["state"].(map[string]any)["balance"])
}

func TestActionErrorsMapToStatus(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)

	e.gw.SetErr(gateway.OpSpin, &gateway.RemoteError{Op: gateway.OpSpin, Status: 400, Message: "not enough coins"})
	w, body := e.do(t, http.MethodPost, "/api/spin", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "not enough coins", body["error"])

	e.gw.SetErr(gateway.OpCoinFlip, &gateway.TransportError{Op: gateway.OpCoinFlip, Err: errors.New("dial tcp: refused")})
	w, body = e.do(t, http.MethodPost, "/api/coin_flip", token, gin.H{"choice": "heads"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(session.NoticeTransportFailure), body["notice"].(map[string]any)["kind"])

	w, _ = e.do(t, http.MethodPost, "/api/coin_flip", token, gin.H{"choice": "edge"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, e.gw.Calls(gateway.OpCoinFlip))
}

func TestCoinFlipEndpoint(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)

	w, body := e.do(t, http.MethodPost, "/api/coin_flip", token, gin.H{"choice": "heads"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "tails", body["result"].(map[string]any)["result"])
}

func TestBonusOnCooldown(t *testing.T) {
	e := newEnv(t)
	claimed := time.Now().Add(-time.Hour)
	e.gw.SetState(models.UserState{Balance: 100, Level: 1, LastDailyBonusClaim: &claimed})
	token := e.login(t, 7)

	w, body := e.do(t, http.MethodPost, "/api/bonus/daily", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "cooldown")
	assert.Zero(t, e.gw.Calls(gateway.OpDailyBonus))

	e.gw.Claim = &models.BonusClaim{Amount: 100}
	w, _ = e.do(t, http.MethodPost, "/api/bonus/quick", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.gw.Calls(gateway.OpQuickBonus))
}

func TestLeaderboardIsCached(t *testing.T) {
	e := newEnv(t)
	e.gw.Leaderboard = []models.LeaderboardEntry{{Username: "a", Level: 2, XP: 200}, {Username: "b", Level: 4, XP: 900}}
	token := e.login(t, 7)

	w, body := e.do(t, http.MethodGet, "/api/leaderboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["cached"])
	first := body["leaderboard"].([]any)[0].(map[string]any)
	assert.Equal(t, "b", first["username"])

	w, body = e.do(t, http.MethodGet, "/api/leaderboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, 1, e.gw.Calls(gateway.OpLeaderboard))
}

func TestSessionSurvivesRestart(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)
	e.sessions.CloseAll()

	w, _ := e.do(t, http.MethodGet, "/api/state", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.sessions.Count())
}

func TestMeAndLogout(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)

	w, body := e.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada", body["user"].(map[string]any)["username"])

	w, _ = e.do(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/state", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoggedOutTokenRejectedWhileOtherDevicePlays(t *testing.T) {
	e := newEnv(t)
	phone := e.login(t, 7)
	desktop := e.login(t, 7)

	w, _ := e.do(t, http.MethodPost, "/api/logout", phone, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/state", desktop, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, e.sessions.Count())

	w, _ = e.do(t, http.MethodGet, "/api/state", phone, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/spin", phone, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, e.gw.Calls(gateway.OpSpin))
}

func TestWebSocketStreamsSpin(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, 7)

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first session.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, session.EventType("view"), first.Type)

	require.NoError(t, conn.WriteJSON(handlers.ClientMessage{Type: "unlock_audio"}))
	require.NoError(t, conn.WriteJSON(handlers.ClientMessage{Type: "spin"}))

	seen := map[session.EventType]int{}
	for seen[session.EventSpinResult] == 0 {
		var ev session.Event
		require.NoError(t, conn.ReadJSON(&ev))
		seen[ev.Type]++
	}
	assert.Equal(t, 3, seen[session.EventReelStopped])
	assert.Positive(t, seen[session.EventCue])
	assert.Positive(t, seen[session.EventReelFrame])
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w, body := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}
