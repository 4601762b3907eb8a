package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
	"github.com/ternarybob/stockgrader/internal/services/llm"
	"github.com/ternarybob/stockgrader/internal/services/report"
	"github.com/ternarybob/stockgrader/internal/storage/badger"
)

type fakeChat struct {
	fragments []string
	err       error
}

func (c *fakeChat) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range c.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if c.err != nil {
			yield("", c.err)
		}
	}
}

type fakeProvider struct {
	raw  string
	err  error
	chat *fakeChat
}

func (p *fakeProvider) RequestAnalysis(ctx context.Context, companyName string) (*interfaces.AnalysisResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	partial, err := llm.ParseAnalysisText(p.raw)
	if err != nil {
		return nil, err
	}
	return &interfaces.AnalysisResult{Partial: partial, Provider: "gemini", Model: "test-model"}, nil
}

func (p *fakeProvider) OpenChat(ctx context.Context, seed *models.StockAnalysis) (interfaces.ChatHandle, error) {
	return p.chat, nil
}

func (p *fakeProvider) Name() string  { return "gemini" }
func (p *fakeProvider) Model() string { return "test-model" }

type testServer struct {
	mux      *http.ServeMux
	provider *fakeProvider
	sessions *chat.Manager
	kv       interfaces.KeyValueStorage
}

const samsungJSON = "```json\n" + `{"companyName":"삼성전자","profitability":{"per":{"value":"9배","score":10}},"shareholderReturn":{"dividendYield":{"value":"2.1%","score":"3"}},"analystCommentary":"견조"}` + "\n```"

func newTestServer(t *testing.T, configure ...func(*common.Config)) *testServer {
	t.Helper()
	cfg := common.NewDefaultConfig()
	for _, fn := range configure {
		fn(cfg)
	}
	logger := arbor.NewLogger()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	provider := &fakeProvider{raw: samsungJSON, chat: &fakeChat{fragments: []string{"분기 ", "배당입니다."}}}
	sessions := chat.NewManager(&cfg.Chat, storage.TranscriptStorage(), logger)
	analysisService := analysis.NewService(provider, storage.AnalysisStorage(), sessions, &cfg.Analysis, logger)
	reports := report.NewService(&cfg.Report, logger)

	api := NewAPIHandler(analysisService, sessions, logger)
	sessionHandler := NewSessionHandler(sessions, logger)
	analysisHandler := NewAnalysisHandler(analysisService, reports, logger)
	chatHandler := NewChatHandler(sessions, logger)
	wsHandler := NewWebSocketHandler(sessions, &cfg.Chat, logger)
	pages := NewPageHandler(provider.Name(), logger)
	kvHandler := NewKVHandler(storage.KeyValueStorage(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", pages.ServePage("index.html"))
	mux.HandleFunc("/static/", pages.StaticFileHandler)
	mux.HandleFunc("/api/sessions", sessionHandler.CreateHandler)
	mux.HandleFunc("/api/sessions/{id}/messages", sessionHandler.MessagesHandler)
	mux.HandleFunc("/api/analyze", analysisHandler.AnalyzeHandler)
	mux.HandleFunc("/api/normalize", analysisHandler.NormalizeHandler)
	mux.HandleFunc("/api/analyses", analysisHandler.ListHandler)
	mux.HandleFunc("GET /api/analyses/{id}", analysisHandler.GetHandler)
	mux.HandleFunc("DELETE /api/analyses/{id}", analysisHandler.DeleteHandler)
	mux.HandleFunc("/api/analyses/{id}/export", analysisHandler.ExportHandler)
	mux.HandleFunc("/api/chat/stream", chatHandler.StreamHandler)
	mux.HandleFunc("/ws/chat", wsHandler.HandleChat)
	mux.HandleFunc("/api/kv", kvHandler.ListHandler)
	mux.HandleFunc("GET /api/kv/{key}", kvHandler.GetHandler)
	mux.HandleFunc("PUT /api/kv/{key}", kvHandler.PutHandler)
	mux.HandleFunc("DELETE /api/kv/{key}", kvHandler.DeleteHandler)
	mux.HandleFunc("/api/health", api.HealthHandler)
	mux.HandleFunc("/api/version", api.VersionHandler)

	return &testServer{mux: mux, provider: provider, sessions: sessions, kv: storage.KeyValueStorage()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (s *testServer) analyzedSession(t *testing.T) (sessionID, analysisID string) {
	t.Helper()
	_, created := s.do(t, http.MethodPost, "/api/sessions", nil)
	sessionID = created["session_id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: sessionID, CompanyName: "삼성전자"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionID, body["analysis_id"].(string)
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.True(t, strings.HasPrefix(body["session_id"].(string), "ses_"))

	rec, _ = s.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeHandler(t *testing.T) {
	s := newTestServer(t)
	sessionID, analysisID := s.analyzedSession(t)
	assert.True(t, strings.HasPrefix(analysisID, "ana_"))

	rec, body := s.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "삼성전자에 대한 분석이 완료되었습니다. 궁금한 점이 있다면 질문해주세요.", messages[0].(map[string]interface{})["text"])
	assert.Equal(t, analysisID, body["analysis_id"])
}

func TestAnalyzeHandler_Response(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/api/sessions", nil)

	rec, body := s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: created["session_id"].(string), CompanyName: "삼성전자"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "장기투자 비추천", body["grade_title"])
	analysisBody := body["analysis"].(map[string]interface{})
	assert.Equal(t, "삼성전자", analysisBody["companyName"])
	assert.Equal(t, 13.0, analysisBody["totalScore"])
	assert.Equal(t, "D", analysisBody["grade"])
	assert.Equal(t, []interface{}{}, analysisBody["sources"])
}

func TestAnalyzeHandler_Errors(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/api/sessions", nil)
	sessionID := created["session_id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: sessionID, CompanyName: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "종목명을 입력해주세요.", body["error"])
	assert.Equal(t, false, body["success"])

	rec, _ = s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{CompanyName: "LG"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: "ses_missing", CompanyName: "LG"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.provider.err = errors.New("Error 500 upstream")
	rec, body = s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: sessionID, CompanyName: "LG"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "'LG' 분석 중 오류 발생")

	s.provider.err = nil
	s.provider.raw = "no json here"
	rec, body = s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: sessionID, CompanyName: "LG"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "모델 응답에서 유효한 분석 데이터를 찾지 못했습니다.")
}

func TestAnalyzeHandler_InFlight(t *testing.T) {
	s := newTestServer(t)
	session := s.sessions.Create()
	require.True(t, session.TryBeginAnalysis())
	defer session.EndAnalysis()

	rec, _ := s.do(t, http.MethodPost, "/api/analyze", AnalyzeRequest{SessionID: session.ID, CompanyName: "LG"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNormalizeHandler(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/normalize", `{"profitability":{"per":{"value":"5배","score":20}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20.0, body["totalScore"])
	assert.Equal(t, "D", body["grade"])
	assert.Equal(t, "알 수 없는 회사", body["companyName"])

	rec, _ = s.do(t, http.MethodPost, "/api/normalize", `"just a string"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamHandler(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := s.analyzedSession(t)

	rec, _ := s.do(t, http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: sessionID, Message: "배당은?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	stream := rec.Body.String()
	assert.Contains(t, stream, "event: fragment\ndata: {\"text\":\"분기 \"}\n\n")
	assert.Contains(t, stream, "event: done\ndata: {\"text\":\"분기 배당입니다.\"}\n\n")

	_, body := s.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/messages", nil)
	assert.Len(t, body["messages"].([]interface{}), 3)
}

func TestChatStreamHandler_Apology(t *testing.T) {
	s := newTestServer(t)
	s.provider.chat = &fakeChat{err: errors.New("stream reset")}
	sessionID, _ := s.analyzedSession(t)

	rec, _ := s.do(t, http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: sessionID, Message: "질문"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\ndata: {\"text\":\""+chat.ApologyMessage+"\"}")
}

func TestChatStreamHandler_Errors(t *testing.T) {
	s := newTestServer(t)
	session := s.sessions.Create()

	rec, body := s.do(t, http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: session.ID, Message: "질문"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "채팅이 초기화되지 않았습니다.", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/api/chat/stream", ChatRequest{SessionID: "ses_missing", Message: "질문"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/chat/stream", ChatRequest{Message: "질문"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryHandlers(t *testing.T) {
	s := newTestServer(t)
	_, analysisID := s.analyzedSession(t)

	rec, body := s.do(t, http.MethodGet, "/api/analyses?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])

	rec, body = s.do(t, http.MethodGet, "/api/analyses/"+analysisID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analysisID, body["id"])
	assert.Equal(t, "삼성전자", body["query"])

	rec, _ = s.do(t, http.MethodDelete, "/api/analyses/"+analysisID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/analyses/"+analysisID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/analyses/"+analysisID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandler(t *testing.T) {
	s := newTestServer(t)
	_, analysisID := s.analyzedSession(t)

	rec, _ := s.do(t, http.MethodGet, "/api/analyses/"+analysisID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# 삼성전자 종합 분석 리포트")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename*=UTF-8''")

	rec, _ = s.do(t, http.MethodGet, "/api/analyses/"+analysisID+"/export?format=pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec, _ = s.do(t, http.MethodGet, "/api/analyses/"+analysisID+"/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/analyses/ana_missing/export?format=json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)
	sessionID, _ := s.analyzedSession(t)

	server := httptest.NewServer(s.mux)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?session_id=" + sessionID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "배당은?"}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var events []chat.Event
	for {
		var ev chat.Event
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type != chat.EventFragment {
			break
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, chat.Event{Type: chat.EventDone, Text: "분기 배당입니다."}, events[2])

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "  "}))
	var ev chat.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, chat.EventError, ev.Type)
	assert.Equal(t, chat.ErrEmptyMessage.Error(), ev.Text)
}

func TestWebSocketChat_UnknownSession(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.mux)
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/chat?session_id=ses_missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func readTurn(t *testing.T, conn *websocket.Conn) []chat.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var events []chat.Event
	for {
		var ev chat.Event
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type != chat.EventFragment {
			return events
		}
	}
}

func TestWebSocketChat_RateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *common.Config) {
		cfg.Chat.MessageRate = 2
		cfg.Chat.MessageBurst = 1
	})
	sessionID, _ := s.analyzedSession(t)

	server := httptest.NewServer(s.mux)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/chat?session_id="+sessionID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "배당은?"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "또 배당은?"}))

	first := readTurn(t, conn)
	assert.Equal(t, chat.EventDone, first[len(first)-1].Type)

	limited := readTurn(t, conn)
	require.Len(t, limited, 1)
	assert.Equal(t, chat.Event{Type: chat.EventError, Text: ErrTooManyMessages}, limited[0])

	// one token per 500ms
	time.Sleep(600 * time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "실적은?"}))
	third := readTurn(t, conn)
	assert.Equal(t, chat.Event{Type: chat.EventDone, Text: "분기 배당입니다."}, third[len(third)-1])
}

func TestKVHandlers(t *testing.T) {
	t.Setenv("STOCKGRADER_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPut, "/api/kv/GEMINI_API_KEY", KVPutRequest{Value: "AIza-test-key-1234", Description: "Gemini key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	key, err := common.ResolveAPIKey(context.Background(), s.kv, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "AIza-test-key-1234", key)

	rec, body := s.do(t, http.MethodGet, "/api/kv/gemini_api_key", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AIza...1234", body["value"])

	rec, _ = s.do(t, http.MethodGet, "/api/kv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pairs []interfaces.KeyValuePair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pairs))
	require.Len(t, pairs, 1)
	assert.Equal(t, "gemini_api_key", pairs[0].Key)
	assert.Equal(t, "AIza...1234", pairs[0].Value)
	assert.Equal(t, "Gemini key", pairs[0].Description)

	rec, body = s.do(t, http.MethodPut, "/api/kv/gemini_api_key", map[string]string{"description": "no value"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = s.do(t, http.MethodDelete, "/api/kv/gemini_api_key", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	key, err = common.ResolveAPIKey(context.Background(), s.kv, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	rec, _ = s.do(t, http.MethodDelete, "/api/kv/gemini_api_key", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/kv/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "********", maskValue("short"))
	assert.Equal(t, "sk-a...wxyz", maskValue("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestSystemHandlers(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "gemini", body["provider"])

	rec, body = s.do(t, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.GetVersion(), body["version"])
}

func TestPageHandler(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "StockGrader")
	assert.Contains(t, rec.Body.String(), `data-section="profitability"`)
	assert.Contains(t, rec.Body.String(), "배당 수익률")

	rec, _ = s.do(t, http.MethodGet, "/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
