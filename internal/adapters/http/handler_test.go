package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawyrs-chat/internal/adapters/events"
	httpadapter "github.com/PabloGalante/lawyrs-chat/internal/adapters/http"
	"github.com/PabloGalante/lawyrs-chat/internal/adapters/llm"
	"github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/lawyrs-chat/internal/app/chat"
	"github.com/PabloGalante/lawyrs-chat/internal/app/conversation"
	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/app/memories"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

type testEnv struct {
	handler  http.Handler
	memories *memory.MemoryStore
	registry *chat.Registry
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	memoryStore := memory.NewMemoryStore()
	practice := memory.NewPracticeStore(domain.DashboardSummary{ActiveCases: 4, PendingTasks: 2})

	convSvc := conversation.NewService(
		llm.NewMockLLM(),
		memory.NewSessionStore(),
		memory.NewMessageStore(),
		memoryStore,
		practice,
	)

	cache := dashboard.NewCache(memory.NewSummaryStore(), convSvc)
	reconciler := dashboard.NewReconciler(cache, events.Nop{}, time.Hour)
	t.Cleanup(reconciler.Close)

	registry := chat.NewRegistry(&chat.AppContext{
		Backend:             convSvc,
		Reconciler:          reconciler,
		DefaultJurisdiction: domain.JurisdictionMissouri,
		StatusInterval:      time.Hour,
	})
	t.Cleanup(registry.CloseAll)

	h := httpadapter.NewServer(httpadapter.Deps{
		Chats:    registry,
		Memories: memories.NewService(convSvc, 0),
	})
	return &testEnv{handler: h, memories: memoryStore, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req = httptest.NewRequest(method, path, &buf)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

type chatState struct {
	ChatID       string                  `json:"chat_id"`
	SessionID    string                  `json:"session_id"`
	State        string                  `json:"state"`
	Jurisdiction string                  `json:"jurisdiction"`
	Transcript   []chat.Bubble           `json:"transcript"`
	Dashboard    domain.DashboardSummary `json:"dashboard"`
}

func (e *testEnv) createChat(t *testing.T, body any) chatState {
	t.Helper()
	w := e.do(t, http.MethodPost, "/chats", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var st chatState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestCreateChatAndSendMessage(t *testing.T) {
	env := newTestServer(t)

	st := env.createChat(t, map[string]any{"jurisdiction": "ks"})
	assert.NotEmpty(t, st.ChatID)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, "kansas", st.Jurisdiction)
	assert.Equal(t, "idle", st.State)
	assert.Empty(t, st.Transcript)
	assert.Equal(t, 4, st.Dashboard.ActiveCases, "opening a chat primes the dashboard")

	w := env.do(t, http.MethodPost, "/chats/"+st.ChatID+"/messages", map[string]any{
		"text": "What is the statute of limitations for negligence?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		SessionID string        `json:"session_id"`
		Messages  []chat.Bubble `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, st.SessionID, resp.SessionID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "agent", resp.Messages[1].Role)
	assert.Equal(t, "Researcher", resp.Messages[1].AgentLabel)
	assert.Equal(t, "90%", resp.Messages[1].Confidence)
	assert.False(t, resp.Messages[1].IsError)

	w = env.do(t, http.MethodGet, "/chats/"+st.ChatID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after chatState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Len(t, after.Transcript, 2)
}

func TestSendEmptyTextIsIgnored(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	w := env.do(t, http.MethodPost, "/chats/"+st.ChatID+"/messages", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do(t, http.MethodGet, "/chats/"+st.ChatID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after chatState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Empty(t, after.Transcript)
	assert.Equal(t, "idle", after.State)
}

func sendAndDecode(t *testing.T, env *testEnv, chatID string, body map[string]any) []chat.Bubble {
	t.Helper()
	w := env.do(t, http.MethodPost, "/chats/"+chatID+"/messages", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Messages []chat.Bubble `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	return resp.Messages
}

func TestSendFullCrew(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	msgs := sendAndDecode(t, env, st.ChatID, map[string]any{
		"text":      "What is the statute of limitations for negligence?",
		"full_crew": true,
	})
	agent := msgs[1]
	assert.Equal(t, "Orchestrator", agent.AgentLabel)
	assert.Contains(t, agent.SubAgents, "Researcher")
	assert.Contains(t, agent.SubAgents, "Strategist")
	assert.Contains(t, agent.Footers, "Multi-agent pipeline")
}

func TestSendForcedAgent(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	// Classification alone would pick the researcher.
	msgs := sendAndDecode(t, env, st.ChatID, map[string]any{
		"text":       "What is the statute of limitations for negligence?",
		"agent_type": "Drafter",
	})
	assert.Equal(t, "Drafter", msgs[1].AgentLabel)
	assert.Empty(t, msgs[1].SubAgents)

	msgs = sendAndDecode(t, env, st.ChatID, map[string]any{
		"text":       "What is the statute of limitations for negligence?",
		"agent_type": "paralegal",
	})
	assert.Equal(t, "Researcher", msgs[1].AgentLabel, "unknown agents fall back to classification")
}

func TestClassify(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/classify?message=Draft+a+demand+letter", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Draft a demand letter", resp["message"])
	assert.Equal(t, "drafter", resp["agent"])
	assert.Equal(t, "Drafter", resp["label"])

	w = env.do(t, http.MethodGet, "/classify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/classify?message=x", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestUnknownChat(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/chats/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearChat(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	w := env.do(t, http.MethodPost, "/chats/"+st.ChatID+"/messages", map[string]any{"text": "Draft a demand letter"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/chats/"+st.ChatID+"/messages", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "clear needs confirmation")

	w = env.do(t, http.MethodDelete, "/chats/"+st.ChatID+"/messages?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.NotEqual(t, st.SessionID, cleared.SessionID)

	w = env.do(t, http.MethodGet, "/chats/"+st.ChatID, nil)
	var after chatState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Empty(t, after.Transcript)
	assert.Equal(t, cleared.SessionID, after.SessionID)
}

func TestCloseChat(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	w := env.do(t, http.MethodDelete, "/chats/"+st.ChatID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/chats/"+st.ChatID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateChatContext(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	w := env.do(t, http.MethodPatch, "/chats/"+st.ChatID, map[string]any{
		"jurisdiction": "federal",
		"matter":       map[string]string{"id": "m-1", "label": "Smith v. Jones"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var after chatState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, "federal", after.Jurisdiction)

	w = env.do(t, http.MethodPatch, "/chats/"+st.ChatID, map[string]any{"jurisdiction": "atlantis"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, "federal", after.Jurisdiction, "unknown jurisdictions are ignored")
}

func TestMemories(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, env.memories.AppendMemory(ctx, &domain.Memory{
		ID: "mem-1", MatterID: "m-1", Agent: domain.AgentResearcher,
		Key: "sol", Content: "Five years <b>for</b> negligence", CreatedAt: time.Now(),
	}))
	require.NoError(t, env.memories.AppendMemory(ctx, &domain.Memory{
		ID: "mem-2", MatterID: "m-2", Agent: domain.AgentDrafter,
		Key: "letter", Content: "Demand letter sent", CreatedAt: time.Now(),
	}))

	w := env.do(t, http.MethodGet, "/memories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Memories []memories.Entry `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Memories, 2)

	w = env.do(t, http.MethodGet, "/memories?matter_id=m-1", nil)
	var filtered struct {
		Memories []memories.Entry `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered.Memories, 1)
	assert.Equal(t, domain.MemoryID("mem-1"), filtered.Memories[0].ID)
	assert.Contains(t, filtered.Memories[0].ContentHTML, "&lt;b&gt;")

	w = env.do(t, http.MethodDelete, "/memories/mem-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, "/memories/mem-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/memories/", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCitationLinks(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/citations/links?citation=RSMo+537.765&kind=rsmo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Citation string `json:"citation"`
		Kind     string `json:"kind"`
		Links    struct {
			GoogleScholar string `json:"google_scholar"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RSMo 537.765", resp.Citation)
	assert.Equal(t, "mo_statute", resp.Kind)
	assert.Contains(t, resp.Links.GoogleScholar, "scholar.google.com")
}

func TestCitationVerify(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/citations/verify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/citations/verify?citation=K.S.A.+60-513", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check domain.CitationCheck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	assert.True(t, check.Found)
}

func TestDashboard(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum domain.DashboardSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.PendingTasks)

	w = env.do(t, http.MethodGet, "/dashboard/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	w = env.do(t, http.MethodPost, "/dashboard/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodOptions, "/chats", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestChatEventsOverWebsocket(t *testing.T) {
	env := newTestServer(t)
	st := env.createChat(t, nil)

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chats/" + st.ChatID + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first wsEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "connected", first.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "send", "text": "Evaluate the risks of this claim"}))

	var seen []string
	var agentBubble chat.Bubble
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		seen = append(seen, ev.Type)
		if ev.Type == "message" {
			var b chat.Bubble
			require.NoError(t, json.Unmarshal(ev.Data, &b))
			if b.Role == "agent" {
				agentBubble = b
			}
		}
		if ev.Type == "send_enabled" && string(ev.Data) == "true" {
			break
		}
	}

	assert.Contains(t, seen, "pending")
	assert.Contains(t, seen, "notification")
	assert.Equal(t, "Analyst", agentBubble.AgentLabel)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "clear", "confirm": true}))
	var reset wsEvent
	require.NoError(t, conn.ReadJSON(&reset))
	assert.Equal(t, "transcript_reset", reset.Type)
}
