package services

import (
	"context"
	"errors"
	"testing"

	"github/itish2003/tariff/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// scriptedSession replays canned model responses and records what it was sent.
type scriptedSession struct {
	replies []*genai.GenerateContentResponse
	sent    [][]genai.Part
	err     error
}

func (s *scriptedSession) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.sent = append(s.sent, append([]genai.Part(nil), parts...))
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return textReply("done"), nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func textReply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
	}}}
}

func callReply(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, &genai.Part{FunctionCall: c})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
	}}}
}

type sessionRecorder struct {
	sessions  []*scriptedSession
	histories [][]*genai.Content
	next      func() *scriptedSession
}

func (r *sessionRecorder) factory(ctx context.Context, history []*genai.Content) (ChatSession, error) {
	s := r.next()
	r.sessions = append(r.sessions, s)
	r.histories = append(r.histories, history)
	return s, nil
}

func TestChat_ToolLoopProducesEvents(t *testing.T) {
	d, _ := newTestDispatcher(t)
	rec := &sessionRecorder{next: func() *scriptedSession {
		return &scriptedSession{replies: []*genai.GenerateContentResponse{
			callReply(&genai.FunctionCall{ID: "c1", Name: TariffToolName, Args: map[string]any{"query": "sheep", "country": "ecuador"}}),
			textReply("Sheep (0104.10) pay 5%."),
		}}
	}}
	svc := NewChatService(rec.factory, d)

	resp, err := svc.Chat(context.Background(), models.ChatRequest{Message: "Quiero arancelar un cordero"})
	require.NoError(t, err)
	assert.Equal(t, "Sheep (0104.10) pay 5%.", resp.Answer)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.ToolEvents, 1)
	assert.Equal(t, TariffToolName, resp.ToolEvents[0].Tool)
	assert.Equal(t, "Searching in official documents...", resp.ToolEvents[0].Title)

	session := rec.sessions[0]
	require.Len(t, session.sent, 2)
	assert.Equal(t, "Quiero arancelar un cordero", session.sent[0][0].Text)
	fr := session.sent[1][0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, TariffToolName, fr.Name)
	assert.Contains(t, fr.Response["result"], "Sheep import duty is 5%")
}

func TestChat_ReusesSessionAndSeedsHistory(t *testing.T) {
	d, _ := newTestDispatcher(t)
	rec := &sessionRecorder{next: func() *scriptedSession { return &scriptedSession{} }}
	svc := NewChatService(rec.factory, d)

	history := []models.ChatMessage{
		{Role: "user", Content: "hola"},
		{Role: "assistant", Content: "¿En qué puedo ayudarle?"},
		{Role: "user", Content: "   "},
	}
	first, err := svc.Chat(context.Background(), models.ChatRequest{Message: "cordero", History: history})
	require.NoError(t, err)

	second, err := svc.Chat(context.Background(), models.ChatRequest{Message: "para reproducción", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, rec.sessions, 1)

	require.Len(t, rec.histories[0], 2)
	assert.Equal(t, genai.RoleUser, rec.histories[0][0].Role)
	assert.Equal(t, genai.RoleModel, rec.histories[0][1].Role)

	// unknown ids (e.g. after a restart) get a fresh session under that id
	third, err := svc.Chat(context.Background(), models.ChatRequest{Message: "hola", SessionID: "stale-id"})
	require.NoError(t, err)
	assert.Equal(t, "stale-id", third.SessionID)
	assert.Len(t, rec.sessions, 2)
}

func TestChat_StopsRunawayToolLoop(t *testing.T) {
	d, _ := newTestDispatcher(t)
	replies := make([]*genai.GenerateContentResponse, 0, maxToolRounds+2)
	for i := 0; i < maxToolRounds+2; i++ {
		replies = append(replies, callReply(&genai.FunctionCall{Name: "unknownTool"}))
	}
	rec := &sessionRecorder{next: func() *scriptedSession { return &scriptedSession{replies: replies} }}

	_, err := NewChatService(rec.factory, d).Chat(context.Background(), models.ChatRequest{Message: "loop"})
	assert.ErrorIs(t, err, errTooManyToolCalls)
}

func TestChat_ModelError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	rec := &sessionRecorder{next: func() *scriptedSession { return &scriptedSession{err: errors.New("quota exceeded")} }}

	_, err := NewChatService(rec.factory, d).Chat(context.Background(), models.ChatRequest{Message: "hola"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestChat_EmptyCandidates(t *testing.T) {
	d, _ := newTestDispatcher(t)
	rec := &sessionRecorder{next: func() *scriptedSession {
		return &scriptedSession{replies: []*genai.GenerateContentResponse{{}}}
	}}

	resp, err := NewChatService(rec.factory, d).Chat(context.Background(), models.ChatRequest{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry, I couldn't generate a response.", resp.Answer)
}
