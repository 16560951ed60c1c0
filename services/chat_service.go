package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github/itish2003/tariff/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const maxToolRounds = 8

var errTooManyToolCalls = errors.New("model kept calling tools without answering")

// ChatSession is the part of *genai.Chat the orchestrator depends on.
type ChatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// SessionFactory starts a chat seeded with prior turns.
type SessionFactory func(ctx context.Context, history []*genai.Content) (ChatSession, error)

// GeminiSessionFactory starts Gemini chats with the tariff tools and prompt.
func GeminiSessionFactory(client *genai.Client, model string) SessionFactory {
	return func(ctx context.Context, history []*genai.Content) (ChatSession, error) {
		return client.Chats.Create(ctx, model, &genai.GenerateContentConfig{
			Tools:             GetAllTools(),
			SystemInstruction: GetSystemPrompt(),
		}, history)
	}
}

type chatEntry struct {
	mu      sync.Mutex
	session ChatSession
}

// ChatService keeps one model session per session id and resolves the
// model's function calls through the dispatcher.
type ChatService struct {
	newSession SessionFactory
	tools      *ToolDispatcher

	mu       sync.Mutex
	sessions map[string]*chatEntry
}

func NewChatService(newSession SessionFactory, tools *ToolDispatcher) *ChatService {
	return &ChatService{
		newSession: newSession,
		tools:      tools,
		sessions:   make(map[string]*chatEntry),
	}
}

// Chat sends one user message. A new session is created, seeded with
// req.History, when the id is empty or unknown (e.g. after a restart).
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	entry, sessionID, err := s.session(ctx, req)
	if err != nil {
		return nil, err
	}

	// a model session handles one exchange at a time
	entry.mu.Lock()
	defer entry.mu.Unlock()

	answer, events, err := s.exchange(ctx, entry.session, req.Message)
	if err != nil {
		return nil, fmt.Errorf("could not generate response from gemini: %w", err)
	}
	return &models.ChatResponse{
		Answer:     answer,
		SessionID:  sessionID,
		ToolEvents: events,
	}, nil
}

func (s *ChatService) session(ctx context.Context, req models.ChatRequest) (*chatEntry, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.SessionID != "" {
		if entry, ok := s.sessions[req.SessionID]; ok {
			return entry, req.SessionID, nil
		}
	}

	zap.L().Info("starting chat session", zap.String("requested_id", req.SessionID), zap.Int("history", len(req.History)))
	session, err := s.newSession(ctx, historyToContents(req.History))
	if err != nil {
		return nil, "", fmt.Errorf("could not start new chat session: %w", err)
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	entry := &chatEntry{session: session}
	s.sessions[sessionID] = entry
	return entry, sessionID, nil
}

func (s *ChatService) exchange(ctx context.Context, session ChatSession, prompt string) (string, []models.ToolEvent, error) {
	parts := []genai.Part{{Text: prompt}}
	var events []models.ToolEvent

	for round := 0; round <= maxToolRounds; round++ {
		result, err := session.SendMessage(ctx, parts...)
		if err != nil {
			return "", events, fmt.Errorf("gemini api call failed: %w", err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			return "I'm sorry, I couldn't generate a response.", events, nil
		}

		calls := result.FunctionCalls()
		if len(calls) == 0 {
			var answer strings.Builder
			for _, p := range result.Candidates[0].Content.Parts {
				if p.Text != "" && !p.Thought {
					answer.WriteString(p.Text)
				}
			}
			return answer.String(), events, nil
		}

		parts = make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			event := s.tools.Dispatch(ctx, call.Name, call.Args)
			events = append(events, event)
			parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: map[string]any{"result": event.Content},
			}})
		}
	}
	return "", events, errTooManyToolCalls
}

func historyToContents(history []models.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := genai.RoleModel
		if strings.EqualFold(msg.Role, "user") {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}
