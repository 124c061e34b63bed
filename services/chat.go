package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
)

const chatPath = "/chat-ia"

// ErrEmptyAnswer is returned when the assistant's reply carries no text.
var ErrEmptyAnswer = errors.New("the assistant returned no answer")

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ChatService forwards free-text questions to the AI assistant endpoint.
type ChatService struct {
	api *APIClient
}

func NewChatService(api *APIClient) *ChatService {
	return &ChatService{api: api}
}

type chatRequest struct {
	Question string `json:"question"`
}

// The assistant has answered under "respuesta" and under "answer" in
// different deployments; both are accepted and "respuesta" wins.
type chatResponse struct {
	Respuesta string `json:"respuesta"`
	Answer    string `json:"answer"`
}

func (r chatResponse) text() string {
	if strings.TrimSpace(r.Respuesta) != "" {
		return r.Respuesta
	}
	return r.Answer
}

// Ask sends question and returns the assistant's reply.
func (s *ChatService) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	result, err := s.api.Call(ctx, Request{
		Method:       http.MethodPost,
		Path:         chatPath,
		Body:         chatRequest{Question: question},
		RequiresBody: true,
	})
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := result.Decode(&resp); err != nil {
		return "", err
	}
	answer := resp.text()
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role    string
	Content string
}

// Conversation keeps the transcript of a chat panel. It is safe to read the
// transcript while a Send is in flight.
type Conversation struct {
	chat *ChatService

	mu       sync.Mutex
	messages []Message
}

func NewConversation(chat *ChatService) *Conversation {
	return &Conversation{chat: chat}
}

// Send appends the question, asks the assistant and appends its reply. On
// error only the question is kept.
func (c *Conversation) Send(ctx context.Context, question string) (Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Message{}, ErrEmptyQuestion
	}
	c.append(Message{Role: RoleUser, Content: question})
	answer, err := c.chat.Ask(ctx, question)
	if err != nil {
		return Message{}, err
	}
	reply := Message{Role: RoleAssistant, Content: answer}
	c.append(reply)
	return reply, nil
}

func (c *Conversation) append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Reset drops the transcript.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
