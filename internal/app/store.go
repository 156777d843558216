package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const conversationTitleMax = 50

// Store persists conversations and their message logs.
//
// Implementations must preserve message insertion order and must be able to
// reconstruct every conversation, message, role tag and timestamp exactly
// after a reload.
type Store interface {
	// Create opens a new conversation whose title is derived from the first
	// user message and returns its id. The message itself is not appended.
	Create(firstMessageText string) (string, error)
	Get(convID string) (Conversation, error)
	Append(convID string, msg Message) (Message, error)
	// UpdateMessageText replaces a message's text. Updating to the text the
	// message already has is a harmless no-op.
	UpdateMessageText(convID, msgID, text string) error
	// List returns summaries ordered most-recently-updated first.
	List() ([]ConversationSummary, error)
}

// FileStore keeps the whole conversation history in one JSON file, rewritten
// after every mutation and loaded in full at startup.
type FileStore struct {
	path string

	mu    sync.Mutex
	convs []*Conversation
	byID  map[string]*Conversation
}

// DefaultStorageRoot resolves the on-disk location for conversations, logs
// and config, preferring the XDG data dir.
func DefaultStorageRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "quickbar")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "quickbar")
	}
	return filepath.Join(os.TempDir(), "quickbar")
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	s := &FileStore{
		path: filepath.Join(root, "conversations.json"),
		byID: map[string]*Conversation{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var convs []*Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.convs = convs
	for _, c := range convs {
		s.byID[c.ID] = c
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	payload, err := json.MarshalIndent(s.convs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o644)
}

func deriveTitle(firstMessageText string) string {
	r := []rune(firstMessageText)
	if len(r) <= conversationTitleMax {
		return firstMessageText
	}
	return string(r[:conversationTitleMax]) + "..."
}

func (s *FileStore) Create(firstMessageText string) (string, error) {
	now := time.Now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     deriveTitle(firstMessageText),
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = append(s.convs, conv)
	s.byID[conv.ID] = conv
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *FileStore) Get(convID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[convID]
	if !ok {
		return Conversation{}, fmt.Errorf("conversation %s: %w", convID, ErrNotFound)
	}
	out := *conv
	out.Messages = append([]Message(nil), conv.Messages...)
	return out, nil
}

func (s *FileStore) Append(convID string, msg Message) (Message, error) {
	if strings.TrimSpace(msg.ID) == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[convID]
	if !ok {
		return Message{}, fmt.Errorf("conversation %s: %w", convID, ErrNotFound)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	if err := s.persistLocked(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (s *FileStore) UpdateMessageText(convID, msgID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[convID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", convID, ErrNotFound)
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID != msgID {
			continue
		}
		if conv.Messages[i].Text == text {
			return nil
		}
		conv.Messages[i].Text = text
		conv.UpdatedAt = time.Now()
		return s.persistLocked()
	}
	return fmt.Errorf("message %s: %w", msgID, ErrNotFound)
}

func (s *FileStore) List() ([]ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]ConversationSummary, 0, len(s.convs))
	for _, c := range s.convs {
		summaries = append(summaries, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			UpdatedAt:    c.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
