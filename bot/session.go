package bot

import "sync"

// SessionState is the multi-step text prompt a conversation is waiting on.
type SessionState string

const (
	StateNone                   SessionState = ""
	StateAwaitingRepoName       SessionState = "awaiting_repo_name"
	StateAwaitingGithubUsername SessionState = "awaiting_github_username"
)

type sessionKey struct {
	UserID int64
	ChatID int64
}

// SessionStore keeps conversation state per (user, chat) in process memory.
// Terminal transitions clear the entry.
type SessionStore struct {
	mu     sync.Mutex
	states map[sessionKey]SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{states: make(map[sessionKey]SessionState)}
}

func (s *SessionStore) Get(userID, chatID int64) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[sessionKey{UserID: userID, ChatID: chatID}]
}

func (s *SessionStore) Set(userID, chatID int64, state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionKey{UserID: userID, ChatID: chatID}] = state
}

func (s *SessionStore) Clear(userID, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionKey{UserID: userID, ChatID: chatID})
}
