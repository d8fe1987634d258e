package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Turn は1回の質問と回答の組
type Turn struct {
	Question string
	Answer   string
}

// Session は1つの会話セッション。
// turnMu がターンの直列化を、mu が履歴へのアクセスを保護する。
// 同一セッションへの同時リクエストはターン単位で順番に処理される。
type Session struct {
	id     uuid.UUID
	turnMu sync.Mutex
	mu     sync.RWMutex
	turns  []Turn
}

func newSession(id uuid.UUID) *Session {
	return &Session{id: id}
}

// ID はセッションIDを返す
func (s *Session) ID() uuid.UUID {
	return s.id
}

// BeginTurn はターンの排他を獲得する。先行ターンが完了するまでブロックする
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

// EndTurn はターンの排他を解放する
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// History は履歴のコピーを古い順で返す
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns...)
}

// Append は完了したターンを履歴の末尾へ追加する
func (s *Session) Append(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Question: question, Answer: answer})
}

// SessionStore はセッションIDとセッションの対応を保持する
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionStore は新しいSessionStoreを作成する
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Get はIDに対応するセッションを返す。未知のIDの場合は
// そのIDで新しい空のセッションを作成して返す。
func (s *SessionStore) Get(id uuid.UUID) *Session {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session
	}
	session = newSession(id)
	s.sessions[id] = session
	return session
}

// Delete はセッションを破棄する。存在した場合はtrueを返す
func (s *SessionStore) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len は保持しているセッション数を返す
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
