// Package conversation keeps per-user detection sessions and their chat
// transcripts.
package conversation

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender values stored with each turn. They match the transcripts already
// written by earlier releases.
const (
	SenderUser      = "User"
	SenderAssistant = "AI"
)

// Turn is one chat message.
type Turn struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Detection is the most recent result a session has seen.
type Detection struct {
	RecordID   uint
	Label      string
	Confidence float32
	Remedy     string
	ImagePath  string
	At         time.Time
}

// Session is the state carried between detect, translate and ask calls for
// one user. It is safe for concurrent use.
type Session struct {
	ID       string
	User     string
	Language string
	Created  time.Time

	mu        sync.RWMutex
	detection *Detection
	turns     []Turn
}

// NewSession returns a session with a fresh random id.
func NewSession(user, language string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		User:     user,
		Language: language,
		Created:  time.Now(),
	}
}

// SetDetection records a new detection and starts a new transcript.
func (s *Session) SetDetection(d Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detection = &d
	s.turns = nil
}

// SetRecordID links the current detection to its history row.
func (s *Session) SetRecordID(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detection != nil {
		s.detection.RecordID = id
	}
}

// Detection returns the current detection, if any.
func (s *Session) Detection() (Detection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detection == nil {
		return Detection{}, false
	}
	return *s.detection, true
}

// ClearDetection forgets the current detection and transcript.
func (s *Session) ClearDetection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detection = nil
	s.turns = nil
}

// Append adds a turn and returns a snapshot of the whole transcript.
func (s *Session) Append(sender, message string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Sender: sender, Message: message})
	return cloneTurns(s.turns)
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTurns(s.turns)
}

func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return []Turn{}
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Encode serialises a transcript the way it is stored in history.
func Encode(turns []Turn) (string, error) {
	if turns == nil {
		turns = []Turn{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored transcript. Empty input is an empty transcript.
func Decode(data string) ([]Turn, error) {
	if data == "" {
		return []Turn{}, nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
