package service

import (
	"math"
	"sync/atomic"
)

const wrongAnswerPenalty = -0.33

// Question is an immutable multiple-choice entry of the question bank.
type Question struct {
	Text         string
	Options      []string
	CorrectIndex int
	Verified     bool
	Explanation  string
	Topic        string
}

// CorrectOption returns the text of the correct option, or "" for malformed entries.
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// Session is one user's quiz run.
type Session struct {
	QuestionIDs  []int `json:"question_ids"`
	CurrentIndex int   `json:"current_index"`
	CorrectCount int   `json:"correct_count"`
	WrongCount   int   `json:"wrong_count"`
	// Scramble maps a displayed slot to the underlying option index of the current question.
	Scramble []int `json:"scramble,omitempty"`
}

// Total returns the number of questions picked for the session.
func (s *Session) Total() int {
	return len(s.QuestionIDs)
}

// Done reports whether the cursor has moved past the last question.
func (s *Session) Done() bool {
	return s.CurrentIndex >= len(s.QuestionIDs)
}

// CurrentID returns the key of the question under the cursor.
func (s *Session) CurrentID() (int, bool) {
	if s.CurrentIndex < 0 || s.Done() {
		return 0, false
	}
	return s.QuestionIDs[s.CurrentIndex], true
}

// Advance moves the cursor to the next question and drops the scramble of the current one.
func (s *Session) Advance() {
	s.CurrentIndex++
	s.Scramble = nil
}

// Score rewards correct answers and applies negative marking to wrong ones; skips are neutral.
func Score(correct, wrong int) float64 {
	return float64(correct)*1.0 + float64(wrong)*wrongAnswerPenalty
}

// RoundScore rounds a score to two decimals for display and ranking.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// Quiz selects, scrambles and scores questions from the current store.
type Quiz struct {
	store    atomic.Pointer[Store]
	shuffler *Shuffler
}

// NewQuiz serves questions from store, drawing randomness from shuffler.
func NewQuiz(store *Store, shuffler *Shuffler) *Quiz {
	q := &Quiz{shuffler: shuffler}
	q.store.Store(store)
	return q
}

// Store returns the question bank in use.
func (q *Quiz) Store() *Store {
	return q.store.Load()
}

// SwapStore replaces the question bank; sessions already running keep their keys.
func (q *Quiz) SwapStore(store *Store) {
	q.store.Store(store)
}

// PickQuestions samples up to n distinct keys that are not in excluded.
func (q *Quiz) PickQuestions(n int, excluded []int) []int {
	store := q.Store()
	skip := make(map[int]struct{}, len(excluded))
	for _, k := range excluded {
		skip[k] = struct{}{}
	}
	available := make([]int, 0, store.Len())
	for _, k := range store.Keys() {
		if _, ok := skip[k]; !ok {
			available = append(available, k)
		}
	}
	return q.shuffler.Sample(available, n)
}

// StartSession builds a fresh session of n questions, restricted to topic when it is set.
func (q *Quiz) StartSession(n int, topic string) *Session {
	var excluded []int
	if topic != "" {
		excluded = q.Store().KeysExcludingTopic(topic)
	}
	return &Session{QuestionIDs: q.PickQuestions(n, excluded)}
}

// Scramble draws a fresh display order for the options of question.
func (q *Quiz) Scramble(question Question) []int {
	return q.shuffler.Perm(len(question.Options))
}

// RenderOptions returns the options in displayed order.
func RenderOptions(question Question, scramble []int) []string {
	if len(scramble) == 0 {
		return append([]string(nil), question.Options...)
	}
	out := make([]string, len(scramble))
	for slot, idx := range scramble {
		if idx >= 0 && idx < len(question.Options) {
			out[slot] = question.Options[idx]
		}
	}
	return out
}

// CheckAnswer reports whether the displayed slot maps to the correct option.
// Without a scramble the slot is compared to the correct index directly.
func CheckAnswer(question Question, slot int, scramble []int) bool {
	if len(scramble) == 0 {
		return slot == question.CorrectIndex
	}
	if slot < 0 || slot >= len(scramble) {
		return false
	}
	return scramble[slot] == question.CorrectIndex
}

// DisplayedSlot returns the slot where the correct option is shown, or -1.
func DisplayedSlot(question Question, scramble []int) int {
	if len(scramble) == 0 {
		if question.CorrectIndex >= 0 && question.CorrectIndex < len(question.Options) {
			return question.CorrectIndex
		}
		return -1
	}
	for slot, idx := range scramble {
		if idx == question.CorrectIndex {
			return slot
		}
	}
	return -1
}
