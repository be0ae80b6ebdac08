package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	defaultQuestionText = "question unavailable"

	minOptions = 2
	maxOptions = 6
)

// LoadError reports a question source that could not be read, decoded or validated.
type LoadError struct {
	Path  string
	Index int // -1 when the failure is not tied to a single entry
	Err   error
}

func (e *LoadError) Error() string {
	src := e.Path
	if src == "" {
		src = "question source"
	}
	if e.Index >= 0 {
		return fmt.Sprintf("load %s: entry %d: %v", src, e.Index, e.Err)
	}
	return fmt.Sprintf("load %s: %v", src, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions tunes how strictly entries are checked.
type LoadOptions struct {
	// Lenient accepts entries whose options or correct index are malformed.
	Lenient bool
}

// rawQuestion mirrors one entry of the source file; nil fields take the defaults.
type rawQuestion struct {
	Text         *string  `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Verified     *bool    `json:"verified"`
	Explanation  *string  `json:"explanation"`
	Topic        *string  `json:"topic"`
}

func (r rawQuestion) toQuestion() Question {
	q := Question{
		Text:    defaultQuestionText,
		Options: []string{},
	}
	if r.Text != nil {
		q.Text = *r.Text
	}
	if r.Options != nil {
		q.Options = r.Options
	}
	if r.CorrectIndex != nil {
		q.CorrectIndex = *r.CorrectIndex
	}
	if r.Verified != nil {
		q.Verified = *r.Verified
	}
	if r.Explanation != nil {
		q.Explanation = *r.Explanation
	}
	if r.Topic != nil {
		q.Topic = *r.Topic
	}
	return q
}

func validateQuestion(q Question) error {
	if n := len(q.Options); n < minOptions || n > maxOptions {
		return fmt.Errorf("expected %d-%d options, got %d", minOptions, maxOptions, n)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("correct_index %d out of range for %d options", q.CorrectIndex, len(q.Options))
	}
	return nil
}

// Store is the read-only question bank. Keys are 0-based positions in source order.
type Store struct {
	questions []Question
	topics    []string
}

// NewStore indexes already decoded questions and builds the topic cache.
func NewStore(questions []Question) *Store {
	s := &Store{questions: questions}
	seen := make(map[string]struct{})
	for _, q := range questions {
		if q.Topic == "" {
			continue
		}
		if _, ok := seen[q.Topic]; ok {
			continue
		}
		seen[q.Topic] = struct{}{}
		s.topics = append(s.topics, q.Topic)
	}
	sort.Strings(s.topics)
	return s
}

// LoadStore reads the JSON question file at path.
func LoadStore(path string, opts LoadOptions) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Index: -1, Err: err}
	}
	defer file.Close()

	store, err := ParseStore(file, opts)
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		loadErr.Path = path
		return nil, loadErr
	}
	return store, err
}

// ParseStore decodes a JSON array of question entries, applying defaults for missing fields.
func ParseStore(r io.Reader, opts LoadOptions) (*Store, error) {
	var raws []rawQuestion
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raws); err != nil {
		return nil, &LoadError{Index: -1, Err: fmt.Errorf("decode: %w", err)}
	}
	// The document must hold nothing but the question list.
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &LoadError{Index: -1, Err: errors.New("decode: unexpected data after question list")}
	}

	questions := make([]Question, 0, len(raws))
	for i, raw := range raws {
		q := raw.toQuestion()
		if !opts.Lenient {
			if err := validateQuestion(q); err != nil {
				return nil, &LoadError{Index: i, Err: err}
			}
		}
		questions = append(questions, q)
	}
	return NewStore(questions), nil
}

// Len returns the number of questions.
func (s *Store) Len() int {
	return len(s.questions)
}

// Count returns the number of questions, restricted to topic when it is not empty.
func (s *Store) Count(topic string) int {
	if topic == "" {
		return len(s.questions)
	}
	n := 0
	for _, q := range s.questions {
		if strings.EqualFold(q.Topic, topic) {
			n++
		}
	}
	return n
}

// Topics returns the cached distinct topics in sorted order. Callers must not modify it.
func (s *Store) Topics() []string {
	return s.topics
}

// MatchTopic resolves user input to a known topic, ignoring case and surrounding spaces.
func (s *Store) MatchTopic(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, t := range s.topics {
		if t == text {
			return t, true
		}
	}
	for _, t := range s.topics {
		if strings.EqualFold(t, text) {
			return t, true
		}
	}
	return "", false
}

// Get returns the question stored under key.
func (s *Store) Get(key int) (Question, bool) {
	if key < 0 || key >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[key], true
}

// Keys returns every key in load order.
func (s *Store) Keys() []int {
	keys := make([]int, len(s.questions))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

// KeysExcludingTopic returns the keys whose topic does not match topic.
func (s *Store) KeysExcludingTopic(topic string) []int {
	var keys []int
	for i, q := range s.questions {
		if !strings.EqualFold(q.Topic, topic) {
			keys = append(keys, i)
		}
	}
	return keys
}
