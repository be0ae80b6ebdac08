package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		correct, wrong int
		want           float64
	}{
		{5, 0, 5.00},
		{3, 2, 2.34},
		{0, 0, 0.00},
		{0, 3, -0.99},
	}
	for _, tt := range tests {
		got := Score(tt.correct, tt.wrong)
		assert.InDelta(t, tt.want, got, 1e-9, "correct=%d wrong=%d", tt.correct, tt.wrong)
	}
	assert.Equal(t, "2.34", FormatScore(Score(3, 2)))
	assert.Equal(t, "-0.99", FormatScore(Score(0, 3)))
	assert.Equal(t, "0.00", FormatScore(Score(0, 0)))
}

func TestCheckAnswer(t *testing.T) {
	q := Question{Options: []string{"a", "b", "c"}, CorrectIndex: 2}

	t.Run("through scramble", func(t *testing.T) {
		scramble := []int{1, 2, 0}
		assert.True(t, CheckAnswer(q, 1, scramble))
		assert.False(t, CheckAnswer(q, 0, scramble))
		assert.False(t, CheckAnswer(q, 2, scramble))
		assert.False(t, CheckAnswer(q, 3, scramble))
		assert.False(t, CheckAnswer(q, -1, scramble))
	})

	t.Run("without scramble", func(t *testing.T) {
		assert.True(t, CheckAnswer(q, 2, nil))
		assert.False(t, CheckAnswer(q, 1, nil))
	})
}

func TestRenderOptions(t *testing.T) {
	q := Question{Options: []string{"red", "green", "blue"}, CorrectIndex: 0}

	assert.Equal(t, []string{"blue", "red", "green"}, RenderOptions(q, []int{2, 0, 1}))
	assert.Equal(t, []string{"red", "green", "blue"}, RenderOptions(q, nil))

	assert.Equal(t, 1, DisplayedSlot(q, []int{2, 0, 1}))
	assert.Equal(t, 0, DisplayedSlot(q, nil))
}

func TestSessionAdvance(t *testing.T) {
	s := &Session{QuestionIDs: []int{3, 1}, Scramble: []int{1, 0}}

	id, ok := s.CurrentID()
	require.True(t, ok)
	assert.Equal(t, 3, id)
	assert.False(t, s.Done())

	s.Advance()
	assert.Nil(t, s.Scramble)
	id, _ = s.CurrentID()
	assert.Equal(t, 1, id)

	s.Advance()
	assert.True(t, s.Done())
	_, ok = s.CurrentID()
	assert.False(t, ok)

	assert.True(t, (&Session{}).Done())
}

func TestPickQuestions(t *testing.T) {
	quiz := NewQuiz(parseBank(t, sampleBank), NewShuffler(3))

	got := quiz.PickQuestions(10, []int{0, 2})
	assert.ElementsMatch(t, []int{1, 3, 4}, got)

	got = quiz.PickQuestions(2, nil)
	assert.Len(t, got, 2)

	assert.Empty(t, quiz.PickQuestions(0, nil))
}

func TestStartSessionWithTopic(t *testing.T) {
	quiz := NewQuiz(parseBank(t, sampleBank), NewShuffler(3))

	sess := quiz.StartSession(10, "Networks")
	assert.ElementsMatch(t, []int{0, 2, 4}, sess.QuestionIDs)
	assert.Equal(t, 0, sess.CurrentIndex)
	assert.Zero(t, sess.CorrectCount)
	assert.Zero(t, sess.WrongCount)

	sess = quiz.StartSession(2, "")
	assert.Len(t, sess.QuestionIDs, 2)
}

func TestScrambleCoversOptions(t *testing.T) {
	quiz := NewQuiz(parseBank(t, sampleBank), NewShuffler(11))
	q, _ := quiz.Store().Get(2)

	scramble := quiz.Scramble(q)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, scramble)
	assert.True(t, CheckAnswer(q, DisplayedSlot(q, scramble), scramble))
}

func TestSwapStore(t *testing.T) {
	quiz := NewQuiz(parseBank(t, sampleBank), NewShuffler(1))
	next := parseBank(t, `[{"text": "only", "options": ["a", "b"], "correct_index": 0}]`)

	quiz.SwapStore(next)
	assert.Same(t, next, quiz.Store())
	assert.Equal(t, []int{0}, quiz.PickQuestions(5, nil))
}
