package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PoluyanbIch/GoQuizBot/internal/i18n"
	"github.com/PoluyanbIch/GoQuizBot/internal/logging"
	"github.com/PoluyanbIch/GoQuizBot/internal/metrics"
)

// Fixed menu quiz sizes.
const (
	QuickQuizSize = 5
	ExamASize     = 31
	ExamBSize     = 33
)

const answerRowSize = 2

// Quiz modes, used as metric labels.
const (
	modeQuick  = "quick"
	modeExamA  = "exam_a"
	modeExamB  = "exam_b"
	modeCustom = "custom"
	modeTopic  = "topic"
)

var (
	ErrInvalidCount    = errors.New("count is not a number")
	ErrCountOutOfRange = errors.New("count out of range")
	ErrInvalidOption   = errors.New("invalid option")
)

type State string

const (
	StateInit     State = "INIT"
	StateTopic    State = "TOPIC"
	StateCustomNQ State = "CUSTOM_NQ"
	StateQuiz     State = "QUIZ"
)

// Conversation is the per-user state persisted between messages.
type Conversation struct {
	State         State    `json:"state"`
	Session       *Session `json:"session,omitempty"`
	SelectedTopic string   `json:"selected_topic,omitempty"`
}

func NewConversation() *Conversation {
	return &Conversation{State: StateInit}
}

// Reset clears the session and the selected topic and returns to the menu.
func (c *Conversation) Reset() {
	c.State = StateInit
	c.Session = nil
	c.SelectedTopic = ""
}

// Idle reports whether the conversation holds nothing worth persisting.
func (c *Conversation) Idle() bool {
	return (c.State == StateInit || c.State == "") && c.Session == nil && c.SelectedTopic == ""
}

func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Session != nil {
		sess := *c.Session
		sess.QuestionIDs = append([]int(nil), c.Session.QuestionIDs...)
		sess.Scramble = append([]int(nil), c.Session.Scramble...)
		out.Session = &sess
	}
	return &out
}

// Intent is a recognized user action, resolved from raw text before any transition.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentStart
	IntentQuick
	IntentExamA
	IntentExamB
	IntentSetCount
	IntentSelectTopic
	IntentLeaderboard
	IntentSkip
	IntentCancel
)

// Event is one inbound text message.
type Event struct {
	UserID      int64
	DisplayName string
	Text        string
}

// Reply is one outbound message. Keyboard rows are the choices offered for the next
// message; a nil Keyboard leaves the client's keyboard alone.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard [][]string
}

type MachineOptions struct {
	Leaderboard    LeaderboardService // nil disables the leaderboard
	LeaderboardTop int
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Machine drives the quiz dialogue for every user.
type Machine struct {
	quiz        *Quiz
	sessions    SessionStore
	tr          *i18n.Translator
	leaderboard LeaderboardService
	top         int
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	intents map[string]Intent
}

func NewMachine(quiz *Quiz, sessions SessionStore, tr *i18n.Translator, opts MachineOptions) *Machine {
	top := opts.LeaderboardTop
	if top <= 0 {
		top = 10
	}
	m := &Machine{
		quiz:        quiz,
		sessions:    sessions,
		tr:          tr,
		leaderboard: opts.Leaderboard,
		top:         top,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With().Str("component", "dialogue").Logger(),
	}
	m.intents = map[string]Intent{
		"/start":       IntentStart,
		"/leaderboard": IntentLeaderboard,
		"/cancel":      IntentCancel,
	}
	for id, intent := range map[string]Intent{
		"ButtonQuick":       IntentQuick,
		"ButtonExamA":       IntentExamA,
		"ButtonExamB":       IntentExamB,
		"ButtonSetCount":    IntentSetCount,
		"ButtonSelectTopic": IntentSelectTopic,
		"ButtonLeaderboard": IntentLeaderboard,
		"ButtonSkip":        IntentSkip,
		"ButtonCancel":      IntentCancel,
	} {
		m.intents[strings.ToLower(tr.T(id))] = intent
	}
	return m
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func (m *Machine) parseIntent(text string) Intent {
	key := strings.ToLower(strings.TrimSpace(text))
	if isCommand(key) {
		// Commands may carry the bot name: /start@QuizBot.
		if at := strings.IndexByte(key, '@'); at > 0 {
			key = key[:at]
		}
	}
	return m.intents[key]
}

// Handle restores the user's conversation, applies one transition and persists the result.
func (m *Machine) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	conv, err := m.sessions.Load(ctx, ev.UserID)
	if err != nil {
		m.metrics.HandlerError()
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		conv = NewConversation()
	}

	replies := m.Step(ctx, conv, ev)

	if conv.Idle() {
		err = m.sessions.Delete(ctx, ev.UserID)
	} else {
		err = m.sessions.Save(ctx, ev.UserID, conv)
	}
	if err != nil {
		m.metrics.HandlerError()
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return replies, nil
}

// FailureReply is what a transport sends when Handle fails.
func (m *Machine) FailureReply() Reply {
	return Reply{Text: m.tr.T("TemporaryError")}
}

// Step applies one inbound message to conv and returns the replies to send.
func (m *Machine) Step(ctx context.Context, conv *Conversation, ev Event) []Reply {
	intent := m.parseIntent(ev.Text)
	if conv.State == StateTopic && !isCommand(ev.Text) {
		// A topic named like a button is still a topic while one is being chosen.
		if _, ok := m.quiz.Store().MatchTopic(ev.Text); ok {
			intent = IntentUnknown
		}
	}

	switch {
	case intent == IntentStart:
		conv.Reset()
		return []Reply{m.menu("MenuWelcome")}
	case intent == IntentCancel && conv.State != StateInit && conv.State != "":
		return m.cancel(ctx, conv)
	}

	switch conv.State {
	case StateTopic:
		return m.onTopic(conv, ev)
	case StateCustomNQ:
		return m.onCustomCount(ctx, conv, ev)
	case StateQuiz:
		return m.onQuiz(ctx, conv, ev, intent)
	default:
		conv.State = StateInit
		return m.onMenu(ctx, conv, ev, intent)
	}
}

func (m *Machine) onMenu(ctx context.Context, conv *Conversation, ev Event, intent Intent) []Reply {
	switch intent {
	case IntentQuick:
		return m.startQuiz(ctx, conv, ev, QuickQuizSize, "", modeQuick)
	case IntentExamA:
		return m.startQuiz(ctx, conv, ev, ExamASize, "", modeExamA)
	case IntentExamB:
		return m.startQuiz(ctx, conv, ev, ExamBSize, "", modeExamB)
	case IntentSetCount:
		conv.SelectedTopic = ""
		conv.State = StateCustomNQ
		return []Reply{m.countPrompt(conv)}
	case IntentSelectTopic:
		if len(m.quiz.Store().Topics()) == 0 {
			return []Reply{{Text: m.tr.T("NoTopics"), Keyboard: m.menuKeyboard()}}
		}
		conv.State = StateTopic
		return []Reply{{Text: m.tr.T("ChooseTopic"), Keyboard: m.topicKeyboard()}}
	case IntentLeaderboard:
		return m.showLeaderboard(ctx)
	default:
		return []Reply{{Text: m.tr.T("CommandNotRecognized"), Keyboard: m.menuKeyboard()}}
	}
}

func (m *Machine) onTopic(conv *Conversation, ev Event) []Reply {
	topic, ok := m.quiz.Store().MatchTopic(ev.Text)
	if !ok {
		return []Reply{{Text: m.tr.T("InvalidTopic"), Keyboard: m.topicKeyboard()}}
	}
	conv.SelectedTopic = topic
	conv.State = StateCustomNQ
	return []Reply{m.countPrompt(conv)}
}

func (m *Machine) onCustomCount(ctx context.Context, conv *Conversation, ev Event) []Reply {
	maxCount := m.quiz.Store().Count(conv.SelectedTopic)
	n, err := ParseCount(ev.Text, maxCount)
	switch {
	case errors.Is(err, ErrCountOutOfRange):
		return []Reply{{
			Text:     m.tr.Td("CountOutOfRange", map[string]any{"Max": maxCount}),
			Keyboard: m.cancelKeyboard(),
		}}
	case err != nil:
		return []Reply{{Text: m.tr.T("EnterValidNumber"), Keyboard: m.cancelKeyboard()}}
	}

	mode := modeCustom
	if conv.SelectedTopic != "" {
		mode = modeTopic
	}
	return m.startQuiz(ctx, conv, ev, n, conv.SelectedTopic, mode)
}

func (m *Machine) onQuiz(ctx context.Context, conv *Conversation, ev Event, intent Intent) []Reply {
	sess := conv.Session
	if sess == nil {
		// Stray message after the session was lost: fall back to the menu.
		conv.Reset()
		return []Reply{m.menu("MenuPrompt")}
	}
	if sess.Done() {
		return m.finish(ctx, conv, ev)
	}

	if intent == IntentSkip {
		m.metrics.Answer(metrics.ResultSkipped)
		sess.Advance()
		return m.present(ctx, conv, ev)
	}

	id, _ := sess.CurrentID()
	question, ok := m.quiz.Store().Get(id)
	if !ok {
		sess.Advance()
		return m.present(ctx, conv, ev)
	}

	slot, err := ParseAnswer(ev.Text, optionCount(question, sess.Scramble))
	if err != nil {
		m.metrics.Answer(metrics.ResultInvalid)
		replies := []Reply{{Text: m.tr.T("InvalidOption")}}
		return append(replies, m.present(ctx, conv, ev)...)
	}

	correct := CheckAnswer(question, slot, sess.Scramble)
	reveal := m.revealReply(question, sess.Scramble, correct)
	if correct {
		sess.CorrectCount++
		m.metrics.Answer(metrics.ResultCorrect)
	} else {
		sess.WrongCount++
		m.metrics.Answer(metrics.ResultWrong)
	}
	sess.Advance()

	return append([]Reply{reveal}, m.present(ctx, conv, ev)...)
}

func (m *Machine) startQuiz(ctx context.Context, conv *Conversation, ev Event, n int, topic, mode string) []Reply {
	conv.Session = m.quiz.StartSession(n, topic)
	conv.State = StateQuiz
	m.metrics.QuizStarted(mode)

	logger := logging.FromContext(ctx, m.logger)
	logger.Info().
		Str("mode", mode).
		Str("topic", topic).
		Int("requested", n).
		Int("questions", conv.Session.Total()).
		Msg("quiz started")

	return m.present(ctx, conv, ev)
}

// present shows the question under the cursor with a fresh scramble, or finishes the quiz.
func (m *Machine) present(ctx context.Context, conv *Conversation, ev Event) []Reply {
	store := m.quiz.Store()
	sess := conv.Session
	for !sess.Done() {
		id, _ := sess.CurrentID()
		question, ok := store.Get(id)
		if !ok {
			logger := logging.FromContext(ctx, m.logger)
			logger.Warn().
				Int("question_id", id).
				Msg("question missing from store, skipping")
			sess.Advance()
			continue
		}
		sess.Scramble = m.quiz.Scramble(question)
		return []Reply{m.questionReply(sess, question)}
	}
	return m.finish(ctx, conv, ev)
}

func (m *Machine) questionReply(sess *Session, question Question) Reply {
	var b strings.Builder
	b.WriteString(m.tr.Td("QuestionHeader", map[string]any{
		"Position": sess.CurrentIndex + 1,
		"Total":    sess.Total(),
	}))
	b.WriteString("\n\n")
	b.WriteString(question.Text)
	b.WriteString("\n")

	options := RenderOptions(question, sess.Scramble)
	for slot, option := range options {
		fmt.Fprintf(&b, "\n%s) %s", SlotLetter(slot), option)
	}
	return Reply{Text: b.String(), Keyboard: m.answerKeyboard(len(options))}
}

func (m *Machine) revealReply(question Question, scramble []int, correct bool) Reply {
	verdict := m.tr.T("AnswerWrong")
	if correct {
		verdict = m.tr.T("AnswerCorrect")
	}

	answer := question.CorrectOption()
	if slot := DisplayedSlot(question, scramble); slot >= 0 {
		answer = SlotLetter(slot) + ") " + answer
	}

	explanation := m.tr.T("ExplanationUnavailable")
	if question.Verified {
		explanation = question.Explanation
	}

	text := "*" + EscapeMarkdown(verdict) + "*\n" +
		EscapeMarkdown(m.tr.Td("CorrectAnswerWas", map[string]any{"Answer": answer})) + "\n" +
		EscapeMarkdown(m.tr.Td("ExplanationLine", map[string]any{"Text": explanation}))
	return Reply{Text: text, Markdown: true}
}

func (m *Machine) finish(ctx context.Context, conv *Conversation, ev Event) []Reply {
	sess := conv.Session
	score := Score(sess.CorrectCount, sess.WrongCount)
	m.metrics.QuizFinished()

	logger := logging.FromContext(ctx, m.logger)
	logger.Info().
		Int("correct", sess.CorrectCount).
		Int("wrong", sess.WrongCount).
		Int("total", sess.Total()).
		Float64("score", score).
		Msg("quiz finished")

	replies := []Reply{{Text: m.tr.Td("QuizFinished", map[string]any{
		"Correct": sess.CorrectCount,
		"Wrong":   sess.WrongCount,
		"Total":   sess.Total(),
		"Score":   FormatScore(score),
	})}}
	if note := m.recordResult(ctx, ev, sess, score); note != "" {
		replies = append(replies, Reply{Text: note})
	}

	conv.Reset()
	return append(replies, m.menu("MenuPrompt"))
}

func (m *Machine) recordResult(ctx context.Context, ev Event, sess *Session, score float64) string {
	if m.leaderboard == nil || sess.Total() == 0 {
		return ""
	}
	logger := logging.FromContext(ctx, m.logger)

	name := ev.DisplayName
	if name == "" {
		name = strconv.FormatInt(ev.UserID, 10)
	}
	isNewBest, err := m.leaderboard.AddEntry(ctx, LeaderboardEntry{
		UserID:      ev.UserID,
		DisplayName: name,
		Score:       score,
		Correct:     sess.CorrectCount,
		Total:       sess.Total(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("record leaderboard entry")
		return ""
	}
	if !isNewBest {
		return ""
	}
	position, _, err := m.leaderboard.GetUserPosition(ctx, ev.UserID)
	if err != nil || position < 1 {
		return ""
	}
	return m.tr.Td("NewRecord", map[string]any{"Position": position})
}

func (m *Machine) cancel(ctx context.Context, conv *Conversation) []Reply {
	var replies []Reply
	if conv.Session != nil {
		m.metrics.QuizCancelled()
		logger := logging.FromContext(ctx, m.logger)
		logger.Info().Msg("quiz cancelled")
		replies = append(replies, Reply{Text: m.tr.T("QuizCancelled")})
	}
	conv.Reset()
	return append(replies, m.menu("MenuPrompt"))
}

func (m *Machine) showLeaderboard(ctx context.Context) []Reply {
	if m.leaderboard == nil {
		return []Reply{{Text: m.tr.T("LeaderboardUnavailable"), Keyboard: m.menuKeyboard()}}
	}
	top, err := m.leaderboard.GetTop(ctx, m.top)
	if err != nil {
		logger := logging.FromContext(ctx, m.logger)
		logger.Warn().Err(err).Msg("fetch leaderboard")
		return []Reply{{Text: m.tr.T("LeaderboardUnavailable"), Keyboard: m.menuKeyboard()}}
	}

	var b strings.Builder
	b.WriteString(m.tr.T("LeaderboardTitle"))
	b.WriteString("\n")
	if len(top) == 0 {
		b.WriteString("\n")
		b.WriteString(m.tr.T("LeaderboardEmpty"))
	}
	for i, entry := range top {
		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		b.WriteString("\n")
		b.WriteString(medal)
		b.WriteString(" ")
		b.WriteString(m.tr.Td("LeaderboardRow", map[string]any{
			"Rank":    i + 1,
			"Name":    entry.DisplayName,
			"Score":   FormatScore(entry.Score),
			"Correct": entry.Correct,
			"Total":   entry.Total,
		}))
	}
	return []Reply{{Text: b.String(), Keyboard: m.menuKeyboard()}}
}

func (m *Machine) menu(msgID string) Reply {
	return Reply{Text: m.tr.T(msgID), Keyboard: m.menuKeyboard()}
}

func (m *Machine) countPrompt(conv *Conversation) Reply {
	return Reply{
		Text:     m.tr.Td("EnterCount", map[string]any{"Max": m.quiz.Store().Count(conv.SelectedTopic)}),
		Keyboard: m.cancelKeyboard(),
	}
}

func (m *Machine) menuKeyboard() [][]string {
	rows := [][]string{
		{m.tr.T("ButtonQuick")},
		{m.tr.T("ButtonExamA")},
		{m.tr.T("ButtonExamB")},
		{m.tr.T("ButtonSetCount")},
		{m.tr.T("ButtonSelectTopic")},
	}
	if m.leaderboard != nil {
		rows = append(rows, []string{m.tr.T("ButtonLeaderboard")})
	}
	return rows
}

func (m *Machine) topicKeyboard() [][]string {
	topics := m.quiz.Store().Topics()
	rows := make([][]string, 0, len(topics)+1)
	for _, t := range topics {
		rows = append(rows, []string{t})
	}
	return append(rows, []string{m.tr.T("ButtonCancel")})
}

func (m *Machine) cancelKeyboard() [][]string {
	return [][]string{{m.tr.T("ButtonCancel")}}
}

// answerKeyboard lays out the option letters answerRowSize per row, then Skip and Cancel.
func (m *Machine) answerKeyboard(options int) [][]string {
	var rows [][]string
	for start := 0; start < options; start += answerRowSize {
		var row []string
		for slot := start; slot < options && slot < start+answerRowSize; slot++ {
			row = append(row, SlotLetter(slot))
		}
		rows = append(rows, row)
	}
	return append(rows, []string{m.tr.T("ButtonSkip"), m.tr.T("ButtonCancel")})
}

// ParseCount parses a requested question count in [1, maxCount].
func ParseCount(text string, maxCount int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrInvalidCount
	}
	if n < 1 || n > maxCount {
		return 0, ErrCountOutOfRange
	}
	return n, nil
}

// ParseAnswer maps an option letter to a displayed slot in [0, options).
func ParseAnswer(text string, options int) (int, error) {
	t := strings.ToUpper(strings.TrimSpace(text))
	if len(t) != 1 || t[0] < 'A' || t[0] > 'Z' {
		return 0, ErrInvalidOption
	}
	slot := int(t[0] - 'A')
	if slot >= options {
		return 0, ErrInvalidOption
	}
	return slot, nil
}

// SlotLetter returns the letter shown for a displayed slot: 0 -> "A".
func SlotLetter(slot int) string {
	return string(rune('A' + slot))
}

// FormatScore renders a score with two decimals.
func FormatScore(score float64) string {
	return strconv.FormatFloat(RoundScore(score), 'f', 2, 64)
}

func optionCount(question Question, scramble []int) int {
	if len(scramble) > 0 {
		return len(scramble)
	}
	return len(question.Options)
}
