package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeSender struct {
	sent    []string
	typing  []string // "start"/"stop"
	sendErr error
}

func (s *fakeSender) SendText(_ context.Context, _, _, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) StartTyping(_, _ string) error {
	s.typing = append(s.typing, "start")
	return nil
}

func (s *fakeSender) StopTyping(_, _ string) error {
	s.typing = append(s.typing, "stop")
	return nil
}

type fakeGenerator struct {
	result   *llm.Result
	err      error
	requests []llm.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &llm.Result{Text: "generated reply"}, nil
}

type fakeMemories struct {
	byKey map[string]*models.ConversationMemory
	saves int
}

func newFakeMemories() *fakeMemories {
	return &fakeMemories{byKey: map[string]*models.ConversationMemory{}}
}

func (m *fakeMemories) key(agentID uuid.UUID, sessionID string) string {
	return agentID.String() + "/" + sessionID
}

func (m *fakeMemories) Get(_ context.Context, agentID uuid.UUID, sessionID string) (*models.ConversationMemory, error) {
	mem, ok := m.byKey[m.key(agentID, sessionID)]
	if !ok {
		return nil, nil
	}
	copied := *mem
	return &copied, nil
}

func (m *fakeMemories) Save(_ context.Context, memory *models.ConversationMemory) error {
	m.saves++
	copied := *memory
	m.byKey[m.key(memory.AgentID, memory.SessionID)] = &copied
	return nil
}

type fakeMutator struct {
	attrs  map[string]string
	tags   []string
	stages []string
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{attrs: map[string]string{}}
}

func (c *fakeMutator) SetAttribute(_ context.Context, _ *models.Contact, key, value string) error {
	c.attrs[key] = value
	return nil
}

func (c *fakeMutator) ApplyTagByName(_ context.Context, _ uuid.UUID, _ *models.Contact, name string) error {
	c.tags = append(c.tags, name)
	return nil
}

func (c *fakeMutator) MoveStageByName(_ context.Context, _ uuid.UUID, _ *models.Contact, name string) error {
	c.stages = append(c.stages, name)
	return nil
}

type engineFixture struct {
	engine   *Engine
	sender   *fakeSender
	gen      *fakeGenerator
	memories *fakeMemories
	mutator  *fakeMutator
	slept    []time.Duration
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		sender:   &fakeSender{},
		gen:      &fakeGenerator{},
		memories: newFakeMemories(),
		mutator:  newFakeMutator(),
	}
	f.engine = NewEngine(f.sender, f.gen, f.memories, f.mutator)
	f.engine.sleep = func(d time.Duration) { f.slept = append(f.slept, d) }
	f.engine.randInt = func(n int) int { return 0 }
	f.engine.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func qualAgent(t *testing.T) *models.Agent {
	t.Helper()
	fields, err := json.Marshal([]QualificationField{
		{Field: "budget", Question: "What budget do you have in mind?", Active: true, ContactAttribute: "budget"},
		{Field: "timeline", Question: "When are you looking to start?", Active: true},
		{Field: "skipped", Question: "inactive question", Active: false},
	})
	require.NoError(t, err)
	return &models.Agent{
		ID:                   uuid.New(),
		WorkspaceID:          uuid.New(),
		Name:                 "sales agent",
		IsActive:             true,
		QualificationEnabled: true,
		QualificationFields:  datatypes.JSON(fields),
		ContextWindow:        20,
	}
}

func testLead() *models.Contact {
	return &models.Contact{
		ID:    uuid.New(),
		Name:  "Budi",
		Phone: "628111222333",
	}
}

func (f *engineFixture) memoryOf(ag *models.Agent, contact *models.Contact) *models.ConversationMemory {
	return f.memories.byKey[f.memories.key(ag.ID, contact.Phone)]
}

func TestHandleInboundQualificationStepper(t *testing.T) {
	f := newEngineFixture()
	ag := qualAgent(t)
	contact := testLead()
	ctx := context.Background()

	// Turn 1: new session opens with the first question.
	replied, err := f.engine.HandleInbound(ctx, ag, contact, "inst", "hello")
	require.NoError(t, err)
	assert.True(t, replied)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "What budget do you have in mind?", f.sender.sent[0])

	mem := f.memoryOf(ag, contact)
	require.NotNil(t, mem)
	assert.Equal(t, 0, mem.QualificationStep)
	assert.False(t, mem.QualificationDone)

	// Turn 2: answer is recorded, next question goes out.
	replied, err = f.engine.HandleInbound(ctx, ag, contact, "inst", "around 5 million")
	require.NoError(t, err)
	assert.True(t, replied)
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "When are you looking to start?", f.sender.sent[1])
	assert.Equal(t, "around 5 million", f.mutator.attrs["budget"])

	mem = f.memoryOf(ag, contact)
	assert.Equal(t, 1, mem.QualificationStep)

	var data map[string]string
	require.NoError(t, json.Unmarshal(mem.QualificationData, &data))
	assert.Equal(t, "around 5 million", data["budget"])

	// Turn 3: last answer completes the script and the same message gets a
	// free-conversation reply.
	replied, err = f.engine.HandleInbound(ctx, ag, contact, "inst", "next month")
	require.NoError(t, err)
	assert.True(t, replied)
	require.Len(t, f.sender.sent, 3)
	assert.Equal(t, "generated reply", f.sender.sent[2])

	mem = f.memoryOf(ag, contact)
	assert.True(t, mem.QualificationDone)

	require.NoError(t, json.Unmarshal(mem.QualificationData, &data))
	assert.Equal(t, "next month", data["timeline"])
}

func TestHandleInboundPauseAndResume(t *testing.T) {
	f := newEngineFixture()
	ag := &models.Agent{
		ID:            uuid.New(),
		WorkspaceID:   uuid.New(),
		IsActive:      true,
		PauseCode:     "#human",
		ResumeKeyword: "#bot",
		ContextWindow: 20,
	}
	contact := testLead()
	ctx := context.Background()

	// Pause code triggers the acknowledgement and stops replies.
	replied, err := f.engine.HandleInbound(ctx, ag, contact, "inst", "ok #human please")
	require.NoError(t, err)
	assert.True(t, replied)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, pauseAck, f.sender.sent[0])
	assert.True(t, f.memoryOf(ag, contact).IsPaused)

	// While paused: recorded, not replied.
	replied, err = f.engine.HandleInbound(ctx, ag, contact, "inst", "anyone there?")
	require.NoError(t, err)
	assert.False(t, replied)
	assert.Len(t, f.sender.sent, 1)

	turns, err := DecodeTurns(f.memoryOf(ag, contact))
	require.NoError(t, err)
	assert.Equal(t, "anyone there?", lastTurn(turns).Content)

	// Resume keyword reactivates and the same message is answered.
	replied, err = f.engine.HandleInbound(ctx, ag, contact, "inst", "#BOT let's continue")
	require.NoError(t, err)
	assert.True(t, replied)
	assert.Len(t, f.sender.sent, 2)
	assert.False(t, f.memoryOf(ag, contact).IsPaused)
}

func TestHandleInboundToolCalls(t *testing.T) {
	f := newEngineFixture()
	f.gen.result = &llm.Result{
		Text: "Great, I noted that down!",
		ToolCalls: []llm.ToolCall{
			{Name: ToolUpdateContact, Arguments: map[string]interface{}{"field": "company", "value": "Acme"}},
			{Name: ToolApplyTag, Arguments: map[string]interface{}{"tag": "hot-lead"}},
			{Name: ToolMoveStage, Arguments: map[string]interface{}{"stage": "Negotiation"}},
		},
	}
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: uuid.New(), IsActive: true, ContextWindow: 20}
	contact := testLead()

	replied, err := f.engine.HandleInbound(context.Background(), ag, contact, "inst", "I work at Acme")
	require.NoError(t, err)
	assert.True(t, replied)

	assert.Equal(t, "Acme", f.mutator.attrs["company"])
	assert.Equal(t, []string{"hot-lead"}, f.mutator.tags)
	assert.Equal(t, []string{"Negotiation"}, f.mutator.stages)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Great, I noted that down!", f.sender.sent[0])
}

func TestHandleInboundPauseToolSilencesNextTurn(t *testing.T) {
	f := newEngineFixture()
	f.gen.result = &llm.Result{
		ToolCalls: []llm.ToolCall{{Name: ToolPauseConversation, Arguments: map[string]interface{}{}}},
	}
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: uuid.New(), IsActive: true, ContextWindow: 20}
	contact := testLead()
	ctx := context.Background()

	replied, err := f.engine.HandleInbound(ctx, ag, contact, "inst", "I want to talk to a person")
	require.NoError(t, err)
	assert.False(t, replied, "tool-only response sends nothing")
	assert.True(t, f.memoryOf(ag, contact).IsPaused)

	replied, err = f.engine.HandleInbound(ctx, ag, contact, "inst", "hello?")
	require.NoError(t, err)
	assert.False(t, replied)
	assert.Empty(t, f.sender.sent)
}

func TestHandleInboundLLMFailures(t *testing.T) {
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: uuid.New(), IsActive: true, ContextWindow: 20}

	t.Run("rate limit stays silent", func(t *testing.T) {
		f := newEngineFixture()
		f.gen.err = fmt.Errorf("openai error: %w", llm.ErrRateLimited)
		contact := testLead()

		replied, err := f.engine.HandleInbound(context.Background(), ag, contact, "inst", "hi")
		require.NoError(t, err)
		assert.False(t, replied)
		assert.Empty(t, f.sender.sent)
		// The lead's turn is still recorded.
		turns, err := DecodeTurns(f.memoryOf(ag, contact))
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})

	t.Run("quota exhausted stays silent", func(t *testing.T) {
		f := newEngineFixture()
		f.gen.err = llm.ErrQuotaExhausted
		contact := testLead()

		replied, err := f.engine.HandleInbound(context.Background(), ag, contact, "inst", "hi")
		require.NoError(t, err)
		assert.False(t, replied)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("other errors get the fallback reply", func(t *testing.T) {
		f := newEngineFixture()
		f.gen.err = fmt.Errorf("connection reset")
		contact := testLead()

		replied, err := f.engine.HandleInbound(context.Background(), ag, contact, "inst", "hi")
		require.NoError(t, err)
		assert.True(t, replied)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, fallbackReply, f.sender.sent[0])
	})
}

func TestHandleInboundContextWindow(t *testing.T) {
	f := newEngineFixture()
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: uuid.New(), IsActive: true, ContextWindow: 4}
	contact := testLead()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := f.engine.HandleInbound(ctx, ag, contact, "inst", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	last := f.gen.requests[len(f.gen.requests)-1]
	// System prompt plus at most ContextWindow turns.
	assert.LessOrEqual(t, len(last.Messages), 1+4)
	assert.Equal(t, llm.RoleSystem, last.Messages[0].Role)
}

func TestResponseDelayModes(t *testing.T) {
	randLow := func(n int) int { return 0 }
	randHigh := func(n int) int { return n - 1 }

	assert.Equal(t, time.Duration(0), ResponseDelay(&models.Agent{DelayMode: models.DelayModeNone}, randLow))
	assert.Equal(t, 7*time.Second, ResponseDelay(&models.Agent{DelayMode: models.DelayModeFixed, DelaySeconds: 7}, randLow))
	assert.Equal(t, 30*time.Second, ResponseDelay(&models.Agent{DelayMode: models.DelayModeNatural}, randLow))
	assert.Equal(t, 120*time.Second, ResponseDelay(&models.Agent{DelayMode: models.DelayModeNatural}, randHigh))
}

func TestHandleInboundNaturalDelayUsesTypingIndicator(t *testing.T) {
	f := newEngineFixture()
	f.engine.randInt = func(n int) int { return 15 }
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: uuid.New(), IsActive: true, DelayMode: models.DelayModeNatural, ContextWindow: 20}
	contact := testLead()

	replied, err := f.engine.HandleInbound(context.Background(), ag, contact, "inst", "hi")
	require.NoError(t, err)
	assert.True(t, replied)

	require.Len(t, f.slept, 1)
	assert.Equal(t, 45*time.Second, f.slept[0])
	assert.Equal(t, []string{"start", "stop"}, f.sender.typing)
}

func TestBuildSystemPromptCarriesGuardrail(t *testing.T) {
	ag := &models.Agent{Persona: "You are Ria from Acme Living.", Tone: "warm", Objective: "book showroom visits"}
	contact := &models.Contact{Name: "Budi", Source: "instagram"}

	prompt := BuildSystemPrompt(ag, contact)
	assert.Contains(t, prompt, "You are Ria from Acme Living.")
	assert.Contains(t, prompt, "Tone: warm")
	assert.Contains(t, prompt, "- name: Budi")
	assert.Contains(t, prompt, guardrail)
}
