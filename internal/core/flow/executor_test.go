package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var testContact = models.Contact{
	ID:         uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	Name:       "Rina",
	Phone:      "6281234567890",
	Source:     "instagram",
	Value:      "1500",
	Attributes: datatypes.JSON([]byte(`{"plan_tier":"gold"}`)),
}

type sentText struct {
	instance, address, text string
}

type fakeGateway struct {
	texts     []sentText
	reactions []string
	lists     []ListPayload
	failSend  bool
}

func (g *fakeGateway) SendText(_ context.Context, instance, address, text string) error {
	if g.failSend {
		return fmt.Errorf("gateway unavailable")
	}
	g.texts = append(g.texts, sentText{instance, address, text})
	return nil
}

func (g *fakeGateway) SendReaction(_ context.Context, _, _, messageID, emoji string) error {
	g.reactions = append(g.reactions, messageID+":"+emoji)
	return nil
}

func (g *fakeGateway) SendList(_ context.Context, _, _ string, list ListPayload) error {
	g.lists = append(g.lists, list)
	return nil
}

type fakeContacts struct {
	owners []string
	stages []uuid.UUID
}

func (c *fakeContacts) AssignOwner(_ context.Context, contact *models.Contact, owner string) error {
	contact.Owner = owner
	c.owners = append(c.owners, owner)
	return nil
}

func (c *fakeContacts) MoveStage(_ context.Context, contact *models.Contact, stage *models.Stage) error {
	contact.StageID = &stage.ID
	c.stages = append(c.stages, stage.ID)
	return nil
}

type fakeTags struct {
	known    map[string]*models.Tag
	applied  []uuid.UUID
	assigned []uuid.UUID
}

func (t *fakeTags) Resolve(_ context.Context, _ uuid.UUID, ref string) (*models.Tag, error) {
	if tag, ok := t.known[ref]; ok {
		return tag, nil
	}
	return nil, fmt.Errorf("tag not found: %s", ref)
}

func (t *fakeTags) Apply(_ context.Context, _ *models.Contact, tag *models.Tag) error {
	t.applied = append(t.applied, tag.ID)
	return nil
}

func (t *fakeTags) AssignedIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return t.assigned, nil
}

type fakeStages struct {
	known map[string]*models.Stage
}

func (s *fakeStages) Resolve(_ context.Context, _ uuid.UUID, ref string) (*models.Stage, error) {
	if stage, ok := s.known[ref]; ok {
		return stage, nil
	}
	return nil, fmt.Errorf("stage not found: %s", ref)
}

type fakeLogs struct {
	entries []models.ExecutionLog
}

func (l *fakeLogs) Append(_ context.Context, entry *models.ExecutionLog) error {
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeLogs) byStatus(status string) []models.ExecutionLog {
	var out []models.ExecutionLog
	for _, e := range l.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type fakeHistory struct {
	entries []models.ContactHistory
}

func (h *fakeHistory) Append(_ context.Context, entry *models.ContactHistory) error {
	h.entries = append(h.entries, *entry)
	return nil
}

type fakeCursors struct {
	positions map[string]int
}

func (c *fakeCursors) Advance(_ context.Context, botID uuid.UUID, nodeID string, count int) (int, error) {
	if c.positions == nil {
		c.positions = map[string]int{}
	}
	key := botID.String() + "/" + nodeID
	idx := c.positions[key]
	c.positions[key] = (idx + 1) % count
	return idx, nil
}

type fakeResumes struct {
	items []models.FlowResume
}

func (r *fakeResumes) Enqueue(_ context.Context, resume *models.FlowResume) error {
	r.items = append(r.items, *resume)
	return nil
}

type execFixture struct {
	exec     *Executor
	gateway  *fakeGateway
	contacts *fakeContacts
	tags     *fakeTags
	stages   *fakeStages
	logs     *fakeLogs
	history  *fakeHistory
	cursors  *fakeCursors
	resumes  *fakeResumes
}

func newExecFixture() *execFixture {
	f := &execFixture{
		gateway:  &fakeGateway{},
		contacts: &fakeContacts{},
		tags:     &fakeTags{known: map[string]*models.Tag{}},
		stages:   &fakeStages{known: map[string]*models.Stage{}},
		logs:     &fakeLogs{},
		history:  &fakeHistory{},
		cursors:  &fakeCursors{},
		resumes:  &fakeResumes{},
	}
	f.exec = NewExecutor(f.gateway, f.contacts, f.tags, f.stages, f.logs, f.history, f.cursors, f.resumes)
	f.exec.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func botWith(t *testing.T, nodes []Node, edges []Edge) *models.Bot {
	t.Helper()
	nodesJSON, err := json.Marshal(nodes)
	require.NoError(t, err)
	edgesJSON, err := json.Marshal(edges)
	require.NoError(t, err)
	return &models.Bot{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "test bot",
		Nodes:       datatypes.JSON(nodesJSON),
		Edges:       datatypes.JSON(edgesJSON),
		IsActive:    true,
	}
}

func TestRunLinearFlowWritesSentinelAndSteps(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{
			{ID: "n1", Type: NodeSendMessage, Config: map[string]interface{}{"message": "Hi {{lead.name}}"}},
			{ID: "n2", Type: NodeComment, Config: map[string]interface{}{"text": "greeted"}},
		},
		[]Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "inst-1", MessageID: "msg-1"}))

	require.Len(t, f.gateway.texts, 1)
	assert.Equal(t, "Hi Rina", f.gateway.texts[0].text)
	assert.Equal(t, "inst-1", f.gateway.texts[0].instance)
	assert.Equal(t, contact.Phone, f.gateway.texts[0].address)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, models.HistoryComment, f.history.entries[0].Kind)

	// Sentinel first, then one success entry per node.
	require.Len(t, f.logs.entries, 3)
	assert.Empty(t, f.logs.entries[0].NodeID)
	assert.Equal(t, models.ExecStatusSuccess, f.logs.entries[0].Status)
	assert.Equal(t, "n1", f.logs.entries[1].NodeID)
	assert.Equal(t, "n2", f.logs.entries[2].NodeID)
}

func TestRunConditionBranching(t *testing.T) {
	nodes := []Node{
		{ID: "cond", Type: NodeCondition, Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"field": "value", "operator": "greater_than", "value": "1000"},
			},
		}},
		{ID: "big", Type: NodeSendMessage, Config: map[string]interface{}{"message": "big spender"}},
		{ID: "small", Type: NodeSendMessage, Config: map[string]interface{}{"message": "regular"}},
	}
	edges := []Edge{
		{ID: "e1", Source: "cond", Target: "big", BranchLabel: "true"},
		{ID: "e2", Source: "cond", Target: "small", BranchLabel: "false"},
	}

	t.Run("matched takes true branch", func(t *testing.T) {
		f := newExecFixture()
		contact := testContact // value 1500
		require.NoError(t, f.exec.Run(context.Background(), botWith(t, nodes, edges), &contact, Channel{Instance: "i"}))
		require.Len(t, f.gateway.texts, 1)
		assert.Equal(t, "big spender", f.gateway.texts[0].text)
	})

	t.Run("unmatched takes false branch", func(t *testing.T) {
		f := newExecFixture()
		contact := testContact
		contact.Value = "200"
		require.NoError(t, f.exec.Run(context.Background(), botWith(t, nodes, edges), &contact, Channel{Instance: "i"}))
		require.Len(t, f.gateway.texts, 1)
		assert.Equal(t, "regular", f.gateway.texts[0].text)
	})

	t.Run("unsupported condition halts with error log", func(t *testing.T) {
		f := newExecFixture()
		contact := testContact
		badNodes := append([]Node{}, nodes...)
		badNodes[0] = Node{ID: "cond", Type: NodeCondition, Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"field": "mood", "operator": "equals", "value": "happy"},
			},
		}}
		require.NoError(t, f.exec.Run(context.Background(), botWith(t, badNodes, edges), &contact, Channel{Instance: "i"}))
		assert.Empty(t, f.gateway.texts)
		require.Len(t, f.logs.byStatus(models.ExecStatusError), 1)
	})
}

func TestRunWaitSuspendsInsteadOfSleeping(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{
			{ID: "n1", Type: NodeComment, Config: map[string]interface{}{"text": "before wait"}},
			{ID: "w", Type: NodeWait, Config: map[string]interface{}{"seconds": float64(300)}},
			{ID: "n2", Type: NodeSendMessage, Config: map[string]interface{}{"message": "later"}},
		},
		[]Edge{
			{ID: "e1", Source: "n1", Target: "w"},
			{ID: "e2", Source: "w", Target: "n2"},
		},
	)

	start := time.Now()
	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "inst-7"}))
	assert.Less(t, time.Since(start), time.Second, "wait must not block the caller")

	// Nothing after the wait ran.
	assert.Empty(t, f.gateway.texts)

	require.Len(t, f.resumes.items, 1)
	resume := f.resumes.items[0]
	assert.Equal(t, bot.ID, resume.BotID)
	assert.Equal(t, "n2", resume.NodeID, "resume points past the wait node")
	assert.Equal(t, "inst-7", resume.Instance)
	assert.Equal(t, models.QueueStatusPending, resume.Status)
	assert.Equal(t, f.exec.now().Add(5*time.Minute), resume.ExecuteAt)
}

func TestResumeContinuesFromStoredNode(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{
			{ID: "n1", Type: NodeComment, Config: map[string]interface{}{"text": "x"}},
			{ID: "n2", Type: NodeSendMessage, Config: map[string]interface{}{"message": "welcome back"}},
		},
		[]Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	)

	require.NoError(t, f.exec.Resume(context.Background(), bot, &contact, Channel{Instance: "i"}, "n2"))

	require.Len(t, f.gateway.texts, 1)
	assert.Equal(t, "welcome back", f.gateway.texts[0].text)
	// No sentinel on resume.
	for _, e := range f.logs.entries {
		assert.NotEmpty(t, e.NodeID)
	}
}

func TestResumeSkipsWhenNodeWasEdited(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{{ID: "n1", Type: NodeComment, Config: map[string]interface{}{"text": "x"}}},
		nil,
	)

	require.NoError(t, f.exec.Resume(context.Background(), bot, &contact, Channel{}, "deleted-node"))
	assert.Empty(t, f.gateway.texts)
	require.Len(t, f.logs.byStatus(models.ExecStatusSkipped), 1)
}

func TestRunStepCapBoundsCyclicFlow(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	// start -> a <-> b loop
	bot := botWith(t,
		[]Node{
			{ID: "start", Type: NodeComment, Config: map[string]interface{}{"text": "go"}},
			{ID: "a", Type: NodeComment, Config: map[string]interface{}{"text": "a"}},
			{ID: "b", Type: NodeComment, Config: map[string]interface{}{"text": "b"}},
		},
		[]Edge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e3", Source: "b", Target: "a"},
		},
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{}))

	assert.Len(t, f.history.entries, MaxFlowSteps)
	skipped := f.logs.byStatus(models.ExecStatusSkipped)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Message, "step cap")
}

func TestRoundRobinRotatesThroughCandidates(t *testing.T) {
	f := newExecFixture()

	bot := botWith(t,
		[]Node{{ID: "rr", Type: NodeRoundRobin, Config: map[string]interface{}{
			"candidates": []interface{}{"agent-a", "agent-b", "agent-c"},
		}}},
		nil,
	)

	var got []string
	for i := 0; i < 4; i++ {
		contact := testContact
		contact.ID = uuid.New()
		require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{}))
		got = append(got, contact.Owner)
	}

	assert.Equal(t, []string{"agent-a", "agent-b", "agent-c", "agent-a"}, got)
}

func TestReactRequiresOriginatingMessage(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{{ID: "r", Type: NodeReact, Config: map[string]interface{}{"emoji": "🔥"}}},
		nil,
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "i"}))
	assert.Empty(t, f.gateway.reactions)
	require.Len(t, f.logs.byStatus(models.ExecStatusError), 1)

	f = newExecFixture()
	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "i", MessageID: "msg-9"}))
	require.Len(t, f.gateway.reactions, 1)
	assert.Equal(t, "msg-9:🔥", f.gateway.reactions[0])
}

func TestNodeFailureHaltsWalkWithoutError(t *testing.T) {
	f := newExecFixture()
	f.gateway.failSend = true
	contact := testContact

	bot := botWith(t,
		[]Node{
			{ID: "n1", Type: NodeSendMessage, Config: map[string]interface{}{"message": "hi"}},
			{ID: "n2", Type: NodeComment, Config: map[string]interface{}{"text": "never"}},
		},
		[]Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "i"}))
	assert.Empty(t, f.history.entries, "walk halts at the failed node")
	require.Len(t, f.logs.byStatus(models.ExecStatusError), 1)
	assert.Equal(t, "n1", f.logs.byStatus(models.ExecStatusError)[0].NodeID)
}

func TestMoveStageAndTagNodes(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	stage := &models.Stage{ID: uuid.New(), Name: "Negotiation"}
	tag := &models.Tag{ID: uuid.New(), Name: "VIP"}
	f.stages.known["Negotiation"] = stage
	f.tags.known["VIP"] = tag

	bot := botWith(t,
		[]Node{
			{ID: "t", Type: NodeTag, Config: map[string]interface{}{"tag": "VIP"}},
			{ID: "s", Type: NodeMoveStage, Config: map[string]interface{}{"stage": "Negotiation"}},
		},
		[]Edge{{ID: "e1", Source: "t", Target: "s"}},
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{}))
	assert.Equal(t, []uuid.UUID{tag.ID}, f.tags.applied)
	assert.Equal(t, []uuid.UUID{stage.ID}, f.contacts.stages)
	require.NotNil(t, contact.StageID)
	assert.Equal(t, stage.ID, *contact.StageID)
}

func TestGenericActionWebhookRequiresHTTPS(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{{ID: "a", Type: NodeAction, Config: map[string]interface{}{
			"action_type": "webhook",
			"url":         "http://insecure.example.com/hook",
		}}},
		nil,
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{}))
	errs := f.logs.byStatus(models.ExecStatusError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "https")
}

func TestExecuteActionQueueDispatch(t *testing.T) {
	f := newExecFixture()
	contact := testContact
	wsID := uuid.New()

	err := f.exec.ExecuteAction(context.Background(), wsID, NodeSendMessage,
		map[string]interface{}{"message": "reminder for {{lead.name}}"}, &contact, Channel{Instance: "i"})
	require.NoError(t, err)
	require.Len(t, f.gateway.texts, 1)
	assert.Equal(t, "reminder for Rina", f.gateway.texts[0].text)

	err = f.exec.ExecuteAction(context.Background(), wsID, NodeWait, nil, &contact, Channel{})
	assert.ErrorContains(t, err, "cannot be queue-dispatched")

	err = f.exec.ExecuteAction(context.Background(), wsID, NodeRoundRobin, nil, &contact, Channel{})
	assert.Error(t, err)
}

func TestListMessageNode(t *testing.T) {
	f := newExecFixture()
	contact := testContact

	bot := botWith(t,
		[]Node{{ID: "l", Type: NodeListMessage, Config: map[string]interface{}{
			"title":       "Menu",
			"body":        "Pick one, {{lead.name}}",
			"button_text": "Open",
			"sections": []interface{}{
				map[string]interface{}{
					"title": "Plans",
					"rows": []interface{}{
						map[string]interface{}{"id": "p1", "title": "Basic", "description": "Free"},
						map[string]interface{}{"id": "p2", "title": "Pro"},
					},
				},
			},
		}}},
		nil,
	)

	require.NoError(t, f.exec.Run(context.Background(), bot, &contact, Channel{Instance: "i"}))
	require.Len(t, f.gateway.lists, 1)
	list := f.gateway.lists[0]
	assert.Equal(t, "Pick one, Rina", list.Body)
	require.Len(t, list.Sections, 1)
	assert.Len(t, list.Sections[0].Rows, 2)
}
