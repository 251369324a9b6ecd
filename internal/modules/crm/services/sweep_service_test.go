package services

import (
	"context"
	"testing"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/agent"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/flow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- fakes ----

type fakeQueueRepo struct {
	automations []models.AutomationQueueItem
	resumes     []models.FlowResume
	claimFails  bool

	finished map[uuid.UUID]string
	errors   map[uuid.UUID]string
	enqueued []*models.FlowResume
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{finished: map[uuid.UUID]string{}, errors: map[uuid.UUID]string{}}
}

func (f *fakeQueueRepo) EnqueueAutomation(item *models.AutomationQueueItem) error { return nil }
func (f *fakeQueueRepo) DueAutomations(now time.Time, limit int) ([]models.AutomationQueueItem, error) {
	return f.automations, nil
}
func (f *fakeQueueRepo) ClaimAutomation(id uuid.UUID) (bool, error) { return !f.claimFails, nil }
func (f *fakeQueueRepo) FinishAutomation(id uuid.UUID, status, errMsg string) error {
	f.finished[id] = status
	f.errors[id] = errMsg
	return nil
}
func (f *fakeQueueRepo) CancelPendingAutomations(contactID, automationID uuid.UUID) error {
	return nil
}
func (f *fakeQueueRepo) EnqueueResume(resume *models.FlowResume) error {
	f.enqueued = append(f.enqueued, resume)
	return nil
}
func (f *fakeQueueRepo) DueResumes(now time.Time, limit int) ([]models.FlowResume, error) {
	return f.resumes, nil
}
func (f *fakeQueueRepo) ClaimResume(id uuid.UUID) (bool, error) { return !f.claimFails, nil }
func (f *fakeQueueRepo) FinishResume(id uuid.UUID, status, errMsg string) error {
	f.finished[id] = status
	f.errors[id] = errMsg
	return nil
}

type fakeFollowUpRepo struct {
	due      []models.FollowUpQueueItem
	finished map[uuid.UUID][2]string // status, canceled reason
	enqueued []*models.FollowUpQueueItem
	canceled []string // session:reason
}

func newFakeFollowUpRepo() *fakeFollowUpRepo {
	return &fakeFollowUpRepo{finished: map[uuid.UUID][2]string{}}
}

func (f *fakeFollowUpRepo) Enqueue(item *models.FollowUpQueueItem) error {
	f.enqueued = append(f.enqueued, item)
	return nil
}
func (f *fakeFollowUpRepo) Due(now time.Time, limit int) ([]models.FollowUpQueueItem, error) {
	return f.due, nil
}
func (f *fakeFollowUpRepo) Claim(id uuid.UUID) (bool, error) { return true, nil }
func (f *fakeFollowUpRepo) Finish(id uuid.UUID, status, canceledReason, errMsg string) error {
	f.finished[id] = [2]string{status, canceledReason}
	return nil
}
func (f *fakeFollowUpRepo) CancelPendingForSession(agentID uuid.UUID, sessionID, reason string) error {
	f.canceled = append(f.canceled, sessionID+":"+reason)
	return nil
}

type fakeAutomationRepo struct {
	byID map[uuid.UUID]*models.StageAutomation
}

func (f *fakeAutomationRepo) Create(a *models.StageAutomation) error { return nil }
func (f *fakeAutomationRepo) Update(a *models.StageAutomation) error { return nil }
func (f *fakeAutomationRepo) Delete(id uuid.UUID) error              { return nil }
func (f *fakeAutomationRepo) FindByID(id uuid.UUID) (*models.StageAutomation, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAutomationRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.StageAutomation, error) {
	return nil, nil
}
func (f *fakeAutomationRepo) FindActiveByStage(stageID uuid.UUID, trigger string) ([]models.StageAutomation, error) {
	return nil, nil
}

type fakeBotRepo struct {
	byID   map[uuid.UUID]*models.Bot
	active []models.Bot
}

func (f *fakeBotRepo) Create(b *models.Bot) error { return nil }
func (f *fakeBotRepo) Update(b *models.Bot) error { return nil }
func (f *fakeBotRepo) Delete(id uuid.UUID) error  { return nil }
func (f *fakeBotRepo) FindByID(id uuid.UUID) (*models.Bot, error) {
	if b, ok := f.byID[id]; ok {
		return b, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeBotRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error) {
	return nil, nil
}
func (f *fakeBotRepo) FindActiveByWorkspace(workspaceID uuid.UUID) ([]models.Bot, error) {
	return f.active, nil
}

type fakeAgentRepo struct {
	byID   map[uuid.UUID]*models.Agent
	active *models.Agent
}

func (f *fakeAgentRepo) Create(a *models.Agent) error { return nil }
func (f *fakeAgentRepo) Update(a *models.Agent) error { return nil }
func (f *fakeAgentRepo) Delete(id uuid.UUID) error    { return nil }
func (f *fakeAgentRepo) FindByID(id uuid.UUID) (*models.Agent, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAgentRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Agent, error) {
	return nil, nil
}
func (f *fakeAgentRepo) FindActiveByWorkspace(workspaceID uuid.UUID) (*models.Agent, error) {
	return f.active, nil
}

type fakeContactRepo struct {
	byID    map[uuid.UUID]*models.Contact
	byPhone map[string]*models.Contact
	created []*models.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{byID: map[uuid.UUID]*models.Contact{}, byPhone: map[string]*models.Contact{}}
}

func (f *fakeContactRepo) add(c *models.Contact) {
	f.byID[c.ID] = c
	f.byPhone[c.Phone] = c
}

func (f *fakeContactRepo) Create(c *models.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.add(c)
	f.created = append(f.created, c)
	return nil
}
func (f *fakeContactRepo) Update(c *models.Contact) error { return nil }
func (f *fakeContactRepo) FindByID(id uuid.UUID) (*models.Contact, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeContactRepo) FindByPhone(workspaceID uuid.UUID, phone string) (*models.Contact, error) {
	if c, ok := f.byPhone[phone]; ok {
		return c, nil
	}
	return nil, nil
}
func (f *fakeContactRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Contact, error) {
	return nil, nil
}
func (f *fakeContactRepo) SetAttribute(c *models.Contact, key, value string) error { return nil }

type fakeWorkspaceRepo struct {
	ws  *models.Workspace
	err error
}

func (f *fakeWorkspaceRepo) Create(w *models.Workspace) error { return nil }
func (f *fakeWorkspaceRepo) FindByID(id uuid.UUID) (*models.Workspace, error) {
	return f.ws, f.err
}
func (f *fakeWorkspaceRepo) FindByInstanceID(instanceID string) (*models.Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.ws == nil || f.ws.InstanceID != instanceID {
		return nil, gorm.ErrRecordNotFound
	}
	return f.ws, nil
}

type fakeStageRepo struct {
	byID map[uuid.UUID]*models.Stage
}

func (f *fakeStageRepo) Create(s *models.Stage) error { return nil }
func (f *fakeStageRepo) FindByID(id uuid.UUID) (*models.Stage, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeStageRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Stage, error) {
	return nil, nil
}
func (f *fakeStageRepo) Resolve(workspaceID uuid.UUID, ref string) (*models.Stage, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeTagRepo struct {
	assigned []uuid.UUID
}

func (f *fakeTagRepo) Create(t *models.Tag) error { return nil }
func (f *fakeTagRepo) FindByWorkspace(workspaceID uuid.UUID) ([]models.Tag, error) {
	return nil, nil
}
func (f *fakeTagRepo) Resolve(workspaceID uuid.UUID, ref string) (*models.Tag, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeTagRepo) Apply(c *models.Contact, t *models.Tag) error { return nil }
func (f *fakeTagRepo) AssignedIDs(contactID uuid.UUID) ([]uuid.UUID, error) {
	return f.assigned, nil
}

type executedAction struct {
	actionType string
	config     map[string]interface{}
	instance   string
}

type fakeExecutor struct {
	actions []executedAction
	resumed []string // node ids
	err     error
}

func (f *fakeExecutor) ExecuteAction(ctx context.Context, workspaceID uuid.UUID, actionType string, config map[string]interface{}, contact *models.Contact, ch flow.Channel) error {
	f.actions = append(f.actions, executedAction{actionType: actionType, config: config, instance: ch.Instance})
	return f.err
}

func (f *fakeExecutor) Resume(ctx context.Context, bot *models.Bot, contact *models.Contact, ch flow.Channel, fromNodeID string) error {
	f.resumed = append(f.resumed, fromNodeID)
	return f.err
}

type fakeRunner struct {
	outcome   *agent.FollowUpOutcome
	gotAgent  *models.Agent
	gotCalled bool
}

func (f *fakeRunner) Process(ctx context.Context, item *models.FollowUpQueueItem, ag *models.Agent, contact *models.Contact, instance string) (*agent.FollowUpOutcome, error) {
	f.gotCalled = true
	f.gotAgent = ag
	return f.outcome, nil
}

type fakeMover struct {
	moves []uuid.UUID // stage ids
}

func (f *fakeMover) ChangeStage(ctx context.Context, contact *models.Contact, stage *models.Stage) error {
	f.moves = append(f.moves, stage.ID)
	return nil
}

// ---- fixture ----

type sweepFixture struct {
	svc         *SweepService
	queue       *fakeQueueRepo
	followups   *fakeFollowUpRepo
	automations *fakeAutomationRepo
	bots        *fakeBotRepo
	agents      *fakeAgentRepo
	contacts    *fakeContactRepo
	stages      *fakeStageRepo
	tags        *fakeTagRepo
	exec        *fakeExecutor
	runner      *fakeRunner
	mover       *fakeMover

	workspace *models.Workspace
	contact   *models.Contact
}

func newSweepFixture() *sweepFixture {
	f := &sweepFixture{
		queue:       newFakeQueueRepo(),
		followups:   newFakeFollowUpRepo(),
		automations: &fakeAutomationRepo{byID: map[uuid.UUID]*models.StageAutomation{}},
		bots:        &fakeBotRepo{byID: map[uuid.UUID]*models.Bot{}},
		agents:      &fakeAgentRepo{byID: map[uuid.UUID]*models.Agent{}},
		contacts:    newFakeContactRepo(),
		stages:      &fakeStageRepo{byID: map[uuid.UUID]*models.Stage{}},
		tags:        &fakeTagRepo{},
		exec:        &fakeExecutor{},
		runner:      &fakeRunner{},
		mover:       &fakeMover{},
	}
	f.workspace = &models.Workspace{ID: uuid.New(), Name: "Acme", InstanceID: "acme-main", IsActive: true}
	f.contact = &models.Contact{ID: uuid.New(), WorkspaceID: f.workspace.ID, Name: "Rina", Phone: "628111", Source: "whatsapp"}
	f.contacts.add(f.contact)

	ws := &fakeWorkspaceRepo{ws: f.workspace}
	f.svc = NewSweepService(
		f.queue, f.followups, f.automations, f.bots, f.agents,
		f.contacts, ws, f.stages, f.tags,
		f.exec, f.runner, f.mover, 50,
	)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *sweepFixture) addAutomation(conditions string, active bool) *models.AutomationQueueItem {
	a := &models.StageAutomation{
		ID:           uuid.New(),
		WorkspaceID:  f.workspace.ID,
		StageID:      uuid.New(),
		Trigger:      models.StageTriggerAfterTime,
		ActionType:   "send_message",
		ActionConfig: []byte(`{"text": "hello {{lead.name}}"}`),
		Conditions:   []byte(conditions),
		IsActive:     active,
	}
	f.automations.byID[a.ID] = a

	item := &models.AutomationQueueItem{
		ID:           uuid.New(),
		AutomationID: a.ID,
		ContactID:    f.contact.ID,
		WorkspaceID:  f.workspace.ID,
		Status:       models.QueueStatusPending,
	}
	f.queue.automations = append(f.queue.automations, *item)
	return item
}

// ---- tests ----

func TestSweepExecutesDueAutomation(t *testing.T) {
	f := newSweepFixture()
	item := f.addAutomation(`[]`, true)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Automations)
	require.Len(t, f.exec.actions, 1)
	assert.Equal(t, "send_message", f.exec.actions[0].actionType)
	assert.Equal(t, "acme-main", f.exec.actions[0].instance)
	assert.Equal(t, models.QueueStatusExecuted, f.queue.finished[item.ID])
}

func TestSweepCompletesAsNoOpWhenConditionsNoLongerMatch(t *testing.T) {
	f := newSweepFixture()
	item := f.addAutomation(`[{"field": "source", "operator": "equals", "value": "referral"}]`, true)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Automations)
	assert.Empty(t, f.exec.actions)
	assert.Equal(t, models.QueueStatusExecuted, f.queue.finished[item.ID])
}

func TestSweepUnsupportedConditionMarksError(t *testing.T) {
	f := newSweepFixture()
	item := f.addAutomation(`[{"field": "source", "operator": "regex", "value": ".*"}]`, true)

	_, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.exec.actions)
	assert.Equal(t, models.QueueStatusError, f.queue.finished[item.ID])
	assert.Contains(t, f.queue.errors[item.ID], "unsupported condition")
}

func TestSweepCancelsInactiveAutomation(t *testing.T) {
	f := newSweepFixture()
	item := f.addAutomation(`[]`, false)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Automations)
	assert.Empty(t, f.exec.actions)
	assert.Equal(t, models.QueueStatusCanceled, f.queue.finished[item.ID])
}

func TestSweepSkipsItemsClaimedByAnotherSweep(t *testing.T) {
	f := newSweepFixture()
	f.addAutomation(`[]`, true)
	f.queue.claimFails = true

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Automations)
	assert.Empty(t, f.exec.actions)
	assert.Empty(t, f.queue.finished)
}

func TestSweepResumesSuspendedFlow(t *testing.T) {
	f := newSweepFixture()
	bot := &models.Bot{ID: uuid.New(), WorkspaceID: f.workspace.ID, Name: "Welcome", IsActive: true}
	f.bots.byID[bot.ID] = bot
	resume := models.FlowResume{
		ID:        uuid.New(),
		BotID:     bot.ID,
		ContactID: f.contact.ID,
		NodeID:    "n3",
		Instance:  "acme-main",
		Status:    models.QueueStatusPending,
	}
	f.queue.resumes = []models.FlowResume{resume}

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resumes)
	assert.Equal(t, []string{"n3"}, f.exec.resumed)
	assert.Equal(t, models.QueueStatusExecuted, f.queue.finished[resume.ID])
}

func TestSweepCancelsResumeForInactiveBot(t *testing.T) {
	f := newSweepFixture()
	bot := &models.Bot{ID: uuid.New(), WorkspaceID: f.workspace.ID, Name: "Welcome", IsActive: false}
	f.bots.byID[bot.ID] = bot
	resume := models.FlowResume{ID: uuid.New(), BotID: bot.ID, ContactID: f.contact.ID, NodeID: "n3"}
	f.queue.resumes = []models.FlowResume{resume}

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Resumes)
	assert.Empty(t, f.exec.resumed)
	assert.Equal(t, models.QueueStatusCanceled, f.queue.finished[resume.ID])
}

func TestSweepFollowUpExecutedAndNextStepEnqueued(t *testing.T) {
	f := newSweepFixture()
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: f.workspace.ID, IsActive: true}
	f.agents.byID[ag.ID] = ag
	item := models.FollowUpQueueItem{
		ID: uuid.New(), AgentID: ag.ID, ContactID: f.contact.ID,
		SessionID: f.contact.Phone, WorkspaceID: f.workspace.ID, StepIndex: 0,
	}
	f.followups.due = []models.FollowUpQueueItem{item}
	f.runner.outcome = &agent.FollowUpOutcome{
		Status: models.QueueStatusExecuted,
		Sent:   "just checking in",
		NextStep: &models.FollowUpQueueItem{
			AgentID: ag.ID, ContactID: f.contact.ID, SessionID: f.contact.Phone, StepIndex: 1,
		},
	}

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FollowUps)
	assert.Equal(t, [2]string{models.QueueStatusExecuted, ""}, f.followups.finished[item.ID])
	require.Len(t, f.followups.enqueued, 1)
	assert.Equal(t, 1, f.followups.enqueued[0].StepIndex)
	assert.Empty(t, f.mover.moves)
}

func TestSweepFollowUpSequenceFinishedMovesContact(t *testing.T) {
	f := newSweepFixture()
	endStage := &models.Stage{ID: uuid.New(), WorkspaceID: f.workspace.ID, Name: "Cold"}
	f.stages.byID[endStage.ID] = endStage
	ag := &models.Agent{ID: uuid.New(), WorkspaceID: f.workspace.ID, IsActive: true, FollowUpStageID: &endStage.ID}
	f.agents.byID[ag.ID] = ag
	item := models.FollowUpQueueItem{
		ID: uuid.New(), AgentID: ag.ID, ContactID: f.contact.ID,
		SessionID: f.contact.Phone, WorkspaceID: f.workspace.ID, StepIndex: 1,
	}
	f.followups.due = []models.FollowUpQueueItem{item}
	f.runner.outcome = &agent.FollowUpOutcome{
		Status:           models.QueueStatusExecuted,
		Sent:             "last nudge",
		SequenceFinished: true,
	}

	_, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{endStage.ID}, f.mover.moves)
	assert.Empty(t, f.followups.enqueued)
}

func TestSweepFollowUpDeletedAgentReachesRunnerAsNil(t *testing.T) {
	f := newSweepFixture()
	item := models.FollowUpQueueItem{
		ID: uuid.New(), AgentID: uuid.New(), ContactID: f.contact.ID,
		SessionID: f.contact.Phone, WorkspaceID: f.workspace.ID,
	}
	f.followups.due = []models.FollowUpQueueItem{item}
	f.runner.outcome = &agent.FollowUpOutcome{
		Status:         models.QueueStatusCanceled,
		CanceledReason: models.CancelReasonAgentDisabled,
	}

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.FollowUps)
	assert.True(t, f.runner.gotCalled)
	assert.Nil(t, f.runner.gotAgent)
	assert.Equal(t, [2]string{models.QueueStatusCanceled, models.CancelReasonAgentDisabled}, f.followups.finished[item.ID])
}
