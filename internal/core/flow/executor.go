package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/condition"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/google/uuid"
)

// Step caps. A fresh walk gets 50 steps; a resumed walk gets 20 so a chain
// of wait nodes cannot stretch one trigger into unbounded work.
const (
	MaxFlowSteps   = 50
	MaxResumeSteps = 20
)

// Executor walks a bot flow node by node, performing each node's side effect
// and logging every step. A node failure halts the walk but is never fatal to
// the caller: the webhook request that triggered the flow already succeeded.
type Executor struct {
	gateway  Gateway
	contacts ContactWriter
	tags     TagStore
	stages   StageStore
	logs     ExecutionLogStore
	history  HistoryStore
	cursors  CursorStore
	resumes  ResumeQueue
	client   *http.Client
	now      func() time.Time
}

func NewExecutor(
	gateway Gateway,
	contacts ContactWriter,
	tags TagStore,
	stages StageStore,
	logs ExecutionLogStore,
	history HistoryStore,
	cursors CursorStore,
	resumes ResumeQueue,
) *Executor {
	return &Executor{
		gateway:  gateway,
		contacts: contacts,
		tags:     tags,
		stages:   stages,
		logs:     logs,
		history:  history,
		cursors:  cursors,
		resumes:  resumes,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// stepOutcome is what executing one node tells the walk loop.
type stepOutcome struct {
	message string // audit log line
	branch  string // edge label to follow, condition nodes only
	suspend bool   // stop walking without following an edge (wait nodes)
}

// Run starts a fresh walk from the flow's entry point. The trigger sentinel
// (an execution log entry with an empty node id) is written before any node
// runs so trigger dedup sees this run immediately.
func (e *Executor) Run(ctx context.Context, bot *models.Bot, contact *models.Contact, ch Channel) error {
	nodes, edges, err := ParseDefinition(bot.Nodes, bot.Edges)
	if err != nil {
		e.appendLog(ctx, bot, contact, "", models.ExecStatusError, err.Error())
		return err
	}

	start := FindStartNode(nodes, edges)
	if start == nil {
		log.Printf("⚠️ Bot %s has no start node, skipping execution for contact %s", bot.ID, contact.ID)
		e.appendLog(ctx, bot, contact, "", models.ExecStatusSkipped, "flow has no start node")
		return nil
	}

	e.appendLog(ctx, bot, contact, "", models.ExecStatusSuccess, "flow triggered")
	return e.walk(ctx, bot, contact, ch, nodes, edges, start, MaxFlowSteps)
}

// Resume continues a suspended walk from the node a wait pointed at.
func (e *Executor) Resume(ctx context.Context, bot *models.Bot, contact *models.Contact, ch Channel, fromNodeID string) error {
	nodes, edges, err := ParseDefinition(bot.Nodes, bot.Edges)
	if err != nil {
		e.appendLog(ctx, bot, contact, fromNodeID, models.ExecStatusError, err.Error())
		return err
	}

	from := findNode(nodes, fromNodeID)
	if from == nil {
		// Flow was edited while the resume sat in the queue.
		log.Printf("⚠️ Resume node %s no longer exists in bot %s, skipping", fromNodeID, bot.ID)
		e.appendLog(ctx, bot, contact, fromNodeID, models.ExecStatusSkipped, "resume node no longer exists")
		return nil
	}

	return e.walk(ctx, bot, contact, ch, nodes, edges, from, MaxResumeSteps)
}

func (e *Executor) walk(ctx context.Context, bot *models.Bot, contact *models.Contact, ch Channel, nodes []Node, edges []Edge, current *Node, maxSteps int) error {
	steps := 0
	for current != nil {
		steps++
		if steps > maxSteps {
			log.Printf("⚠️ Bot %s hit the %d-step cap for contact %s, halting", bot.ID, maxSteps, contact.ID)
			e.appendLog(ctx, bot, contact, current.ID, models.ExecStatusSkipped, fmt.Sprintf("step cap of %d reached", maxSteps))
			return nil
		}

		outcome, err := e.executeNode(ctx, bot, contact, ch, current, nodes, edges)
		if err != nil {
			log.Printf("❌ Node %s (%s) failed for contact %s: %v", current.ID, current.Type, contact.ID, err)
			e.appendLog(ctx, bot, contact, current.ID, models.ExecStatusError, err.Error())
			return nil
		}

		e.appendLog(ctx, bot, contact, current.ID, models.ExecStatusSuccess, outcome.message)
		if outcome.suspend {
			return nil
		}

		current = NextNode(current.ID, nodes, edges, outcome.branch)
	}
	return nil
}

func (e *Executor) executeNode(ctx context.Context, bot *models.Bot, contact *models.Contact, ch Channel, node *Node, nodes []Node, edges []Edge) (stepOutcome, error) {
	switch node.Type {
	case NodeSendMessage:
		return e.sendMessage(ctx, ch, contact, node.Config)
	case NodeWait:
		return e.suspendAtWait(ctx, bot, contact, ch, node, nodes, edges)
	case NodeCondition:
		return e.evaluateCondition(ctx, contact, node.Config)
	case NodeTag:
		return e.applyTag(ctx, bot.WorkspaceID, contact, node.Config)
	case NodeMoveStage:
		return e.moveStage(ctx, bot.WorkspaceID, contact, node.Config)
	case NodeRoundRobin:
		return e.roundRobin(ctx, bot, contact, node)
	case NodeListMessage:
		return e.sendListMessage(ctx, ch, contact, node.Config)
	case NodeReact:
		return e.react(ctx, ch, contact, node.Config)
	case NodeComment:
		return e.comment(ctx, bot.WorkspaceID, contact, node.Config)
	case NodeAction:
		return e.genericAction(ctx, bot.WorkspaceID, contact, ch, node.Config)
	default:
		return stepOutcome{}, fmt.Errorf("unknown node type: %s", node.Type)
	}
}

// ExecuteAction runs a single queue-dispatched action outside a flow walk.
// The stage-automation sweep reuses the node semantics here so an automation
// action behaves exactly like the flow node of the same type.
func (e *Executor) ExecuteAction(ctx context.Context, workspaceID uuid.UUID, actionType string, config map[string]interface{}, contact *models.Contact, ch Channel) error {
	var err error
	switch actionType {
	case NodeSendMessage:
		_, err = e.sendMessage(ctx, ch, contact, config)
	case NodeTag:
		_, err = e.applyTag(ctx, workspaceID, contact, config)
	case NodeMoveStage:
		_, err = e.moveStage(ctx, workspaceID, contact, config)
	case NodeListMessage:
		_, err = e.sendListMessage(ctx, ch, contact, config)
	case NodeReact:
		_, err = e.react(ctx, ch, contact, config)
	case NodeComment:
		_, err = e.comment(ctx, workspaceID, contact, config)
	case NodeAction:
		_, err = e.genericAction(ctx, workspaceID, contact, ch, config)
	default:
		return fmt.Errorf("action type %q cannot be queue-dispatched", actionType)
	}
	return err
}

func (e *Executor) sendMessage(ctx context.Context, ch Channel, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	if contact.Phone == "" {
		return stepOutcome{}, fmt.Errorf("contact has no deliverable address")
	}

	text := RenderTemplate(configString(cfg, "message"), contact)
	if text == "" {
		return stepOutcome{}, fmt.Errorf("send_message node has an empty message")
	}

	if err := e.gateway.SendText(ctx, ch.Instance, contact.Phone, text); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to send message: %w", err)
	}
	return stepOutcome{message: "message sent"}, nil
}

// suspendAtWait enqueues a resume pointing at the node after the wait and
// stops the walk. No in-request sleeping: delivery latency is the sweep's
// problem, not the webhook handler's.
func (e *Executor) suspendAtWait(ctx context.Context, bot *models.Bot, contact *models.Contact, ch Channel, node *Node, nodes []Node, edges []Edge) (stepOutcome, error) {
	next := NextNode(node.ID, nodes, edges, "")
	if next == nil {
		return stepOutcome{message: "wait node has no continuation, flow complete", suspend: true}, nil
	}

	seconds := configInt(node.Config, "seconds")
	if seconds <= 0 {
		seconds = 1
	}

	resume := &models.FlowResume{
		BotID:       bot.ID,
		ContactID:   contact.ID,
		WorkspaceID: bot.WorkspaceID,
		NodeID:      next.ID,
		Instance:    ch.Instance,
		ExecuteAt:   e.now().Add(time.Duration(seconds) * time.Second),
		Status:      models.QueueStatusPending,
	}
	if err := e.resumes.Enqueue(ctx, resume); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to enqueue resume: %w", err)
	}

	return stepOutcome{message: fmt.Sprintf("suspended for %ds, resuming at node %s", seconds, next.ID), suspend: true}, nil
}

func (e *Executor) evaluateCondition(ctx context.Context, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	conds, err := decodeConditions(cfg["conditions"])
	if err != nil {
		return stepOutcome{}, err
	}

	tagIDs, err := e.tags.AssignedIDs(ctx, contact.ID)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to load contact tags: %w", err)
	}

	switch condition.Evaluate(conds, contact, tagIDs) {
	case condition.Matched:
		return stepOutcome{message: "condition matched", branch: BranchTrue}, nil
	case condition.Unmatched:
		return stepOutcome{message: "condition unmatched", branch: BranchFalse}, nil
	default:
		return stepOutcome{}, fmt.Errorf("condition node uses an unsupported field or operator")
	}
}

func (e *Executor) applyTag(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	ref := configString(cfg, "tag")
	if ref == "" {
		return stepOutcome{}, fmt.Errorf("tag node has no tag reference")
	}

	tag, err := e.tags.Resolve(ctx, workspaceID, ref)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to resolve tag %q: %w", ref, err)
	}

	if err := e.tags.Apply(ctx, contact, tag); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to apply tag %q: %w", tag.Name, err)
	}
	return stepOutcome{message: fmt.Sprintf("tag %q applied", tag.Name)}, nil
}

func (e *Executor) moveStage(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	ref := configString(cfg, "stage")
	if ref == "" {
		return stepOutcome{}, fmt.Errorf("move_stage node has no stage reference")
	}

	stage, err := e.stages.Resolve(ctx, workspaceID, ref)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to resolve stage %q: %w", ref, err)
	}

	if err := e.contacts.MoveStage(ctx, contact, stage); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to move contact to stage %q: %w", stage.Name, err)
	}
	return stepOutcome{message: fmt.Sprintf("moved to stage %q", stage.Name)}, nil
}

func (e *Executor) roundRobin(ctx context.Context, bot *models.Bot, contact *models.Contact, node *Node) (stepOutcome, error) {
	candidates := configStringSlice(node.Config, "candidates")
	if len(candidates) == 0 {
		return stepOutcome{}, fmt.Errorf("round_robin node has no candidates")
	}
	// Stable order regardless of how the editor serialized the list, so the
	// persisted cursor position always means the same candidate.
	sort.Strings(candidates)

	idx, err := e.cursors.Advance(ctx, bot.ID, node.ID, len(candidates))
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to advance round-robin cursor: %w", err)
	}
	owner := candidates[idx%len(candidates)]

	if err := e.contacts.AssignOwner(ctx, contact, owner); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to assign owner %q: %w", owner, err)
	}
	return stepOutcome{message: fmt.Sprintf("assigned to %q (rotation %d)", owner, idx)}, nil
}

func (e *Executor) sendListMessage(ctx context.Context, ch Channel, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	if contact.Phone == "" {
		return stepOutcome{}, fmt.Errorf("contact has no deliverable address")
	}

	payload, err := decodeListPayload(cfg)
	if err != nil {
		return stepOutcome{}, err
	}
	payload.Body = RenderTemplate(payload.Body, contact)

	if err := e.gateway.SendList(ctx, ch.Instance, contact.Phone, payload); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to send list message: %w", err)
	}
	return stepOutcome{message: "list message sent"}, nil
}

func (e *Executor) react(ctx context.Context, ch Channel, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	if ch.MessageID == "" {
		return stepOutcome{}, fmt.Errorf("react node requires an originating message")
	}

	emoji := configString(cfg, "emoji")
	if emoji == "" {
		emoji = "👍"
	}

	if err := e.gateway.SendReaction(ctx, ch.Instance, contact.Phone, ch.MessageID, emoji); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to send reaction: %w", err)
	}
	return stepOutcome{message: fmt.Sprintf("reacted with %s", emoji)}, nil
}

func (e *Executor) comment(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	text := RenderTemplate(configString(cfg, "text"), contact)
	if text == "" {
		return stepOutcome{}, fmt.Errorf("comment node has no text")
	}

	entry := &models.ContactHistory{
		ContactID:   contact.ID,
		WorkspaceID: workspaceID,
		Kind:        models.HistoryComment,
		Detail:      text,
	}
	if err := e.history.Append(ctx, entry); err != nil {
		return stepOutcome{}, fmt.Errorf("failed to append comment: %w", err)
	}
	return stepOutcome{message: "comment added"}, nil
}

func (e *Executor) genericAction(ctx context.Context, workspaceID uuid.UUID, contact *models.Contact, ch Channel, cfg map[string]interface{}) (stepOutcome, error) {
	switch sub := configString(cfg, "action_type"); sub {
	case "webhook":
		return e.dispatchWebhook(ctx, contact, cfg)
	case "note":
		text := RenderTemplate(configString(cfg, "text"), contact)
		if text == "" {
			return stepOutcome{}, fmt.Errorf("note action has no text")
		}
		entry := &models.ContactHistory{
			ContactID:   contact.ID,
			WorkspaceID: workspaceID,
			Kind:        models.HistoryNote,
			Detail:      text,
		}
		if err := e.history.Append(ctx, entry); err != nil {
			return stepOutcome{}, fmt.Errorf("failed to append note: %w", err)
		}
		return stepOutcome{message: "note added"}, nil
	case "reassign":
		owner := configString(cfg, "owner")
		if owner == "" {
			return stepOutcome{}, fmt.Errorf("reassign action has no owner")
		}
		if err := e.contacts.AssignOwner(ctx, contact, owner); err != nil {
			return stepOutcome{}, fmt.Errorf("failed to reassign contact: %w", err)
		}
		return stepOutcome{message: fmt.Sprintf("reassigned to %q", owner)}, nil
	default:
		return stepOutcome{}, fmt.Errorf("unknown action type: %q", sub)
	}
}

// dispatchWebhook POSTs a contact snapshot to an operator-configured HTTPS
// endpoint. Delivery is best effort: a downstream failure is logged but never
// halts the walk.
func (e *Executor) dispatchWebhook(ctx context.Context, contact *models.Contact, cfg map[string]interface{}) (stepOutcome, error) {
	url := configString(cfg, "url")
	if !strings.HasPrefix(url, "https://") {
		return stepOutcome{}, fmt.Errorf("webhook url must use https")
	}

	body, err := json.Marshal(map[string]interface{}{
		"contact_id": contact.ID,
		"name":       contact.Name,
		"phone":      contact.Phone,
		"source":     contact.Source,
		"value":      contact.Value,
		"owner":      contact.Owner,
	})
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("⚠️ Webhook dispatch to %s failed: %v", url, err)
		return stepOutcome{message: "webhook dispatch failed (best effort)"}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("⚠️ Webhook %s returned status %d", url, resp.StatusCode)
		return stepOutcome{message: fmt.Sprintf("webhook returned status %d (best effort)", resp.StatusCode)}, nil
	}
	return stepOutcome{message: "webhook dispatched"}, nil
}

func (e *Executor) appendLog(ctx context.Context, bot *models.Bot, contact *models.Contact, nodeID, status, message string) {
	entry := &models.ExecutionLog{
		BotID:       bot.ID,
		ContactID:   contact.ID,
		WorkspaceID: bot.WorkspaceID,
		NodeID:      nodeID,
		Status:      status,
		Message:     message,
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		log.Printf("⚠️ Failed to append execution log for bot %s: %v", bot.ID, err)
	}
}

func decodeConditions(raw interface{}) ([]condition.Condition, error) {
	if raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read condition config: %w", err)
	}
	var conds []condition.Condition
	if err := json.Unmarshal(encoded, &conds); err != nil {
		return nil, fmt.Errorf("failed to parse condition config: %w", err)
	}
	return conds, nil
}

func decodeListPayload(cfg map[string]interface{}) (ListPayload, error) {
	payload := ListPayload{
		Title:      configString(cfg, "title"),
		Body:       configString(cfg, "body"),
		ButtonText: configString(cfg, "button_text"),
	}
	if payload.Body == "" {
		return ListPayload{}, fmt.Errorf("list_message node has no body")
	}

	sections, _ := cfg["sections"].([]interface{})
	for _, s := range sections {
		m, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		section := ListSection{Title: configString(m, "title")}
		rows, _ := m["rows"].([]interface{})
		for _, r := range rows {
			rm, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			section.Rows = append(section.Rows, ListRow{
				ID:          configString(rm, "id"),
				Title:       configString(rm, "title"),
				Description: configString(rm, "description"),
			})
		}
		payload.Sections = append(payload.Sections, section)
	}

	if len(payload.Sections) == 0 {
		return ListPayload{}, fmt.Errorf("list_message node has no sections")
	}
	return payload, nil
}
