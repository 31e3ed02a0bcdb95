package pipelines

import (
	"context"
	"fmt"
	"strings"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/pipeline"
)

const (
	categoryActionable    = "actionable"
	categoryInformational = "informational"
)

// Signals scanned during classification.
var (
	urgentSignals = []string{"urgent", "asap", "immediately", "critical", "blocker", "eod", "today"}
	actionSignals = []string{
		"can you", "could you", "please", "need", "require", "deadline",
		"review", "feedback", "let me know", "follow up", "following up",
		"schedule", "availability", "thoughts", "discuss", "action item",
	}
	listMarkers = []string{"- ", "* ", "1.", "2.", "+ "}
	topicWords  = []string{
		"api", "migration", "integration", "deadline", "budget", "review",
		"approval", "meeting", "schedule", "timeline", "status", "update",
		"launch", "contract", "invoice",
	}
)

// Follow-up cadence per priority.
var (
	followupDays = map[models.Priority]int{
		models.PriorityP0: 0,
		models.PriorityP1: 1,
		models.PriorityP2: 2,
		models.PriorityP3: 3,
	}
	followupSeverity = map[models.Priority]models.Severity{
		models.PriorityP0: models.SeverityCritical,
		models.PriorityP1: models.SeverityHigh,
		models.PriorityP2: models.SeverityMedium,
		models.PriorityP3: models.SeverityLow,
	}
)

const maxRelated = 3

// Inbox builds the inbox pipeline: classify the item, gather related records
// for actionable ones, plan a response, then drain the plan one action per
// iteration before the completion check decides the terminal status.
func Inbox(deps Deps) *pipeline.Definition {
	return &pipeline.Definition{
		Name:          InboxName,
		Start:         "classify",
		MaxIterations: 10,
		Steps: map[string]pipeline.StepFn{
			"classify":         deps.classifyItem,
			"gather_context":   deps.gatherContext,
			"plan_actions":     deps.planActions,
			"execute_action":   deps.executeAction,
			"check_completion": deps.checkCompletion,
		},
		Edges: map[string]pipeline.Edge{
			"classify": {
				Condition: func(state *models.ExecutionState) string {
					if mapString(stateMap(state, "analysis"), "category") == categoryActionable {
						return "gather_context"
					}

					return "plan_actions"
				},
			},
			"gather_context": {Next: "plan_actions"},
			"plan_actions":   {Next: "execute_action"},
			"execute_action": {
				Condition: func(state *models.ExecutionState) string {
					if len(decodeActions(state.Context["planned_actions"])) > 0 {
						return "execute_action"
					}

					return "check_completion"
				},
				LoopTarget:   "execute_action",
				AcceptTarget: "check_completion",
			},
			"check_completion": {
				Condition: func(state *models.ExecutionState) string {
					if state.Terminal() || state.Suspended() {
						return pipeline.END
					}

					return "plan_actions"
				},
				LoopTarget: "plan_actions",
			},
		},
	}
}

// classifyItem grades urgency and actionability from the payload text. The
// reasoner's label is recorded alongside for downstream steps; when the
// backend fails the heuristics stand alone.
func (d Deps) classifyItem(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	payload := itemPayload(state)
	subject := payloadText(payload, "subject", "title")
	body := payloadText(payload, "body", "content", "text", "description")
	text := strings.ToLower(strings.TrimSpace(subject + " " + body))

	urgent := containsAny(text, urgentSignals)
	actionable := containsAny(text, actionSignals) || containsAny(text, listMarkers)

	category := categoryInformational
	priority := models.PriorityP3

	// An item-provided category wins over the heuristics; urgency signals
	// override either way.
	switch preCategory := payloadText(payload, "category"); {
	case urgent:
		category, priority = categoryActionable, models.PriorityP0
	case preCategory == categoryActionable:
		category, priority = categoryActionable, models.PriorityP1
	case preCategory == categoryInformational:
	case actionable:
		category, priority = categoryActionable, models.PriorityP1
	case strings.Contains(text, "?"):
		category, priority = categoryActionable, models.PriorityP2
	}

	analysis := map[string]any{
		"category": category,
		"priority": string(priority),
		"urgent":   urgent,
		"topics":   topicsIn(text),
	}

	if classification, err := d.Reasoner.Classify(ctx, text); err == nil {
		analysis["label"] = classification.Label
		analysis["confidence"] = classification.Confidence
	} else {
		d.Logger.WarnContext(ctx, "Classification backend failed, keeping heuristics", "error", err)
	}

	return &models.StepDelta{
		Context:          map[string]any{"analysis": analysis},
		Reasoning:        []string{fmt.Sprintf("Classified item as %s (%s)", category, priority)},
		AdvanceIteration: true,
	}, nil
}

// gatherContext collects open tasks and meetings touching the classified
// topics so planning can link new work to existing records.
func (d Deps) gatherContext(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	topics := mapStrings(stateMap(state, "analysis"), "topics")

	openTasks, err := d.Persistence.TaskRepository().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to gather related tasks: %w", err)
	}

	meetings, err := d.Persistence.MeetingRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to gather related meetings: %w", err)
	}

	relatedTasks := make([]any, 0, maxRelated)

	for _, task := range openTasks {
		if len(relatedTasks) == maxRelated {
			break
		}

		if matchesTopic(task.Title+" "+task.Description, topics) {
			relatedTasks = append(relatedTasks, map[string]any{"id": task.ID, "title": task.Title})
		}
	}

	relatedMeetings := make([]any, 0, maxRelated)

	for _, meeting := range meetings {
		if len(relatedMeetings) == maxRelated {
			break
		}

		if matchesTopic(meeting.Title, topics) {
			relatedMeetings = append(relatedMeetings, map[string]any{"id": meeting.ID, "title": meeting.Title})
		}
	}

	return &models.StepDelta{
		Context: map[string]any{"related": map[string]any{
			"tasks":    relatedTasks,
			"meetings": relatedMeetings,
		}},
		Reasoning: []string{fmt.Sprintf("Found %d related tasks and %d related meetings",
			len(relatedTasks), len(relatedMeetings))},
	}, nil
}

// planActions builds the action queue: actionable items get a response task,
// a reply draft and a follow-up scaled to the priority; informational items
// with discussion markers get a review task. The queue is drained by
// executeAction one entry per iteration.
func (d Deps) planActions(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	payload := itemPayload(state)
	analysis := stateMap(state, "analysis")
	category := mapString(analysis, "category")

	priority := models.Priority(mapString(analysis, "priority"))
	if !models.ValidPriority(string(priority)) {
		priority = models.PriorityP2
	}

	subject := payloadText(payload, "subject", "title")
	if subject == "" {
		subject = "incoming item"
	}

	sender := payloadText(payload, "from", "sender")

	sourceRef := ""
	if state.Item != nil {
		sourceRef = state.Item.ID
	}

	var plan []plannedAction

	stepContext := map[string]any{}

	if category == categoryActionable {
		plan = append(plan, plannedAction{
			Type:   "create_task",
			Reason: fmt.Sprintf("actionable %s item needs a tracked response", priority),
			Payload: map[string]any{
				"title":       clipTitle("Respond to: " + subject),
				"description": describeItem(payload, sender),
				"priority":    string(priority),
				"source_ref":  sourceRef,
			},
		})

		if sender != "" {
			body, err := d.Reasoner.Generate(ctx, "Draft a short acknowledgement reply to: "+subject)
			if err != nil {
				d.Logger.WarnContext(ctx, "Reply generation failed, using stock text", "error", err)
				body = "Thanks, received. I will get back to you shortly."
			}

			plan = append(plan, plannedAction{
				Type:   "create_draft",
				Reason: "prepared reply for review",
				Payload: map[string]any{
					"to":          sender,
					"subject":     "Re: " + subject,
					"body":        body,
					"in_reply_to": sourceRef,
				},
			})
		}

		plan = append(plan, plannedAction{
			Type:   "create_followup",
			Reason: fmt.Sprintf("%s item needs a follow-up in %d days", priority, followupDays[priority]),
			Payload: map[string]any{
				"title":       clipTitle("Follow up: " + subject),
				"due_in_days": float64(followupDays[priority]),
				"severity":    string(followupSeverity[priority]),
				"source_ref":  sourceRef,
			},
		})

		if tasks := mapSlice(stateMap(state, "related"), "tasks"); len(tasks) > 0 {
			if first, ok := tasks[0].(map[string]any); ok {
				plan = append(plan, plannedAction{
					Type:   "create_followup",
					Reason: "new item touches an existing task",
					Payload: map[string]any{
						"title":       clipTitle("Revisit task: " + mapString(first, "title")),
						"due_in_days": float64(followupDays[priority]),
						"severity":    string(models.SeverityMedium),
						"source_ref":  mapString(first, "id"),
					},
				})
			}
		}

		stepContext["requires_task"] = true
	} else if containsAny(strings.ToLower(payloadText(payload, "body", "content", "text")), listMarkers) {
		plan = append(plan, plannedAction{
			Type:   "create_task",
			Reason: "informational item carries discussion points worth a review",
			Payload: map[string]any{
				"title":       clipTitle("Review: " + subject),
				"description": describeItem(payload, sender),
				"priority":    string(models.PriorityP3),
				"source_ref":  sourceRef,
			},
		})

		stepContext["requires_task"] = true
	}

	stepContext["planned_actions"] = encodeActions(plan)

	return &models.StepDelta{
		Context:   stepContext,
		Reasoning: []string{fmt.Sprintf("Planned %d actions for %s item", len(plan), category)},
	}, nil
}

// executeAction pops one action from the queue and dispatches it. The edge
// loops back here while the queue holds more.
func (d Deps) executeAction(ctx context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	queue := decodeActions(state.Context["planned_actions"])

	delta := &models.StepDelta{AdvanceIteration: true}

	if len(queue) == 0 {
		delta.Reasoning = []string{"No actions left to execute"}

		return delta, nil
	}

	d.dispatch(ctx, state, delta, queue[0])
	delta.Context = map[string]any{"planned_actions": encodeActions(queue[1:])}

	return delta, nil
}

// checkCompletion decides the terminal status once the queue is drained:
// awaiting_approval when the gateway holds deferred actions, completed
// otherwise. An exhausted iteration budget accepts the best effort so far.
func (d Deps) checkCompletion(_ context.Context, state *models.ExecutionState) (*models.StepDelta, error) {
	queue := decodeActions(state.Context["planned_actions"])

	if len(queue) == 0 && state.Iteration >= 2 {
		status := models.SessionStatusCompleted
		if len(state.PendingApprovals) > 0 {
			status = models.SessionStatusAwaitingApproval
		}

		return &models.StepDelta{
			Status: status,
			Reasoning: []string{fmt.Sprintf("Processing complete: %d actions recorded, %d awaiting approval",
				len(state.ActionsTaken), len(state.PendingApprovals))},
		}, nil
	}

	if state.Iteration >= state.MaxIterations {
		return &models.StepDelta{
			Status:    models.SessionStatusCompleted,
			Reasoning: []string{"Iteration budget exhausted, accepting the work done so far"},
		}, nil
	}

	return &models.StepDelta{
		Reasoning: []string{"More work pending, planning another round"},
	}, nil
}

func topicsIn(text string) []string {
	topics := make([]string, 0, 5)

	for _, word := range topicWords {
		if strings.Contains(text, word) {
			topics = append(topics, word)
		}

		if len(topics) == 5 {
			break
		}
	}

	return topics
}

func matchesTopic(text string, topics []string) bool {
	lowered := strings.ToLower(text)

	for _, topic := range topics {
		if strings.Contains(lowered, topic) {
			return true
		}
	}

	return false
}

func describeItem(payload map[string]any, sender string) string {
	var parts []string

	if sender != "" {
		parts = append(parts, "From: "+sender)
	}

	if subject := payloadText(payload, "subject", "title"); subject != "" {
		parts = append(parts, "Subject: "+subject)
	}

	if body := payloadText(payload, "body", "content", "text"); body != "" {
		parts = append(parts, "Preview: "+clipLine(body))
	}

	if len(parts) == 0 {
		return "Review and respond to this item."
	}

	return strings.Join(parts, "\n")
}
