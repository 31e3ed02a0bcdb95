// Package rulebased implements a deterministic Reasoner backed by keyword
// tables and template output. It needs no network and no model, which makes it
// the default backend and the one used in tests.
package rulebased

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cfreitas/attenda/pkg/reasoner"
)

// intentTable pairs each label with the keywords that indicate it. Order
// matters: the first label with at least one hit wins.
var intentTable = []struct {
	label    string
	keywords []string
}{
	{reasoner.LabelEmail, []string{"email", "inbox", "message", "reply", "draft", "urgent email"}},
	{reasoner.LabelMeeting, []string{"meeting", "mom", "minutes", "transcript", "agenda"}},
	{reasoner.LabelTask, []string{"task", "todo", "plan", "deadline", "priority", "workload", "my tasks"}},
	{reasoner.LabelWellness, []string{"wellness", "stress", "burnout", "break", "health", "at risk"}},
	{reasoner.LabelFollowup, []string{"followup", "nudge", "reminder", "overdue"}},
	{reasoner.LabelReport, []string{"report", "summary", "eod", "weekly", "productivity", "end-of-day"}},
	{reasoner.LabelBriefing, []string{"brief", "briefing", "overview", "status", "daily", "morning", "catch me up", "what's going on"}},
}

// Reasoner classifies by keyword lookup and generates from fixed templates.
type Reasoner struct{}

// New creates a rule-based Reasoner.
func New() *Reasoner {
	return &Reasoner{}
}

// Classify matches text against the intent table. Two or more keyword hits
// give confidence 0.7, a single hit 0.5; with no hits at all the text is
// labeled chat at 0.3.
func (r *Reasoner) Classify(_ context.Context, text string) (reasoner.Classification, error) {
	lowered := strings.ToLower(text)

	for _, entry := range intentTable {
		hits := 0

		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				hits++
			}
		}

		if hits == 0 {
			continue
		}

		confidence := 0.5
		if hits > 1 {
			confidence = 0.7
		}

		return reasoner.Classification{Label: entry.label, Confidence: confidence}, nil
	}

	return reasoner.Classification{Label: reasoner.LabelChat, Confidence: 0.3}, nil
}

// Generate dispatches on markers in the prompt. A prompt carrying a
// "Transcript:" section yields meeting minutes as JSON; prioritization and
// follow-up prompts get fixed advice lines; anything else is acknowledged.
func (r *Reasoner) Generate(_ context.Context, prompt string) (string, error) {
	if _, transcript, found := strings.Cut(prompt, "Transcript:"); found {
		return minutesFromTranscript(transcript)
	}

	lowered := strings.ToLower(prompt)

	if strings.Contains(lowered, "priorit") {
		return "Focus on P0/P1 items first and allocate two or three focused blocks. Communicate blockers early.", nil
	}

	if strings.Contains(lowered, "reminder") || strings.Contains(lowered, "follow up") || strings.Contains(lowered, "followup") {
		return "Quick reminder: please share a short update or flag anything blocking progress.", nil
	}

	return "Acknowledged.", nil
}

// minutes is the JSON document produced for meeting transcripts.
type minutes struct {
	Summary      string   `json:"summary"`
	Decisions    []string `json:"decisions"`
	ActionItems  []string `json:"action_items"`
	Risks        []string `json:"risks"`
	Dependencies []string `json:"dependencies"`
}

var speakerPrefix = regexp.MustCompile(`(?i)^speaker \d+(?: \([^)]*\))?:\s*`)

var (
	decisionMarkers   = []string{"decided", "agreed", "approved", "confirmed", "let's do", "we'll go with"}
	actionMarkers     = []string{"i'll", "we'll", "i will", "we will", "will send", "let me", "i can have"}
	riskMarkers       = []string{"risk", "concern", "worried", "could fail", "blocker", "delay", "tight", "challenge"}
	dependencyMarkers = []string{"need access", "waiting for", "depends on", "requires", "need from"}
	greetingStarts    = []string{"thanks", "thank you", "welcome", "hi ", "hello", "good morning", "good afternoon"}
)

// minutesFromTranscript scans transcript lines for decision, action, risk and
// dependency markers and assembles the minutes document. Speaker prefixes of
// the form "Speaker 1 (Name, Org):" are stripped before matching.
func minutesFromTranscript(transcript string) (string, error) {
	doc := minutes{
		Summary:      "Meeting discussion captured.",
		Decisions:    []string{},
		ActionItems:  []string{},
		Risks:        []string{},
		Dependencies: []string{},
	}

	var summaryParts []string

	for _, line := range strings.Split(transcript, "\n") {
		clean := strings.TrimSpace(speakerPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if clean == "" {
			continue
		}

		lowered := strings.ToLower(clean)

		if len(clean) > 20 && containsAny(lowered, decisionMarkers) {
			doc.Decisions = append(doc.Decisions, clip(clean))
		}

		if len(clean) > 15 && containsAny(lowered, actionMarkers) {
			doc.ActionItems = append(doc.ActionItems, clip(clean))
		}

		if len(clean) > 15 && containsAny(lowered, riskMarkers) {
			doc.Risks = append(doc.Risks, clip(clean))
		}

		if len(clean) > 15 && containsAny(lowered, dependencyMarkers) {
			doc.Dependencies = append(doc.Dependencies, clip(clean))
		}

		if len(summaryParts) < 3 && len(clean) > 40 && !startsWithAny(lowered, greetingStarts) {
			summaryParts = append(summaryParts, clip(clean))
		}
	}

	if len(summaryParts) > 0 {
		doc.Summary = strings.Join(summaryParts, " ")
	}

	doc.Decisions = dedupe(doc.Decisions)
	doc.ActionItems = dedupe(doc.ActionItems)
	doc.Risks = dedupe(doc.Risks)
	doc.Dependencies = dedupe(doc.Dependencies)

	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode minutes: %w", err)
	}

	return string(encoded), nil
}

const (
	maxLineLength = 200
	maxSectionLen = 5
)

func clip(line string) string {
	if len(line) > maxLineLength {
		return line[:maxLineLength]
	}

	return line
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}

func startsWithAny(text string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}

	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		key := strings.ToLower(item)
		if len(key) > 50 {
			key = key[:50]
		}

		if seen[key] {
			continue
		}

		seen[key] = true

		result = append(result, item)
		if len(result) == maxSectionLen {
			break
		}
	}

	return result
}
