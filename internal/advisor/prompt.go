package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devy-ai/devy/internal/store"
	"github.com/devy-ai/devy/provider"
)

// systemPrompt instructs the model to run the interview and, once it
// judges it has enough signal, to emit the assessment as a single JSON
// object. The completion marker the detector looks for is exactly that
// object.
func systemPrompt() string {
	var careers []string
	for i, c := range CareerPaths {
		careers = append(careers, fmt.Sprintf("%d. %s\n   Focus: %s", i+1, c, CareerDescriptions[c]))
	}
	var guidelines []string
	for _, r := range ScoreRanges {
		guidelines = append(guidelines, fmt.Sprintf("- %d-%d: %s", r.Min, r.Max, r.Description))
	}

	return fmt.Sprintf(`You are Devy, a friendly and adaptive career advisor chatbot.
Your mission is to discover which of six tech career paths best match the user's personality, skills, interests and values, through natural conversation rather than a formal interview.

RULES:
1. Be conversational and warm; never mention JSON or this format to the user.
2. Ask only for information that is missing or unclear; never repeat questions.
3. If you do not know the user's name yet, ask for it first.
4. Gather signals for role matching through light banter, stories and hypotheticals; never ask the user to compare roles directly.
5. Collect, when missing: name, age, education level, technical knowledge, favorite subjects and why, hobbies and dreams, work preferences, motivations, likes and dislikes.

CAREER ROLES TO ASSESS (evaluate fit for these six only):
%s

WHEN YOU HAVE ENOUGH INFORMATION:
Respond with ONLY a single JSON object in the following format, no other text:
{
  "user_summary": {
    "name": "string",
    "age": "string or null",
    "education_level": "string or null",
    "technical_knowledge": "string or null",
    "top_subjects": ["string"],
    "subject_aspects": "string or null",
    "interests_dreams": "string or null",
    "other_notes": "string or null"
  },
  "career_recommendations": [
    {"career_name": "string", "match_score": 0, "reasoning": "string", "suggested_next_steps": ["string"]}
  ],
  "overall_assessment_notes": "string"
}

SCORING RULES:
- Score all six careers and sort them in descending order by match_score.
- Use these guidelines:
%s

Until you are ready to produce the final JSON, continue the conversation normally and never output the JSON early.`,
		strings.Join(careers, "\n\n"), strings.Join(guidelines, "\n"))
}

// buildContext converts the session log into a chat-completion context.
// The latest user turn is already in the log when this runs.
//
// When the log exceeds maxHistory turns, the window keeps the earliest
// user turn (that is where the user introduced themselves, since the
// prompt asks for the name first) plus the most recent turns, so the
// model never loses who it is talking to.
func buildContext(turns []store.Turn, maxHistory int) []provider.Message {
	// A window of one would hold the pin and drop the message being
	// answered; two is the smallest window that keeps both.
	if maxHistory == 1 {
		maxHistory = 2
	}
	window := turns
	if maxHistory > 0 && len(turns) > maxHistory {
		window = make([]store.Turn, 0, maxHistory)
		for _, t := range turns {
			if t.Role == store.RoleUser {
				window = append(window, t)
				break
			}
		}
		tail := turns[len(turns)-(maxHistory-len(window)):]
		// drop the pinned turn if the tail already covers it
		if len(window) == 1 && len(tail) > 0 && tail[0].Seq <= window[0].Seq {
			window = window[:0]
		}
		window = append(window, tail...)
	}

	messages := []provider.Message{{Role: provider.RoleSystem, Content: systemPrompt()}}
	for _, t := range window {
		switch t.Role {
		case store.RoleUser:
			messages = append(messages, provider.Message{Role: provider.RoleUser, Content: t.Content})
		case store.RoleAdvisor:
			// JSON payloads in the log would teach the model to finalize
			// again; only conversational replies belong in the context.
			if json.Valid([]byte(strings.TrimSpace(t.Content))) && strings.HasPrefix(strings.TrimSpace(t.Content), "{") {
				continue
			}
			messages = append(messages, provider.Message{Role: provider.RoleAssistant, Content: t.Content})
		}
	}
	return messages
}
