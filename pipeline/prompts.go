package pipeline

import (
	"fmt"
	"strings"
)

// Prompt builders for the pipeline stages. Each asks the model for a small
// JSON object so the node can parse structure, not prose.

func clarifyPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("You triage incoming research requests. Decide whether the request below is specific enough to research, or whether one clarifying question is needed first.\n\n")
	sb.WriteString("Request: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRespond with only a JSON object: ")
	sb.WriteString(`{"need_clarification": bool, "question": "the single question to ask, or empty"}`)
	return sb.String()
}

func briefPrompt(state GraphState) string {
	var sb strings.Builder
	sb.WriteString("Write a research brief for the request below: a short framing paragraph followed by a bulleted list of distinct research directions, each a concrete question or angle to investigate.\n\n")
	sb.WriteString("Request: ")
	sb.WriteString(state.Query)
	sb.WriteString("\n")
	if len(state.Messages) > 1 {
		for _, msg := range state.Messages[1:] {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
		}
	}
	if state.BriefFeedback != "" {
		sb.WriteString("\nYour previous brief was rejected: ")
		sb.WriteString(state.BriefFeedback)
		sb.WriteString("\nRevise it to address this.\n")
	}
	return sb.String()
}

func supervisorPrompt(state GraphState, maxTasks int, unresolved []string) string {
	var sb strings.Builder
	sb.WriteString("You supervise a research team. Given the brief and the notes gathered so far, either declare the research complete or propose the next round of research tasks.\n\n")
	sb.WriteString("Brief:\n")
	sb.WriteString(state.Brief)
	sb.WriteString("\n\n")
	if len(state.CompressedNotes) > 0 {
		sb.WriteString("Notes gathered so far:\n")
		for _, note := range state.CompressedNotes {
			fmt.Fprintf(&sb, "- [%s] %s\n", note.Topic, summarize(note.Content, 200))
		}
		sb.WriteString("\n")
	}
	if len(unresolved) > 0 {
		sb.WriteString("Topics that failed last round and remain unresolved: ")
		sb.WriteString(strings.Join(unresolved, ", "))
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Propose at most %d tasks with distinct topics.\n", maxTasks)
	sb.WriteString("Respond with only a JSON object: ")
	sb.WriteString(`{"complete": bool, "tasks": [{"topic": "...", "tools": ["tool_name"]}]}`)
	return sb.String()
}

func taskPrompt(topic, brief string) string {
	var sb strings.Builder
	sb.WriteString("You are a researcher. Investigate the topic below using the available tools, then write a concise findings note with sources.\n\n")
	sb.WriteString("Topic: ")
	sb.WriteString(topic)
	sb.WriteString("\n\nOverall brief for context:\n")
	sb.WriteString(brief)
	sb.WriteString("\n\nCall tools as needed. When you have enough material, reply with your findings as plain text.")
	return sb.String()
}

func reportPrompt(state GraphState) string {
	var sb strings.Builder
	sb.WriteString("Write the final research report for the request below, using only the gathered notes. Cite sources inline in [brackets]. Also write a standalone executive summary.\n\n")
	sb.WriteString("Request: ")
	sb.WriteString(state.Query)
	sb.WriteString("\n\nBrief:\n")
	sb.WriteString(state.Brief)
	sb.WriteString("\n\nNotes:\n")
	for _, note := range state.CompressedNotes {
		fmt.Fprintf(&sb, "## %s\n%s\n", note.Topic, note.Content)
		if len(note.Sources) > 0 {
			fmt.Fprintf(&sb, "Sources: %s\n", strings.Join(note.Sources, ", "))
		}
		sb.WriteString("\n")
	}
	if state.QCFeedback != "" {
		sb.WriteString("Your previous report was rejected: ")
		sb.WriteString(state.QCFeedback)
		sb.WriteString("\nRevise it to address this.\n\n")
	}
	sb.WriteString("Respond with only a JSON object: ")
	sb.WriteString(`{"report": "...", "executive_summary": "..."}`)
	return sb.String()
}

func summarize(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
