package analysis

import (
	"fmt"
	"strings"

	"github.com/Montinou/interview-companion-sub000/store"
)

const filterSystemPrompt = `You are a fast triage monitor watching a live technical interview.
You receive a short new chunk of conversation plus recent context.
Decide whether the chunk deserves deep analysis. Escalate when the chunk
contains a substantive technical claim, a contradiction with earlier
statements, a strong or weak answer, or a moment where the interviewer
could use a follow-up question. Do NOT escalate filler, small talk,
logistics, or restatements of things already analyzed.

Respond with JSON:
{"escalate": bool, "reason": "one line", "quick_note": "short observation or empty",
 "severity": "critical"|"warning"|"info"|"success"|"none", "topic": "topic or empty"}`

const deepSystemPrompt = `You are an expert technical interview analyst. You receive a new chunk
of a live interview, the reason it was escalated, recent transcript
context, the prior analysis state, and a list of insights already
generated. Produce zero or more NEW insights about the chunk.

Rules:
- Never repeat or rephrase an insight from the already-generated list.
- Every evidence value MUST be an exact quote copied verbatim from the
  new chunk. Quote, don't fabricate. Use null when nothing fits.
- Types: "red-flag" (concerning signal), "green-flag" (strong signal),
  "suggestion" (follow-up question the interviewer should ask),
  "note" (neutral observation), "contradiction" (conflicts with an
  earlier statement).
- Severities: "critical", "warning", "info", "success".
- response_quality rates the candidate's latest answers, 1-10.
- running_scores carries per-dimension 1-10 scores updated from the
  prior state, dimensions: "technical", "communication", "problem_solving".

Respond with JSON:
{"insights": [{"type": "...", "severity": "...", "content": "...",
  "suggestion": null, "topic": null, "evidence": null,
  "response_quality": null}],
 "sentiment": "positive"|"neutral"|"negative",
 "running_scores": {"technical": 5, "communication": 5, "problem_solving": 5}}`

const roleSystemPrompt = `You are analyzing the opening of a technical interview with two diarized
speakers. The interviewer (host) asks questions, sets the agenda, and
explains logistics. The candidate (guest) answers, describes their own
experience. Decide which speaker id is which.

Respond with JSON:
{"host": "<speaker id>", "guest": "<speaker id>", "confidence": 0.0-1.0}`

const scorecardSystemPrompt = `You are writing the final evaluation of a completed technical interview.
You receive the full speaker-labeled transcript and every insight the
live analysis produced, grouped by type. Synthesize a scorecard.

Rules:
- Scores are integers 1-10 per dimension: "technical", "communication",
  "problem_solving", "culture_fit".
- recommendation is one of "strong-hire", "hire", "no-hire", "strong-no-hire".
- Every strength and weakness MUST carry a quote copied verbatim from
  the transcript.

Respond with JSON:
{"scores": {"technical": 5, "communication": 5, "problem_solving": 5, "culture_fit": 5},
 "overall_score": 5, "recommendation": "hire",
 "strengths": [{"point": "...", "quote": "..."}],
 "weaknesses": [{"point": "...", "quote": "..."}],
 "summary": "...", "notes": "..."}`

func buildFilterPrompt(batch string, rc RecentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview elapsed: %d minutes. Insights so far: %d.\n\n", rc.ElapsedMinutes, rc.InsightCount)
	if len(rc.Batches) > 0 {
		b.WriteString("Recent context:\n")
		b.WriteString(strings.Join(rc.Batches, "\n---\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("New chunk:\n")
	b.WriteString(batch)
	return b.String()
}

func buildDeepPrompt(batch, reason string, rc RecentContext, state State, prior []store.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Escalation reason: %s\n\n", reason)

	if state.Initial {
		b.WriteString("Prior analysis state: beginning of interview, no prior analysis.\n\n")
	} else {
		fmt.Fprintf(&b, "Prior analysis state: sentiment=%s", state.Sentiment)
		if len(state.Topics) > 0 {
			fmt.Fprintf(&b, ", topics covered: %s", strings.Join(state.Topics, ", "))
		}
		if len(state.RunningScores) > 0 {
			fmt.Fprintf(&b, ", running scores: %v", state.RunningScores)
		}
		if state.LastContent != "" {
			fmt.Fprintf(&b, "\nLast finding: %s", state.LastContent)
		}
		b.WriteString("\n\n")
	}

	if len(prior) > 0 {
		b.WriteString("Insights already generated (do not repeat any of these):\n")
		for _, in := range prior {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", in.Type, in.Severity, in.Content)
		}
		b.WriteString("\n")
	}

	if len(rc.Batches) > 0 {
		b.WriteString("Recent transcript context:\n")
		b.WriteString(strings.Join(rc.Batches, "\n---\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("New chunk to analyze:\n")
	b.WriteString(batch)
	return b.String()
}

func buildRolePrompt(entries []store.TranscriptEntry) string {
	var b strings.Builder
	b.WriteString("Earliest utterances, in order:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "Speaker %s: %s\n", e.SpeakerID, e.Text)
	}
	return b.String()
}

func buildScorecardPrompt(transcriptText string, insights []store.Insight) string {
	byType := map[string][]store.Insight{}
	for _, in := range insights {
		byType[in.Type] = append(byType[in.Type], in)
	}

	var b strings.Builder
	b.WriteString("Full transcript:\n")
	b.WriteString(transcriptText)
	b.WriteString("\n\n")

	for _, group := range []struct {
		heading string
		typ     string
	}{
		{"Red flags", store.InsightRedFlag},
		{"Green flags", store.InsightGreenFlag},
		{"Contradictions", store.InsightContradiction},
	} {
		if len(byType[group.typ]) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", group.heading)
		for _, in := range byType[group.typ] {
			fmt.Fprintf(&b, "- [%s] %s\n", in.Severity, in.Content)
		}
		b.WriteString("\n")
	}

	other := 0
	for typ, group := range byType {
		if typ == store.InsightRedFlag || typ == store.InsightGreenFlag || typ == store.InsightContradiction {
			continue
		}
		if other == 0 {
			b.WriteString("Other observations:\n")
		}
		for _, in := range group {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", in.Type, in.Severity, in.Content)
		}
		other += len(group)
	}
	return b.String()
}
