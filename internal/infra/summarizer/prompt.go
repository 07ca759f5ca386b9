package summarizer

import (
	"fmt"
	"strings"

	"storywire/internal/usecase/summarize"
	"storywire/internal/utils/text"
)

const truncationMarker = "\n(truncated)"

// buildPrompt renders the story and its member excerpts as one instruction.
// The rendered prompt is cut to maxRunes.
func buildPrompt(req summarize.Request, maxRunes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following news story in at most %d characters. ", req.CharacterLimit)
	b.WriteString("Report what the sources agree on and mention where they disagree. Do not speculate.\n\n")
	fmt.Fprintf(&b, "Story: %s\n", req.Title)
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	for i, ex := range req.Excerpts {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n", i+1, ex.Title, ex.Source)
		if ex.Content != "" {
			b.WriteString(ex.Content)
			b.WriteByte('\n')
		}
	}

	prompt := b.String()
	if maxRunes > 0 && text.CountRunes(prompt) > maxRunes {
		prompt = text.Truncate(prompt, maxRunes) + truncationMarker
	}
	return prompt
}
