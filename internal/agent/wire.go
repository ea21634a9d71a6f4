package agent

import (
	"fmt"
	"strings"

	"github.com/import-ai/omnibox-wizard-sub000/internal/llm"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ToWire maps a transcript to the OpenAI message list. Reasoning text is
// user-visible only and never travels back to the model. After each user
// message a system-role follow-up is injected describing the tools the
// caller selected and the resources already known to relate to the query,
// so the model sees its working context re-stated next to the question.
func ToWire(transcript []models.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(transcript)+2)
	for i := range transcript {
		msg := &transcript[i]
		out = append(out, llm.ChatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		})
		if msg.Role == models.RoleUser {
			if followup := contextFollowup(msg.Attrs); followup != "" {
				out = append(out, llm.ChatMessage{Role: "system", Content: followup})
			}
		}
	}
	return out
}

// contextFollowup serialises the user message's attrs as XML tags.
func contextFollowup(attrs *models.MessageAttrs) string {
	if attrs == nil {
		return ""
	}
	var b strings.Builder
	for _, sel := range attrs.Tools {
		fmt.Fprintf(&b, `<selected_tool name=%q`, sel.Name)
		if sel.NamespaceID != "" {
			fmt.Fprintf(&b, ` namespace=%q`, sel.NamespaceID)
		}
		if len(sel.VisibleResources) > 0 {
			fmt.Fprintf(&b, ` resources=%q`, strings.Join(sel.VisibleResources, ","))
		}
		b.WriteString("/>\n")
	}
	for _, res := range attrs.RelatedResources {
		fmt.Fprintf(&b, `<related_resource id=%q`, res.ResourceID)
		if res.Name != "" {
			fmt.Fprintf(&b, ` name=%q`, res.Name)
		}
		if res.Type != "" {
			fmt.Fprintf(&b, ` type=%q`, res.Type)
		}
		b.WriteString("/>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
