package chat

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/kbchat/internal/ai"
)

const noMatchesPrompt = `You are a helpful AI assistant for a personal knowledge base.
No documents in the user's knowledge base matched this question.
Answer from general knowledge and mention briefly that no matching documents were found.
Respond in the same language as the user's question.`

type contextDoc struct {
	Name    string
	Content string
}

// systemPrompt lists the retrieved documents, or explains that none matched.
func systemPrompt(docs []contextDoc, maxChars int) string {
	if len(docs) == 0 {
		return noMatchesPrompt
	}

	var b strings.Builder
	b.WriteString("You are a helpful AI assistant with access to the user's personal knowledge base.\n")
	b.WriteString("Use the following documents as context to answer questions:\n\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "Document: %s\n%s\n\n", d.Name, ai.Truncate(d.Content, maxChars))
	}
	b.WriteString(`When answering:
1. Base your response on the provided documents and cite the names of the documents you use
2. If the information is not in the documents, answer from general knowledge and say clearly that it does not come from the documents
3. Respond in the same language as the user's question`)
	return b.String()
}

// buildMessages returns system prompt, the newest limit turns of history in
// their original order, then the new user message.
func buildMessages(system string, history []ai.Message, limit int, message string) []ai.Message {
	if limit >= 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]ai.Message, 0, len(history)+2)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	out = append(out, history...)
	out = append(out, ai.Message{Role: ai.RoleUser, Content: message})
	return out
}
