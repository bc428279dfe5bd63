package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/prompt"
)

var govSchemePrompt = prompt.Template{
	System: `You are an assistant that helps Indian farmers understand government schemes.

Given a user's query, retrieve and explain relevant schemes in a simple, localized format.

For each scheme, provide:
- **Scheme Name**
- **Eligibility**
- **Benefits**
- **How to Apply** (brief steps)

At the end of your response, include a Markdown-formatted table summarizing all the schemes with the following columns:
| Scheme Name | Eligibility | Benefits | How to Apply |

Ensure the language is clear and avoids jargon.

---

Relevant Documents:
{{.context}}

---

Now answer the user's question:
{{.query}}`,
	User: "{{.query}}",
}

type GovSchemeRequest struct {
	Query string `json:"query"`
}

type GovSchemeResponse struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// ExplainSchemes answers a question about government schemes from the
// indexed scheme documents.
func (e *Engine) ExplainSchemes(ctx context.Context, req GovSchemeRequest) (*GovSchemeResponse, error) {
	r := e.begin(ctx, "govscheme")
	if strings.TrimSpace(req.Query) == "" {
		return nil, r.fail(invalid("Query not provided"))
	}
	r.enter(StageValidated)

	chunks, err := e.retrieve(ctx, req.Query)
	if err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageEnriched)

	raw, err := e.complete(ctx, r, completion{
		Template:    govSchemePrompt,
		Vars:        map[string]any{"query": req.Query},
		Chunks:      chunks,
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, err
	}

	r.done()
	return &GovSchemeResponse{Query: req.Query, Response: raw}, nil
}
