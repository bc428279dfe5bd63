package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/ingest"
	"github.com/agri-assist/backend/internal/prompt"
)

const (
	referenceQueryRunes = 500
	snippetRunes        = 200
	unknownSource       = "<unknown>"
)

type TranslateRequest struct {
	PDF            []byte
	TargetLanguage string
}

type Reference struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

type TranslateResponse struct {
	TranslatedDocument string      `json:"translated_document"`
	References         []Reference `json:"references"`
}

var translatePrompt = prompt.Template{
	System: "You are an expert in explaining agricultural and government documents to rural farmers. " +
		"Instead of directly translating, summarize and explain the content in very simple and clear terms " +
		"in the target language ({{.target_language}}). Use a farmer-friendly tone. Preserve any important data or rules, " +
		"but avoid complex language. If needed, use bullet points or sections for better clarity.",
	User: "Explain the following document in {{.target_language}}:\n\n{{.document}}",
}

// TranslateDocument explains a PDF in plain language in the target
// language and lists indexed documents related to it.
func (e *Engine) TranslateDocument(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	r := e.begin(ctx, "translate")
	if len(req.PDF) == 0 {
		return nil, r.fail(invalid("No PDF file provided."))
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return nil, r.fail(invalid("No target language specified."))
	}
	text, err := ingest.ExtractPDFText(ctx, req.PDF)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			r.log.WithError(err).Debug("PDF text extraction failed")
		}
		return nil, r.fail(invalid("PDF appears empty or unreadable."))
	}
	r.enter(StageValidated)

	refsF := Async(ctx, func(ctx context.Context) ([]index.Chunk, error) {
		return e.retrieve(ctx, truncateRunes(text, referenceQueryRunes))
	})

	raw, err := e.complete(ctx, r, completion{
		Template: translatePrompt,
		Vars: map[string]any{
			"target_language": req.TargetLanguage,
			"document":        strings.TrimSpace(text),
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, err
	}

	chunks, err := refsF.Await(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageEnriched)

	r.done()
	return &TranslateResponse{
		TranslatedDocument: raw,
		References:         references(chunks),
	}, nil
}

func references(chunks []index.Chunk) []Reference {
	refs := make([]Reference, 0, len(chunks))
	for _, c := range chunks {
		source := c.Source
		if source == "" {
			source = unknownSource
		}
		snippet := strings.TrimSpace(c.Text)
		if len([]rune(snippet)) > snippetRunes {
			snippet = truncateRunes(snippet, snippetRunes) + "…"
		}
		refs = append(refs, Reference{Source: source, Snippet: snippet})
	}
	return refs
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
