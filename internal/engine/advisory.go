package engine

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/agri-assist/backend/internal/prompt"
)

//go:embed data/advisors.yaml
var advisorsYAML []byte

// Advisor is one role configuration for the advisory endpoint.
type Advisor struct {
	Category       string   `yaml:"category"`
	Keywords       []string `yaml:"keywords"`
	Role           string   `yaml:"role"`
	Goal           string   `yaml:"goal"`
	Backstory      string   `yaml:"backstory"`
	Task           string   `yaml:"task"`
	ExpectedOutput string   `yaml:"expected_output"`
}

// Advisors holds the roles in classification order.
type Advisors struct {
	Roles    []Advisor `yaml:"advisors"`
	fallback *Advisor
}

// LoadAdvisors parses the embedded role configuration.
func LoadAdvisors() (*Advisors, error) {
	return ParseAdvisors(advisorsYAML)
}

// ParseAdvisors parses a role configuration. Exactly one role must have no
// keywords; it is used when no other role matches.
func ParseAdvisors(data []byte) (*Advisors, error) {
	var a Advisors
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	for i := range a.Roles {
		r := &a.Roles[i]
		if r.Category == "" || r.Task == "" {
			return nil, fmt.Errorf("advisor %d: category and task are required", i)
		}
		if len(r.Keywords) == 0 {
			if a.fallback != nil {
				return nil, fmt.Errorf("advisors %s and %s both lack keywords", a.fallback.Category, r.Category)
			}
			a.fallback = r
		}
	}
	if a.fallback == nil {
		return nil, fmt.Errorf("no fallback advisor configured")
	}
	return &a, nil
}

// Classify picks the advisor for a topic by case-insensitive substring match.
func (a *Advisors) Classify(topic string) *Advisor {
	lower := strings.ToLower(topic)
	for i := range a.Roles {
		r := &a.Roles[i]
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r
			}
		}
	}
	return a.fallback
}

func (r *Advisor) template() prompt.Template {
	return prompt.Template{
		System: fmt.Sprintf("You are the %s.\nGoal: %s\nBackground: %s\n\n", r.Role, r.Goal, r.Backstory) +
			"Ground your answer in the reference documents below when they are relevant, " +
			"and say so when they do not cover the question.\n\nReference documents:\n{{.context}}",
		User: r.Task + "\n\nExpected output: " + r.ExpectedOutput,
	}
}

type AdvisoryRequest struct {
	Topic string `json:"topic"`
}

type AdvisoryResponse struct {
	Result           string `json:"result"`
	SelectedCategory string `json:"selected_category"`
}

// Advise answers a free-form farming question with the advisor selected
// for its topic, grounded in retrieved documents.
func (e *Engine) Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error) {
	r := e.begin(ctx, "advisory")
	if strings.TrimSpace(req.Topic) == "" {
		return nil, r.fail(invalid("Missing 'topic' in request body"))
	}
	r.enter(StageValidated)

	advisor := e.Advisors.Classify(req.Topic)
	r.log = r.log.WithField("category", advisor.Category)

	chunks, err := e.retrieve(ctx, req.Topic)
	if err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageEnriched)

	raw, err := e.complete(ctx, r, completion{
		Template:    advisor.template(),
		Vars:        map[string]any{"topic": req.Topic},
		Chunks:      chunks,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	r.done()
	return &AdvisoryResponse{
		Result:           strings.TrimSpace(raw),
		SelectedCategory: advisor.Category,
	}, nil
}
