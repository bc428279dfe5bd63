package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-assist/backend/internal/schema"
)

type task struct {
	Title string
	Hours int
}

type plan struct {
	Crop     string
	Weeks    int
	Acres    float64
	Organic  bool
	Symptoms []string
	Tasks    []task
	Notes    string
}

var planSchema = schema.Schema[plan]{
	Name: "Plan",
	Fields: []schema.Field{
		schema.Str("crop", "crop name"),
		schema.Int("weeks", "number of weeks"),
		schema.Float("acres", "field size"),
		schema.Bool("organic", "organic only"),
		schema.Strs("symptoms", "observed symptoms"),
		schema.Objects("tasks", "tasks",
			schema.Str("title", "task title"),
			schema.Int("hours", "hours needed"),
		),
		schema.Optional(schema.Str("notes", "free text")),
	},
	Decode: func(o *schema.Object) plan {
		p := plan{
			Crop:     o.String("crop"),
			Weeks:    o.Int("weeks"),
			Acres:    o.Float("acres"),
			Organic:  o.Bool("organic"),
			Symptoms: o.Strings("symptoms"),
			Notes:    o.String("notes"),
		}
		for _, t := range o.Objects("tasks") {
			p.Tasks = append(p.Tasks, task{Title: t.String("title"), Hours: t.Int("hours")})
		}
		return p
	},
}

func TestParseValid(t *testing.T) {
	raw := `{"crop": "rice", "weeks": 8, "acres": 2.5, "organic": false,
		"symptoms": ["yellow leaves"], "tasks": [{"title": "sow", "hours": 3}], "extra": 1}`

	p, err := schema.Parse(raw, planSchema)
	require.NoError(t, err)

	assert.Equal(t, plan{
		Crop:     "rice",
		Weeks:    8,
		Acres:    2.5,
		Symptoms: []string{"yellow leaves"},
		Tasks:    []task{{Title: "sow", Hours: 3}},
	}, p)
}

func TestParseCoercesNumericStrings(t *testing.T) {
	raw := `{"crop": "wheat", "weeks": "5", "acres": "1.75", "organic": "true",
		"symptoms": [], "tasks": [{"title": "weed", "hours": "2"}]}`

	p, err := schema.Parse(raw, planSchema)
	require.NoError(t, err)

	assert.Equal(t, 5, p.Weeks)
	assert.Equal(t, 1.75, p.Acres)
	assert.True(t, p.Organic)
	assert.Equal(t, 2, p.Tasks[0].Hours)
}

func TestParseIntStringsAreDecimal(t *testing.T) {
	raw := `{"crop": "wheat", "weeks": "010", "acres": 1, "organic": true,
		"symptoms": [], "tasks": [{"title": "weed", "hours": " 007 "}]}`

	p, err := schema.Parse(raw, planSchema)
	require.NoError(t, err)

	assert.Equal(t, 10, p.Weeks)
	assert.Equal(t, 7, p.Tasks[0].Hours)
}

func TestParseIntegralFloatAsInt(t *testing.T) {
	raw := `{"crop": "maize", "weeks": 6.0, "acres": 3, "organic": 1, "symptoms": [], "tasks": []}`

	p, err := schema.Parse(raw, planSchema)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Weeks)
	assert.Equal(t, 3.0, p.Acres)
	assert.True(t, p.Organic)
}

func TestParseStripsCodeFence(t *testing.T) {
	raw := "Here you go:\n```json\n{\"crop\": \"rice\", \"weeks\": 1, \"acres\": 1, \"organic\": true, \"symptoms\": [], \"tasks\": []}\n```"

	p, err := schema.Parse(raw, planSchema)
	require.NoError(t, err)
	assert.Equal(t, "rice", p.Crop)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"Malformed JSON", `{"crop": "rice", "weeks": `, ""},
		{"Not an object", `["rice"]`, ""},
		{"Plain text", `I cannot help with that.`, ""},
		{"Missing field", `{"weeks": 1, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "crop"},
		{"Null required field", `{"crop": null, "weeks": 1, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "crop"},
		{"Fractional int", `{"crop": "rice", "weeks": 5.5, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Non-numeric string", `{"crop": "rice", "weeks": "five", "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Bool for int", `{"crop": "rice", "weeks": true, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Number for string", `{"crop": 7, "weeks": 1, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "crop"},
		{"Scalar for list", `{"crop": "rice", "weeks": 1, "acres": 1, "organic": true, "symptoms": "none", "tasks": []}`, "symptoms"},
		{"Nested missing", `{"crop": "rice", "weeks": 1, "acres": 1, "organic": true, "symptoms": [], "tasks": [{"title": "sow"}]}`, "tasks[0].hours"},
		{"Bad bool", `{"crop": "rice", "weeks": 1, "acres": 1, "organic": 2, "symptoms": [], "tasks": []}`, "organic"},
		{"NaN float", `{"crop": "rice", "weeks": 1, "acres": "NaN", "organic": true, "symptoms": [], "tasks": []}`, "acres"},
		{"Inf float", `{"crop": "rice", "weeks": 1, "acres": "Inf", "organic": true, "symptoms": [], "tasks": []}`, "acres"},
		{"Signed Inf float", `{"crop": "rice", "weeks": 1, "acres": "-Infinity", "organic": true, "symptoms": [], "tasks": []}`, "acres"},
		{"NaN int", `{"crop": "rice", "weeks": "NaN", "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Hex int string", `{"crop": "rice", "weeks": "0x10", "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Int overflow", `{"crop": "rice", "weeks": 1e300, "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
		{"Int overflow string", `{"crop": "rice", "weeks": "1e300", "acres": 1, "organic": true, "symptoms": [], "tasks": []}`, "weeks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := schema.Parse(tt.raw, planSchema)
			require.Error(t, err)
			assert.Equal(t, plan{}, p)

			var verr *schema.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "Plan", verr.Schema)
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestParseOptionalFields(t *testing.T) {
	s := schema.Schema[[]string]{
		Name: "Lists",
		Fields: []schema.Field{
			schema.Optional(schema.Strs("weather", "")),
		},
		Decode: func(o *schema.Object) []string { return o.Strings("weather") },
	}

	out, err := schema.Parse(`{}`, s)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)

	out, err = schema.Parse(`{"weather": null}`, s)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInstructionsDeterministic(t *testing.T) {
	first := planSchema.Instructions()
	second := planSchema.Instructions()

	assert.Equal(t, first, second)
	assert.Contains(t, first, `"title": "Plan"`)
	assert.Contains(t, first, `"type": "integer"`)
	assert.Contains(t, first, `"description": "hours needed"`)
	assert.Contains(t, first, "\"required\": [\n    \"crop\",")
	assert.Contains(t, first, "\"tasks\"\n  ]")
}
