package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/provider"
	"github.com/agri-assist/backend/internal/schema"
)

type DiseaseRequest struct {
	Image *provider.Image
	Lang  string
}

type PlantDiagnosis struct {
	Plant              string   `json:"plant"`
	LeafHealth         string   `json:"leaf_health"`
	PlantHealth        string   `json:"plant_health"`
	Disease            string   `json:"disease"`
	TypeOfDisease      string   `json:"type_of_disease"`
	DiseaseSymptoms    []string `json:"disease_symptoms"`
	TreatmentRequired  bool     `json:"treatment_required"`
	TreatmentProcedure *string  `json:"treatment_procedure,omitempty"`
}

var diagnosisSchema = schema.Schema[PlantDiagnosis]{
	Name: "PlantDiagnosis",
	Fields: []schema.Field{
		schema.Str("plant", "Name of the plant"),
		schema.Str("leaf_health", "Categorical value indicating the leaf's health (e.g., healthy, mildly affected, severely affected, dead)"),
		schema.Str("plant_health", "Categorical value indicating the plant or fruit health"),
		schema.Str("disease", "Name of the disease"),
		schema.Str("type_of_disease", "Type of disease - fungus, virus, mite, bacteria, insect, or deficiency"),
		schema.Strs("disease_symptoms", "List of symptoms in simple sentences"),
		schema.Bool("treatment_required", "True if treatment is necessary, else False"),
	},
	Decode: func(o *schema.Object) PlantDiagnosis {
		return PlantDiagnosis{
			Plant:             o.String("plant"),
			LeafHealth:        o.String("leaf_health"),
			PlantHealth:       o.String("plant_health"),
			Disease:           o.String("disease"),
			TypeOfDisease:     o.String("type_of_disease"),
			DiseaseSymptoms:   o.Strings("disease_symptoms"),
			TreatmentRequired: o.Bool("treatment_required"),
		}
	},
}

var diagnosisPrompt = prompt.Template{
	System: "You are an agricultural expert. Analyze the uploaded image of a plant or leaf and extract structured data. Respond in {{.lang}}.\n\n" +
		"{{.format_instructions}}\n\n" +
		"The image may include signs of disease or deficiencies. If a tomato fruit is visible, analyze its health as well. " +
		"Include whether treatment is required (true/false). Respond only in JSON format matching the schema. " +
		"Please give reply in {{.lang}} language only",
	User: "Diagnose the plant in this image.",
}

var treatmentPrompt = prompt.Template{
	System: "You are an expert in Indian agricultural treatment practices. Respond in {{.lang}}.",
	User: "You are an Indian agricultural specialist. The following disease has been identified in {{.plant}}:\n" +
		"Disease: {{.disease}}\n" +
		"Type: {{.type_of_disease}}\n" +
		"Symptoms: {{.symptoms}}\n\n" +
		"Provide systematic treatment procedures in India, in {{.lang}}, categorized into:\n" +
		"- Organic Treatment\n" +
		"- Chemical Treatment\n\n" +
		"Be specific, mention commonly used names of treatments, and relevant practices for Indian farmers.",
}

// DiagnosePlant identifies disease from a leaf or plant photo. When the
// diagnosis says treatment is required, a second completion built from the
// diagnosis produces the treatment procedure.
func (e *Engine) DiagnosePlant(ctx context.Context, req DiseaseRequest) (*PlantDiagnosis, error) {
	r := e.begin(ctx, "plant_disease")
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, r.fail(invalid("No image file provided."))
	}
	r.enter(StageValidated)
	r.enter(StageEnriched)

	lang := orDefault(req.Lang, "English")
	diagnosis, err := generate(ctx, e, r, completion{
		Template:    diagnosisPrompt,
		Vars:        map[string]any{"lang": lang},
		Image:       req.Image,
		Model:       e.Config.LLM.VisionModel,
		Temperature: 0.4,
	}, diagnosisSchema)
	if err != nil {
		return nil, err
	}

	if diagnosis.TreatmentRequired {
		r.log.WithField("disease", diagnosis.Disease).Debug("Requesting treatment procedure")
		treatment, err := e.complete(ctx, r, completion{
			Template: treatmentPrompt,
			Vars: map[string]any{
				"lang":            lang,
				"plant":           diagnosis.Plant,
				"disease":         diagnosis.Disease,
				"type_of_disease": diagnosis.TypeOfDisease,
				"symptoms":        strings.Join(diagnosis.DiseaseSymptoms, ", "),
			},
			Temperature: 0.4,
		})
		if err != nil {
			return nil, err
		}
		diagnosis.TreatmentProcedure = &treatment
	}

	r.done()
	return &diagnosis, nil
}
