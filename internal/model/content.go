package model

// ImageSubtype tags the visual style requested for a generated image.
type ImageSubtype string

const (
	ImageSubtypeClinical     ImageSubtype = "clinical"
	ImageSubtypeRadiological ImageSubtype = "radiological"
	ImageSubtypeExploded     ImageSubtype = "exploded_diagram"
)

// GenerationRequest is the immutable value a user submission produces.
type GenerationRequest struct {
	Topic      string       `json:"topic"`
	Language   string       `json:"language"`
	Count      int          `json:"count,omitempty"`
	Difficulty string       `json:"difficulty,omitempty"`
	Subtype    ImageSubtype `json:"subtype,omitempty"`
}

// RiskAnnotation is a labelled risk within a clinical scenario.
type RiskAnnotation struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// Hotspot is an annotated spatial point of interest on the scenario imagery.
type Hotspot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Label  string  `json:"label"`
	Detail string  `json:"detail,omitempty"`
}

// Vitals holds patient vital signs for a simulated case.
type Vitals struct {
	HeartRate     int     `json:"heartRate"`
	BloodPressure string  `json:"bloodPressure"`
	SpO2          int     `json:"spo2"`
	Temperature   float64 `json:"temperature"`
}

// ScenarioImagePrompts carries the three image prompts a simulation produces,
// one per image subtype.
type ScenarioImagePrompts struct {
	Clinical     string `json:"clinical"`
	Radiological string `json:"radiological"`
	Exploded     string `json:"explodedDiagram"`
}

// SimulationScenario is the primary result of the clinical simulation task.
type SimulationScenario struct {
	Summary      string               `json:"summary"`
	Risks        []RiskAnnotation     `json:"risks"`
	Hotspots     []Hotspot            `json:"hotspots"`
	Vitals       Vitals               `json:"vitals"`
	ImagePrompts ScenarioImagePrompts `json:"imagePrompts"`
}

// ProtocolStep is one pedagogical step of a practical protocol, with its
// five fixed textual facets. ImagePrompt is optional.
type ProtocolStep struct {
	Title         string `json:"title"`
	SourceExcerpt string `json:"sourceExcerpt"`
	Translation   string `json:"translation"`
	Explanation   string `json:"explanation"`
	Mnemonic      string `json:"mnemonic"`
	ImagePrompt   string `json:"imagePrompt,omitempty"`
}

// ProtocolPlan is the primary result of the practical protocol task.
type ProtocolPlan struct {
	Title string         `json:"title"`
	Steps []ProtocolStep `json:"steps"`
}

// QuizQuestion is a single open (essay or short-answer) question.
type QuizQuestion struct {
	Question    string `json:"question"`
	ModelAnswer string `json:"modelAnswer,omitempty"`
}

// MultipleChoiceQuestion is one multiple-choice item with its key.
type MultipleChoiceQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuizSet is the primary result of the quiz task: three independent
// question collections.
type QuizSet struct {
	Essay          []QuizQuestion           `json:"essayQuestions"`
	ShortAnswer    []QuizQuestion           `json:"shortAnswerQuestions"`
	MultipleChoice []MultipleChoiceQuestion `json:"multipleChoiceQuestions"`
}

// Citation is a grounding source returned by search-enabled calls.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GalleryResult is the primary result of the research/gallery task.
type GalleryResult struct {
	Prompts   []string   `json:"prompts"`
	Citations []Citation `json:"citations,omitempty"`
	// Synthesized is set when the structured response could not be parsed
	// and the prompts were derived from the topic instead.
	Synthesized bool `json:"synthesized,omitempty"`
}

// RiskZone is a named risk region with a normalized bounding box.
type RiskZone struct {
	Label string  `json:"label"`
	XMin  float64 `json:"xMin"`
	YMin  float64 `json:"yMin"`
	XMax  float64 `json:"xMax"`
	YMax  float64 `json:"yMax"`
}

// AnalysisResult is the structured output of the image-analysis task.
// A low-quality rejection is domain data (IsHighQuality=false plus Reason),
// never an error.
type AnalysisResult struct {
	IsHighQuality bool       `json:"isHighQuality"`
	Reason        string     `json:"reason,omitempty"`
	Analysis      string     `json:"analysis"`
	Landmarks     []string   `json:"landmarks,omitempty"`
	RiskZones     []RiskZone `json:"riskZones,omitempty"`
	IsCompliant   bool       `json:"isCompliant"`
}
