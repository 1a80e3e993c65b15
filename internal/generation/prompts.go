package generation

import (
	"fmt"

	"medsim-server/internal/model"
)

// Prompt templates for each task kind. Every structured task instructs the
// model to answer with a single JSON object; the parser tolerates fences and
// surrounding prose anyway.

func simulationPrompt(topic, language string) string {
	return fmt.Sprintf(`You are a clinical instructor building an interactive case simulation for dental students.
Topic: %q. Answer in language %q.
Respond with a single JSON object, no other text:
{
  "summary": "clinical narrative of the simulated case (3-5 sentences)",
  "risks": [{"label": "...", "severity": "low|medium|high", "detail": "..."}],
  "hotspots": [{"x": 0.0-1.0, "y": 0.0-1.0, "label": "...", "detail": "..."}],
  "vitals": {"heartRate": 0, "bloodPressure": "120/80", "spo2": 0, "temperature": 36.6},
  "imagePrompts": {
    "clinical": "photorealistic intraoral clinical photograph prompt for this case",
    "radiological": "periapical radiograph prompt for this case",
    "explodedDiagram": "exploded anatomical diagram prompt for this case"
  }
}`, topic, language)
}

func protocolPrompt(topic, language string) string {
	return fmt.Sprintf(`You are a clinical instructor writing a step-by-step practical protocol for dental students.
Topic: %q. Answer in language %q.
Respond with a single JSON object, no other text:
{
  "title": "...",
  "steps": [{
    "title": "...",
    "sourceExcerpt": "verbatim excerpt from the reference literature",
    "translation": "plain-language rendering of the excerpt",
    "explanation": "deep clinical explanation of why this step matters",
    "mnemonic": "a short memory aid",
    "imagePrompt": "optional illustration prompt, omit if the step needs none"
  }]
}
Order the steps exactly as they are performed chairside.`, topic, language)
}

func quizPrompt(topic, language string, count int, difficulty string) string {
	return fmt.Sprintf(`You are preparing an exam question bank for dental students.
Topic: %q. Difficulty: %q. Language: %q.
Produce %d questions of each kind. Respond with a single JSON object, no other text:
{
  "essayQuestions": [{"question": "...", "modelAnswer": "..."}],
  "shortAnswerQuestions": [{"question": "...", "modelAnswer": "..."}],
  "multipleChoiceQuestions": [{"question": "...", "options": ["...", "...", "...", "..."], "answerIndex": 0, "explanation": "..."}]
}`, topic, difficulty, language, count)
}

func galleryPrompt(topic, language string) string {
	return fmt.Sprintf(`You are curating a visual research gallery for dental education.
Topic: %q. Answer in language %q.
Research the topic and respond with a single JSON object, no other text:
{
  "prompts": ["up to three distinct, detailed image-generation prompts illustrating the topic"]
}
Each prompt must describe a different aspect or view of the topic.`, topic, language)
}

func analysisPrompt(language string) string {
	return fmt.Sprintf(`You are a radiology instructor reviewing a student-submitted dental image. Answer in language %q.
First judge technical quality: if the image is too poor to analyse (blur, exposure, framing), say so and stop.
Respond with a single JSON object, no other text:
{
  "isHighQuality": true,
  "reason": "only when isHighQuality is false: why the image was rejected",
  "analysis": "free-text clinical analysis of the image",
  "landmarks": ["named anatomical landmarks visible in the image"],
  "riskZones": [{"label": "...", "xMin": 0.0, "yMin": 0.0, "xMax": 1.0, "yMax": 1.0}],
  "isCompliant": true
}`, language)
}

func imagePrompt(prompt string, subtype model.ImageSubtype) string {
	switch subtype {
	case model.ImageSubtypeRadiological:
		return fmt.Sprintf("Grayscale dental radiograph, diagnostic quality, no text overlay. %s", prompt)
	case model.ImageSubtypeExploded:
		return fmt.Sprintf("Clean exploded anatomical diagram on white background, labelled layers, textbook illustration style. %s", prompt)
	default:
		return fmt.Sprintf("Photorealistic clinical photograph, neutral lighting, educational context. %s", prompt)
	}
}

// synthesizedGalleryPrompts derives three generic prompts from the topic
// when the structured gallery response cannot be parsed. The gallery must
// never be left with zero prompts.
func synthesizedGalleryPrompts(topic string) []string {
	return []string{
		fmt.Sprintf("Detailed anatomical illustration of %s, textbook style, labelled structures", topic),
		fmt.Sprintf("Clinical photograph showing %s in a real treatment context", topic),
		fmt.Sprintf("Schematic diagram explaining %s step by step for students", topic),
	}
}
