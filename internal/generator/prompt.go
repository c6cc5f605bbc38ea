package generator

import "fmt"

const systemPrompt = "You are a fact generator that creates interesting, educational, and accurate facts with quizzes. " +
	"Always respond with valid JSON only, no additional text. " +
	"Focus on lesser-known but verifiable facts that would surprise and educate people."

func topicPrompt(topic string, count int) string {
	return fmt.Sprintf(`Generate %[1]d fascinating and lesser-known facts specifically about %[2]s.

Requirements:
- Focus on surprising, lesser-known aspects of %[2]s
- Facts must be verifiable and educational
- Each fact must be unique
- Include an accurate multiple choice quiz for every fact

Format as a JSON array with this exact structure:
[
  {
    "title": "Engaging fact title about %[2]s (max 80 characters)",
    "blurb": "Detailed explanation (150-250 words)",
    "topic": "%[2]s",
    "quiz": {
      "question": "Multiple choice question about the fact",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": 0,
      "explanation": "Brief explanation of why the answer is correct"
    }
  }
]`, count, topic)
}
