// Package prompt builds the instructions sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

// OpeningMessage asks a fresh persona to introduce itself.
const OpeningMessage = "Hello, please introduce yourself based on your persona."

// FollowUpMessage asks a resumed persona to greet the trainee again.
const FollowUpMessage = "The trainee has called you back for a follow-up conversation. Greet them again briefly and say you had a few more questions."

const (
	defaultScenario = "A general customer service call."
	defaultCriteria = "Overall Communication Quality"
)

// SystemInstruction seeds the persona chat for the whole call.
func SystemInstruction(p domain.Persona, scenario string) string {
	var b strings.Builder
	b.WriteString("You are an AI acting as a specific persona for a mock call.\n")
	b.WriteString("Your persona details are:\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Age: %d\n", p.Age)
	fmt.Fprintf(&b, "Background: %s\n", p.Background)
	fmt.Fprintf(&b, "Interests/Goals: %s\n", p.Interests)
	fmt.Fprintf(&b, "Topic of Interest: %s\n", p.TopicOfInterest)
	fmt.Fprintf(&b, "Concerns: %s\n", strings.Join(p.Concerns, ", "))
	fmt.Fprintf(&b, "Personality: %s\n\n", p.Personality)
	b.WriteString("Your goal is to have a natural conversation based on this persona within the given scenario. ")
	b.WriteString("Do not break character. Keep your responses concise and realistic for the role you are playing.")
	if s := strings.TrimSpace(scenario); s != "" {
		fmt.Fprintf(&b, "\n\nThe context for this conversation is: %q", s)
	}
	return b.String()
}

func difficultyInstructions(d domain.Difficulty) string {
	switch d {
	case domain.DifficultyEasy:
		return "The persona should be generally positive and cooperative, with clear and straightforward needs. They are easy to guide."
	case domain.DifficultyMedium:
		return "The persona should present a mix of positive and negative traits. Their needs are more complex or nuanced. They might have some misconceptions that need correcting."
	case domain.DifficultyHard:
		return "The persona should be challenging. They could be skeptical, frustrated, misinformed, or have unrealistic expectations. Their personality should test the trainee's patience, empathy, and problem-solving skills."
	default:
		return "The persona has a standard profile with common questions."
	}
}

// Persona asks the model for a persona matching the scenario, directives, difficulty and country.
func Persona(d domain.Difficulty, scenario, directives, country string) string {
	if strings.TrimSpace(scenario) == "" {
		scenario = defaultScenario
	}
	if strings.TrimSpace(directives) == "" {
		directives = "No specific directives provided."
	}
	return fmt.Sprintf(`You are to generate a realistic and detailed persona for a professional training simulation.
The persona should be a challenge for the trainee based on the provided scenario, directives, and difficulty level.

1. Country: The persona must be from %s. Their name, background, and cultural context should reflect this.
2. Training Scenario: This is the overall context of the interaction.
   %q
3. Specific Persona Directives: These are specific instructions for the persona's character.
   %q
4. Difficulty-specific instructions: %s

Combine all the above information to create a coherent and believable persona. The persona must fit the Training Scenario and their Country. The Persona Directives should take precedence if there are any conflicts.
Fill all fields in the provided JSON schema.`, country, scenario, directives, difficultyInstructions(d))
}

// Evaluation asks the model to score the trainee against the requested criteria.
func Evaluation(t domain.Transcript, p domain.Persona, scenario, criteria, country string) string {
	if strings.TrimSpace(scenario) == "" {
		scenario = "General conversation skills."
	}
	if strings.TrimSpace(criteria) == "" {
		criteria = defaultCriteria
	}
	return fmt.Sprintf(`You are an expert evaluator for professional training simulations.
The simulation's context was:
Training Scenario: %s
Country: The simulation was localized for %s.

The trainee ('USER') was interacting with an AI playing a role.
AI Persona Profile:
- Name: %s
- Personality: %s
- Background & Concerns: %s Their main concerns were: %s.

Your task is to analyze the conversation transcript and evaluate the trainee's performance.

The trainee must be evaluated based on the following criteria:
%s

For each criterion you evaluate, provide a score from 1-10 and detailed, constructive feedback with examples from the conversation.
Also, provide an overall score and a summary of the performance.
Use the provided JSON schema for your response, ensuring an entry in the 'evaluation' array for each requested criterion.

Transcript:
---
%s
---`, scenario, country, p.Name, p.Personality, p.Background, strings.Join(p.Concerns, ", "), criteria, t.Format())
}

// Hint asks for one open-ended question the trainee could ask next.
func Hint(t domain.Transcript, scenario, country string) string {
	if strings.TrimSpace(scenario) == "" {
		scenario = defaultScenario
	}
	return fmt.Sprintf(`You are an expert communication coach for professional role-playing simulations.
The current training scenario is: %q
The scenario is localized for a customer in %s.

Below is a transcript of a call in progress between a trainee ('USER') and an AI ('AI').
The trainee has clicked a "Hint" button and needs help.
Based on the conversation so far and the scenario, suggest one single, effective open-ended question the trainee could ask next.
The question should help the trainee achieve the goals of the scenario (e.g., build rapport, uncover needs, resolve a conflict).

IMPORTANT: Do not provide any preamble, explanation, or surrounding text. Respond with ONLY the suggested question itself.

Transcript:
---
%s
---`, scenario, country, t.Format())
}
