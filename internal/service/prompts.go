package service

// prompts.go holds the system prompt and the static fallback texts the
// relay substitutes for provider output. The chat surface must never show
// a raw provider error, and even in a degraded state it must not go
// silent on crisis resources.

const (
	// SystemPrompt frames the assistant as a supportive companion, not a
	// clinician. It is always the first turn sent to the provider.
	SystemPrompt = "You are a compassionate mental wellness companion. " +
		"Listen carefully, respond with warmth and empathy, and encourage healthy coping strategies. " +
		"You are not a doctor and must not diagnose conditions or recommend medication. " +
		"If the user mentions self-harm or suicide, gently remind them that they can call or text 988 " +
		"(Suicide & Crisis Lifeline) or text HOME to 741741 (Crisis Text Line). " +
		"Keep replies short, concrete and kind."

	// RateLimitedMessage is returned when the provider throttles us. It
	// keeps crisis resources visible even while degraded.
	RateLimitedMessage = "I'm receiving a lot of messages right now and need a moment to catch up. " +
		"Please try again shortly. If you are in crisis, please don't wait for me: " +
		"call or text 988 (Suicide & Crisis Lifeline) or text HOME to 741741 (Crisis Text Line)."

	// RephraseMessage is returned when the provider rejects the request as
	// malformed.
	RephraseMessage = "I'm sorry, I had trouble understanding that. Could you rephrase your message?"

	// ApologyMessage covers every other provider failure.
	ApologyMessage = "I'm sorry, something went wrong on my end and I couldn't respond just now. " +
		"Please try again in a moment."

	// DefaultGreeting seeds a fresh quick-chat session.
	DefaultGreeting = "Hi, I'm here for you. How are you feeling today?"

	// SummaryInstruction asks the model for a strict-JSON daily digest.
	SummaryInstruction = "You will be given one day of messages between a patient and a wellness chatbot. " +
		"Respond with a single JSON object and nothing else, using exactly these keys: " +
		`"summary_text" (a short clinical-style summary, max 120 words), ` +
		`"mood_indicators" (array of short mood descriptors), ` +
		`"key_concerns" (array of short concern descriptors). ` +
		"Leave arrays empty when nothing applies."
)
