package usecase

import "fmt"

const assistantPreamble = "You are a friendly and reliable AI personal assistant. " +
	"Speak in a warm, approachable tone while being clear, concise, and helpful. " +
	"Your goal is to answer the user's questions thoughtfully, just like a smart and dependable human assistant would."

// buildPrompt wraps the user's message in the assistant preamble. The message
// is forwarded as received; only emptiness is checked before this point.
func buildPrompt(message string) string {
	return fmt.Sprintf("%s User: %s\n\nAssistant:", assistantPreamble, message)
}
