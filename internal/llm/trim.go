package llm

// TrimMessages trims a message history to fit within a token budget.
//
// The budget should already account for the system prompt and a reserve
// for the model's output. The most recent message is always kept; older
// messages are dropped from the front until the rest fits.
func TrimMessages(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	total := EstimateMessagesTokens(messages)
	if total <= maxTokens {
		return messages
	}

	drop := 0
	for drop < len(messages)-1 && total > maxTokens {
		total -= EstimateMessageTokens(messages[drop])
		drop++
	}
	return messages[drop:]
}
