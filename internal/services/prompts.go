package services

import (
	"fmt"
	"strings"

	"github.com/thereayou/teamchat/internal/models"
)

const memoryInstruction = "You are Claude, an AI assistant taking part in a shared room where several people talk with you. " +
	"The earlier messages of this chat are included below and form your memory of the conversation; refer to them when useful. " +
	"Context blocks copied from other chats in the room are marked clearly; treat them as reference material."

const (
	topicChangedInstruction   = "The user has moved on to a new topic. Answer the new request directly and do not bring up unrelated earlier topics from this chat."
	topicContinuesInstruction = "The user is continuing the current conversation. Feel free to build on earlier messages in this chat."
)

func intentPrompt(text string) string {
	return "Classify the intent of the following chat message.\n" +
		"Reply with exactly one word: ACKNOWLEDGMENT (thanks, ok, got it), GREETING (hi, hello) or SUBSTANTIVE (anything that needs a real answer).\n\n" +
		"Message:\n" + text
}

func redundancyPrompt(text string, previous []string) string {
	var b strings.Builder
	b.WriteString("Decide whether the user is asking again for information the assistant already delivered.\n")
	b.WriteString("Reply with JSON only: {\"redundant\": true|false}\n\n")
	for i, p := range previous {
		fmt.Fprintf(&b, "Previous assistant reply %d:\n%s\n\n", i+1, p)
	}
	b.WriteString("New user message:\n" + text)
	return b.String()
}

func topicPrompt(text string, recent []models.Message) string {
	return "Compare the new message with the recent conversation and decide whether the user changed the topic.\n" +
		"Reply with JSON only: {\"topic_changed\": true|false}\n\n" +
		"Recent conversation:\n" + transcript(recent) + "\n\nNew message:\n" + text
}

func referencePrompt(text, chatName string) string {
	return fmt.Sprintf("The user attached the chat %q to their message. "+
		"Decide whether answering the message needs content from that chat and which search terms describe the needed content.\n"+
		"Reply with JSON only: {\"relevant\": true|false, \"search_terms\": [\"...\"]}\n\nMessage:\n%s", chatName, text)
}

func relevancePrompt(cues string, exchanges []string) string {
	var b strings.Builder
	b.WriteString("Select the exchanges related to the topics below.\n")
	b.WriteString("Reply with JSON only: {\"indices\": [numbers]}\n\n")
	b.WriteString("Topics:\n" + cues + "\n\nExchanges:\n")
	for i, e := range exchanges {
		fmt.Fprintf(&b, "[%d]\n%s\n\n", i, e)
	}
	return b.String()
}

func summaryPrompt(messages []models.Message) string {
	return "Write a concise summary of the following conversation so it can replace the full history as context. " +
		"Keep names, decisions, facts and open questions.\n\n" + transcript(messages)
}

func searchDecisionPrompt(text string) string {
	return "Decide whether answering the following message needs a live web search (recent events, facts you may not know, explicit requests for sources).\n" +
		"Reply with JSON only: {\"search\": true|false, \"query\": \"search query\"}\n\nMessage:\n" + text
}

func summaryContext(summary string) string {
	return "Summary of the earlier part of this chat:\n" + summary
}

func contextBlock(chatName, body string) string {
	if strings.TrimSpace(body) == "" {
		return noMessagesBlock(chatName)
	}
	return fmt.Sprintf("[Context from %q]\n%s\n[End of context from %q]", chatName, body, chatName)
}

func noMessagesBlock(name string) string {
	return fmt.Sprintf("[No messages found for @%s]", name)
}
