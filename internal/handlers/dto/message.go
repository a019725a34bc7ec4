package dto

// SubmitContributionRequest ход в режиме общего промпта
type SubmitContributionRequest struct {
	RoomCode      string `json:"roomCode" binding:"required,max=10,roomcode"`
	UpdatedPrompt string `json:"updatedPrompt" binding:"max=2000"`
}

type SubmitMessageRequest struct {
	RoomCode          string   `json:"roomCode" binding:"required,max=10,roomcode"`
	ChatID            string   `json:"chatId" binding:"required,max=100,uuid"`
	Text              string   `json:"text" binding:"required_without=Images,max=2000"`
	Images            []string `json:"images" binding:"max=4,dive,max=400000,startswith=data:image/"`
	ReferencedChatIDs []string `json:"referencedChatIds" binding:"max=10,dive,max=100,uuid"`
	MentionAI         bool     `json:"mentionAI"`
}

type RequestChatMessagesRequest struct {
	RoomCode string `json:"roomCode" binding:"required,max=10,roomcode"`
	ChatID   string `json:"chatId" binding:"required,max=100,uuid"`
}
