package config

import "time"

const (
	// Room limits
	MaxOnlineUsers = 5
	RoomCodeLength = 6
	RoomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// Chat limits
	MaxChatMessages  = 100
	SummaryThreshold = 51
	SummaryWindow    = 50
	MaxImages        = 4
	MaxReferences    = 10

	// Input limits (characters)
	MaxUserNameLen    = 50
	MaxRoomCodeLen    = 10
	MaxMessageTextLen = 2000
	MaxChatIDLen      = 100
	MaxRoomDBIDLen    = 100
	MaxGeneralLen     = 1000
	MaxImageLen       = 400_000

	// Context assembly
	RecentTopicWindow    = 6
	RedundancyWindow     = 2
	RelevancePassMinSize = 10
	SearchResultCount    = 5

	// External calls
	RequestTimeout = 90 * time.Second
	AuxTimeout     = 20 * time.Second

	GroupChatName = "Group Chat"
	AssistantName = "Claude"
)

// IndividualChatName возвращает имя личного чата пользователя
func IndividualChatName(userName string) string {
	return userName + "'s Chat"
}
