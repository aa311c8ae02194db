package push

import (
	"auxchat/internal/storage"
	"strconv"
	"unicode/utf8"
)

const (
	titleMarker     = "💬 "
	imageSummary    = "📷 Photo"
	voiceSummary    = "🎤 Voice message"
	fallbackSender  = "User"
	summaryMaxRunes = 50
	summaryEllipsis = "..."
	chatURLPrefix   = "/chat/"
)

// Notification is a single push delivered to one device token
type Notification struct {
	Token string            `json:"fcm_token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Summary returns human readable body for m: placeholders for media, truncated text otherwise
func Summary(m storage.Message) string {
	switch {
	case m.ImageURL != nil && *m.ImageURL != "":
		return imageSummary
	case m.VoiceURL != nil && *m.VoiceURL != "":
		return voiceSummary
	}

	if utf8.RuneCountInString(m.Text) <= summaryMaxRunes {
		return m.Text
	}
	runes := []rune(m.Text)
	return string(runes[:summaryMaxRunes]) + summaryEllipsis
}

// Build assembles notification about m for a receiver owning token
func Build(token, senderName string, m storage.Message) Notification {
	if senderName == "" {
		senderName = fallbackSender
	}
	sender := strconv.FormatInt(m.SenderID, 10)
	return Notification{
		Token: token,
		Title: titleMarker + senderName,
		Body:  Summary(m),
		Data: map[string]string{
			"chatUrl":  chatURLPrefix + sender,
			"senderId": sender,
		},
	}
}
