package storage

import "time"

type User struct {
	ID           int64      `json:"id"`
	Phone        string     `json:"phone"`
	Username     string     `json:"username"`
	AvatarURL    string     `json:"avatarUrl"`
	Bio          string     `json:"bio"`
	CustomStatus string     `json:"customStatus"`
	Energy       int32      `json:"energy"`
	IsBanned     bool       `json:"isBanned"`
	LastActivity *time.Time `json:"-"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	City         string     `json:"city"`
	PushToken    *string    `json:"-"`
}

// NewUser carries fields accepted by bulk user seeding
type NewUser struct {
	Phone     string
	Username  string
	AvatarURL string
	Latitude  *float64
	Longitude *float64
	City      string
}

// ProfileUpdate lists optional profile fields, nil means unchanged
type ProfileUpdate struct {
	Username     *string
	CustomStatus *string
}

type Sender struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

type Message struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"senderId"`
	ReceiverID    int64     `json:"receiverId"`
	Text          string    `json:"text"`
	VoiceURL      *string   `json:"voiceUrl"`
	VoiceDuration *int32    `json:"voiceDuration"`
	ImageURL      *string   `json:"imageUrl"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
	Sender        Sender    `json:"sender"`
}

// NewMessage is a message not yet persisted
type NewMessage struct {
	SenderID      int64
	ReceiverID    int64
	Text          string
	VoiceURL      string
	VoiceDuration *int32
	ImageURL      string
}
