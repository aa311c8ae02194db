// Package chat implements private messaging between user pairs: conversation history with
// read state, sending guarded by the block relation, typing signals, presence and profiles.
//
// Errors returned by Service wrap one of ErrValidation, ErrAuth, ErrForbidden, ErrNotFound
// or ErrDependency. Push notification failures are never returned.
package chat

import (
	"auxchat/internal/presence"
	"auxchat/internal/storage"
	"auxchat/internal/typing"
	"context"
	"go.uber.org/zap"
	"strings"
	"time"
)

// Repository is the persistent part of the messaging core
type Repository interface {
	CreateMessage(ctx context.Context, m storage.NewMessage) (storage.Message, error)
	MessagesBetween(ctx context.Context, reader, other int64, limit int) ([]storage.Message, error)
	DeleteMessage(ctx context.Context, id, requester int64) error

	IsBlocked(ctx context.Context, a, b int64) (bool, error)
	Block(ctx context.Context, user, blocked int64) error
	Unblock(ctx context.Context, user, blocked int64) error

	UserByID(ctx context.Context, id int64) (storage.User, error)
	TouchActivity(ctx context.Context, id int64) (time.Time, error)
	UpdateProfile(ctx context.Context, id int64, upd storage.ProfileUpdate) (storage.User, error)
	SetPushToken(ctx context.Context, id int64, token *string) error
}

// Notifier is told about every appended message, it must not block
type Notifier interface {
	Dispatch(m storage.Message)
}

// SendRequest carries message payload, at least one of Text, VoiceURL, ImageURL is required
type SendRequest struct {
	Receiver      int64
	Text          string
	VoiceURL      string
	VoiceDuration *int32
	ImageURL      string
}

// TypingStatus answers whether subject is typing to the viewer
type TypingStatus struct {
	IsTyping bool   `json:"is_typing"`
	TypingTo *int64 `json:"typing_to"`
}

// Profile is a user as seen by another user
type Profile struct {
	storage.User
	Status    string  `json:"status"`
	LastSeen  *string `json:"lastSeen"`
	IsBlocked bool    `json:"isBlocked"`
}

// Service defines fields used by messaging operations
type Service struct {
	logger   *zap.SugaredLogger
	repo     Repository
	tracker  typing.Tracker
	notifier Notifier
	presence *presence.Evaluator
	cfg      Config
}

func NewService(logger *zap.SugaredLogger, repo Repository, tracker typing.Tracker, notifier Notifier,
	evaluator *presence.Evaluator, cfg Config) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		tracker:  tracker,
		notifier: notifier,
		presence: evaluator,
		cfg:      cfg,
	}
}

func requireCaller(caller int64) error {
	if caller < 1 {
		return ErrAuth
	}
	return nil
}

// Conversation returns the latest messages between caller and other, from earliest to latest,
// and marks messages addressed to caller as read
func (s *Service) Conversation(ctx context.Context, caller, other int64, limit int) ([]storage.Message, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if other < 1 {
		return nil, validationf("other user id is required")
	}
	if limit < 0 {
		return nil, validationf("limit must not be negative")
	}

	messages, err := s.repo.MessagesBetween(ctx, caller, other, s.cfg.historyLimit(limit))
	if err != nil {
		return nil, fromStorage("fetch conversation", err)
	}

	return messages, nil
}

// SendMessage appends message from caller unless the pair is blocked and schedules push notification
func (s *Service) SendMessage(ctx context.Context, caller int64, req SendRequest) (storage.Message, error) {
	if err := requireCaller(caller); err != nil {
		return storage.Message{}, err
	}
	if req.Receiver < 1 {
		return storage.Message{}, validationf("receiver id is required")
	}

	nm := storage.NewMessage{
		SenderID:   caller,
		ReceiverID: req.Receiver,
		Text:       strings.TrimSpace(req.Text),
		VoiceURL:   strings.TrimSpace(req.VoiceURL),
		ImageURL:   strings.TrimSpace(req.ImageURL),
	}
	if nm.Text == "" && nm.VoiceURL == "" && nm.ImageURL == "" {
		return storage.Message{}, validationf("text, voice url or image url is required")
	}
	if nm.VoiceURL != "" && req.VoiceDuration != nil {
		if *req.VoiceDuration < 0 {
			return storage.Message{}, validationf("voice duration must not be negative")
		}
		nm.VoiceDuration = req.VoiceDuration
	}

	m, err := s.repo.CreateMessage(ctx, nm)
	if err != nil {
		return storage.Message{}, fromStorage("send message", err)
	}

	s.notifier.Dispatch(m)

	return m, nil
}

// DeleteMessage permanently removes message sent by caller
func (s *Service) DeleteMessage(ctx context.Context, caller, id int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if id < 1 {
		return validationf("message id is required")
	}

	if err := s.repo.DeleteMessage(ctx, id, caller); err != nil {
		return fromStorage("delete message", err)
	}

	return nil
}

// SetTyping records that caller is typing to target
func (s *Service) SetTyping(ctx context.Context, caller, target int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if target < 1 {
		return validationf("typing target id is required")
	}

	if err := s.tracker.Signal(ctx, caller, target); err != nil {
		return fromStorage("set typing", err)
	}

	return nil
}

// Typing reports whether subject is currently typing to caller
func (s *Service) Typing(ctx context.Context, caller, subject int64) (TypingStatus, error) {
	if err := requireCaller(caller); err != nil {
		return TypingStatus{}, err
	}
	if subject < 1 {
		return TypingStatus{}, validationf("subject user id is required")
	}

	isTyping, err := typing.IsTypingTo(ctx, s.tracker, subject, caller)
	if err != nil {
		return TypingStatus{}, fromStorage("get typing", err)
	}
	if !isTyping {
		return TypingStatus{}, nil
	}

	target := caller
	return TypingStatus{IsTyping: true, TypingTo: &target}, nil
}

// TouchActivity marks caller as active now and returns stored activity time
func (s *Service) TouchActivity(ctx context.Context, caller int64) (time.Time, error) {
	if err := requireCaller(caller); err != nil {
		return time.Time{}, err
	}

	ts, err := s.repo.TouchActivity(ctx, caller)
	if err != nil {
		return time.Time{}, fromStorage("touch activity", err)
	}

	return ts, nil
}

// Profile returns user with presence and block state relative to viewer
func (s *Service) Profile(ctx context.Context, viewer, user int64) (Profile, error) {
	if err := requireCaller(viewer); err != nil {
		return Profile{}, err
	}
	if user < 1 {
		return Profile{}, validationf("user id is required")
	}

	u, err := s.repo.UserByID(ctx, user)
	if err != nil {
		return Profile{}, fromStorage("get profile", err)
	}

	blocked := false
	if viewer != user {
		blocked, err = s.repo.IsBlocked(ctx, viewer, user)
		if err != nil {
			return Profile{}, fromStorage("get profile", err)
		}
	}

	return s.profile(u, blocked), nil
}

func (s *Service) profile(u storage.User, blocked bool) Profile {
	u.Username = sanitize(u.Username)
	u.Phone = sanitize(u.Phone)
	u.AvatarURL = sanitize(u.AvatarURL)
	u.Bio = sanitize(u.Bio)
	u.CustomStatus = sanitize(u.CustomStatus)
	u.City = sanitize(u.City)

	return Profile{
		User:      u,
		Status:    s.presence.Status(u.LastActivity),
		LastSeen:  presence.LastSeen(u.LastActivity),
		IsBlocked: blocked,
	}
}

// ProfileUpdate lists optional fields, nil means unchanged
type ProfileUpdate struct {
	Username     *string
	CustomStatus *string
}

// UpdateProfile changes username and/or custom status of caller
func (s *Service) UpdateProfile(ctx context.Context, caller int64, upd ProfileUpdate) (Profile, error) {
	if err := requireCaller(caller); err != nil {
		return Profile{}, err
	}
	if upd.Username == nil && upd.CustomStatus == nil {
		return Profile{}, validationf("custom status or username is required")
	}

	var su storage.ProfileUpdate
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return Profile{}, validationf("username must have non-zero length")
		}
		su.Username = &name
	}
	if upd.CustomStatus != nil {
		status := strings.TrimSpace(*upd.CustomStatus)
		su.CustomStatus = &status
	}

	u, err := s.repo.UpdateProfile(ctx, caller, su)
	if err != nil {
		return Profile{}, fromStorage("update profile", err)
	}

	return s.profile(u, false), nil
}

// SetPushToken stores device token used for caller notifications, nil or blank clears it
func (s *Service) SetPushToken(ctx context.Context, caller int64, token *string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if token != nil && strings.TrimSpace(*token) == "" {
		token = nil
	}

	if err := s.repo.SetPushToken(ctx, caller, token); err != nil {
		return fromStorage("set push token", err)
	}

	return nil
}

// Block forbids messaging between caller and target in both directions
func (s *Service) Block(ctx context.Context, caller, target int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if target < 1 {
		return validationf("user id is required")
	}
	if target == caller {
		return validationf("you can not block yourself")
	}

	if err := s.repo.Block(ctx, caller, target); err != nil {
		return fromStorage("block user", err)
	}

	s.logger.Debugw("User blocked", "user_id", caller, "blocked_user_id", target)

	return nil
}

// Unblock lifts block recorded by caller, block recorded by target stays in force
func (s *Service) Unblock(ctx context.Context, caller, target int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if target < 1 {
		return validationf("user id is required")
	}

	if err := s.repo.Unblock(ctx, caller, target); err != nil {
		return fromStorage("unblock user", err)
	}

	return nil
}

// sanitize strips control characters except tab and line breaks
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
