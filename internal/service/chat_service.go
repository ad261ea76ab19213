package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/storage"
)

const maxChatNameLength = 100

// chatServiceImpl implements ChatService interface.
type chatServiceImpl struct {
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	users     UserService
	notifier  NotificationService
	publisher EventPublisher
	store     storage.Store
	pictures  pictureProcessor
	cfg       config.ChatConfig
}

// NewChatService creates a new chat service.
func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users UserService,
	notifier NotificationService,
	publisher EventPublisher,
	store storage.Store,
	cfg config.ChatConfig,
) ChatService {
	return &chatServiceImpl{
		chats:     chats,
		messages:  messages,
		users:     users,
		notifier:  notifier,
		publisher: publisher,
		store:     store,
		pictures:  newPictureProcessor(cfg.PictureSize, cfg.PictureQuality),
		cfg:       cfg,
	}
}

// CreateChat creates a chat with the requester and the given members.
func (s *chatServiceImpl) CreateChat(ctx context.Context, requesterID string, req *domain.CreateChatRequest) (*domain.ChatDetails, error) {
	ctx = detach(ctx)
	if len(req.MemberIDs) == 0 {
		return nil, domain.Validation("user_ids must be a non-empty array")
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}

	memberIDs := make([]string, 0, len(req.MemberIDs)+1)
	seen := make(map[string]bool, len(req.MemberIDs)+1)
	for _, id := range append([]string{requesterID}, req.MemberIDs...) {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.Validation("user ids cannot be blank")
		}
		if !seen[id] {
			seen[id] = true
			memberIDs = append(memberIDs, id)
		}
	}

	users, err := s.users.Lookup(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range memberIDs {
		if _, ok := users[id]; !ok {
			return nil, domain.NotFound("user %s not found", id)
		}
	}

	participants := make([]domain.Participant, len(memberIDs))
	for i, id := range memberIDs {
		participants[i] = domain.Participant{
			UserID:  id,
			IsAdmin: s.cfg.GrantCreatorAdmin && id == requesterID,
		}
	}

	chat := &domain.Chat{Name: name}
	if err := s.chats.Create(ctx, chat, participants); err != nil {
		return nil, err
	}
	for i := range participants {
		participants[i].ChatID = chat.ID
	}

	audit.Record(ctx, audit.CreateChat, requesterID, audit.Chat(chat.ID))
	s.notifyAdded(ctx, chat, requesterID, memberIDs[1:])

	return buildDetails(chat, participants, users), nil
}

// ListChats lists the chats a user participates in, most recently active first.
func (s *chatServiceImpl) ListChats(ctx context.Context, userID string) ([]domain.ChatListItem, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return []domain.ChatListItem{}, nil
	}

	chatIDs := make([]string, len(chats))
	for i, chat := range chats {
		chatIDs[i] = chat.ID
	}
	participants, err := s.chats.ListParticipantsForChats(ctx, chatIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.messages.LatestForChats(ctx, chatIDs)
	if err != nil {
		return nil, err
	}

	var userIDs []string
	for _, ps := range participants {
		userIDs = append(userIDs, participantIDs(ps)...)
	}
	for _, msg := range latest {
		userIDs = append(userIDs, msg.SenderID)
	}
	users, err := s.users.Lookup(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ChatListItem, len(chats))
	for i := range chats {
		chat := &chats[i]
		ps := participants[chat.ID]
		item := domain.ChatListItem{
			ID:           chat.ID,
			Name:         chat.Name,
			DisplayName:  displayName(chat, ps, userID, users),
			Picture:      chat.Picture,
			Kind:         domain.Classify(chat, ps),
			Participants: participantViews(ps, users),
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
		}
		if msg, ok := latest[chat.ID]; ok {
			sender := summaryOf(users, msg.SenderID)
			msg.Sender = &sender
			item.LastMessage = msg
		}
		items[i] = item
	}
	return items, nil
}

// GetChat returns a chat's details to one of its participants.
func (s *chatServiceImpl) GetChat(ctx context.Context, chatID, requesterID string) (*domain.ChatDetails, error) {
	chat, participants, err := loadChat(ctx, s.chats, chatID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.FindParticipant(participants, requesterID); !ok {
		return nil, errNotParticipant
	}
	return s.details(ctx, chat, participants)
}

// UpdateChat renames a chat and adds or removes participants. Only admins may
// update; membership changes report a result per user id.
func (s *chatServiceImpl) UpdateChat(ctx context.Context, chatID, requesterID string, req *domain.UpdateChatRequest) (*domain.UpdateChatResponse, error) {
	ctx = detach(ctx)
	for _, id := range req.AddParticipants {
		if containsID(req.RemoveParticipants, id) {
			return nil, domain.Conflict("user %s cannot be both added and removed", id)
		}
	}
	var name *string
	if req.Name != nil {
		n, err := normalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, domain.Validation("name cannot be blank")
		}
		name = n
	}

	addIDs := uniqueIDs(req.AddParticipants)
	users, err := s.users.Lookup(ctx, addIDs)
	if err != nil {
		return nil, err
	}

	resp := &domain.UpdateChatResponse{}
	var chat *domain.Chat
	err = s.chats.Transaction(ctx, func(repo repository.ChatRepository) error {
		c, participants, err := loadChat(ctx, repo, chatID)
		if err != nil {
			return err
		}
		if err := requireAdmin(participants, requesterID); err != nil {
			return err
		}
		chat = c

		if name != nil {
			if err := repo.UpdateName(ctx, chatID, name); err != nil {
				return err
			}
			chat.Name = name
		}
		if len(addIDs) > 0 {
			resp.Added, participants, err = addMembers(ctx, repo, chatID, participants, addIDs, users)
			if err != nil {
				return err
			}
		}
		if len(req.RemoveParticipants) > 0 {
			resp.Removed, _, err = removeMembers(ctx, repo, chat, participants, uniqueIDs(req.RemoveParticipants))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Record(ctx, audit.UpdateChat, requesterID, audit.Chat(chatID))
	s.notifyAdded(ctx, chat, requesterID, succeeded(resp.Added, domain.MemberAdded))

	chat, participants, err := loadChat(ctx, s.chats, chatID)
	if err != nil {
		return nil, err
	}
	resp.Chat, err = s.details(ctx, chat, participants)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// AddParticipants adds users to a chat. Existing participants are left as
// they are.
func (s *chatServiceImpl) AddParticipants(ctx context.Context, chatID, requesterID string, userIDs []string) ([]domain.MemberResult, error) {
	ctx = detach(ctx)
	resp, err := s.UpdateChat(ctx, chatID, requesterID, &domain.UpdateChatRequest{AddParticipants: userIDs})
	if err != nil {
		return nil, err
	}
	return resp.Added, nil
}

// RemoveParticipants removes users from a chat.
func (s *chatServiceImpl) RemoveParticipants(ctx context.Context, chatID, requesterID string, userIDs []string) ([]domain.MemberResult, error) {
	ctx = detach(ctx)
	resp, err := s.UpdateChat(ctx, chatID, requesterID, &domain.UpdateChatRequest{RemoveParticipants: userIDs})
	if err != nil {
		return nil, err
	}
	return resp.Removed, nil
}

// DeleteChat deletes a group chat with its participants and messages.
func (s *chatServiceImpl) DeleteChat(ctx context.Context, chatID, requesterID string) error {
	ctx = detach(ctx)
	l := log.Ctx(ctx)

	err := s.chats.Transaction(ctx, func(repo repository.ChatRepository) error {
		chat, participants, err := loadChat(ctx, repo, chatID)
		if err != nil {
			return err
		}
		if err := authorizeAdmin(chat, participants, requesterID, "be deleted"); err != nil {
			return err
		}
		if err := repo.Delete(ctx, chatID); err != nil {
			if errors.Is(err, repository.ErrChatNotFound) {
				return chatNotFound(chatID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Record(ctx, audit.DeleteChat, requesterID, audit.Chat(chatID))

	if err := s.publisher.Publish(ctx, domain.ChatDeleted{ChatID: chatID, DeletedBy: requesterID}); err != nil {
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to publish chat deleted event")
	}
	if n, err := s.store.Purge(ctx, picturePrefix(chatID)); err != nil {
		l.Warn().Err(err).Str(log.FieldChatID, chatID).Int("removed", n).Msg("failed to purge chat pictures")
	}
	return nil
}

// SetAdminFlags grants and revokes admin status. Assignments apply before
// revocations so an admin can hand over to a replacement in one request.
func (s *chatServiceImpl) SetAdminFlags(ctx context.Context, chatID, requesterID string, req *domain.SetAdminsRequest) ([]domain.MemberResult, error) {
	ctx = detach(ctx)
	for _, id := range req.Assign {
		if containsID(req.Remove, id) {
			return nil, domain.Validation("user %s cannot be both assigned and removed as admin", id)
		}
	}
	if len(req.Assign) == 0 && len(req.Remove) == 0 {
		return nil, domain.Validation("assign or remove must list at least one user")
	}

	var results []domain.MemberResult
	err := s.chats.Transaction(ctx, func(repo repository.ChatRepository) error {
		chat, participants, err := loadChat(ctx, repo, chatID)
		if err != nil {
			return err
		}
		if err := authorizeAdmin(chat, participants, requesterID, "have admins managed"); err != nil {
			return err
		}

		for _, id := range uniqueIDs(req.Assign) {
			r, err := setAdmin(ctx, repo, chatID, participants, id, true)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		for _, id := range uniqueIDs(req.Remove) {
			r, err := setAdmin(ctx, repo, chatID, participants, id, false)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Record(ctx, audit.SetAdmins, requesterID, audit.Chat(chatID))
	return results, nil
}

// ListAdmins lists the admins of a group chat.
func (s *chatServiceImpl) ListAdmins(ctx context.Context, chatID, requesterID string) ([]domain.UserSummary, error) {
	chat, participants, err := loadChat(ctx, s.chats, chatID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.FindParticipant(participants, requesterID); !ok {
		return nil, errNotParticipant
	}
	if domain.Classify(chat, participants) == domain.ChatKindDirect {
		return nil, domain.Conflict("admins can only be listed for group chats")
	}

	var adminIDs []string
	for _, p := range participants {
		if p.IsAdmin {
			adminIDs = append(adminIDs, p.UserID)
		}
	}
	users, err := s.users.Lookup(ctx, adminIDs)
	if err != nil {
		return nil, err
	}

	admins := make([]domain.UserSummary, len(adminIDs))
	for i, id := range adminIDs {
		admins[i] = summaryOf(users, id)
	}
	return admins, nil
}

// SetChatPicture stores a new picture for a group chat. The upload is
// cropped to a square JPEG before it is stored.
func (s *chatServiceImpl) SetChatPicture(ctx context.Context, chatID, requesterID string, file io.Reader, size int64, contentType string) (*domain.ChatDetails, error) {
	ctx = detach(ctx)
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, domain.Validation("picture must be an image")
	}
	if s.cfg.MaxPictureSize > 0 && size > s.cfg.MaxPictureSize {
		return nil, domain.Validation("picture exceeds %d bytes", s.cfg.MaxPictureSize)
	}

	if err := s.AuthorizeAdminAction(ctx, chatID, requesterID, "have a picture"); err != nil {
		return nil, err
	}

	data, err := s.pictures.process(file)
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldChatID, chatID).Msg("rejected chat picture")
		return nil, domain.Validation("picture could not be decoded")
	}

	key := picturePrefix(chatID) + uuid.New().String() + pictureExt
	obj := storage.Object{Key: key, Body: bytes.NewReader(data), Size: int64(len(data)), ContentType: pictureContentType}
	if err := s.store.Put(ctx, obj); err != nil {
		return nil, fmt.Errorf("failed to store chat picture: %w", err)
	}
	url, err := s.store.Link(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat picture url: %w", err)
	}
	if err := s.chats.UpdatePicture(ctx, chatID, url); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, chatNotFound(chatID)
		}
		return nil, err
	}

	audit.Record(ctx, audit.SetPicture, requesterID, audit.Chat(chatID))

	chat, participants, err := loadChat(ctx, s.chats, chatID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, chat, participants)
}

// AuthorizeAdminAction re-reads the chat and checks requesterID may perform an
// admin-only action on it.
func (s *chatServiceImpl) AuthorizeAdminAction(ctx context.Context, chatID, requesterID, action string) error {
	chat, participants, err := loadChat(ctx, s.chats, chatID)
	if err != nil {
		return err
	}
	return authorizeAdmin(chat, participants, requesterID, action)
}

// RequireParticipant checks that userID currently participates in chatID.
func (s *chatServiceImpl) RequireParticipant(ctx context.Context, chatID, userID string) error {
	return requireParticipant(ctx, s.chats, chatID, userID)
}

func (s *chatServiceImpl) details(ctx context.Context, chat *domain.Chat, participants []domain.Participant) (*domain.ChatDetails, error) {
	users, err := s.users.Lookup(ctx, participantIDs(participants))
	if err != nil {
		return nil, err
	}
	return buildDetails(chat, participants, users), nil
}

// notifyAdded sends a chat_added notification to every added user except the
// one who added them. Failures are logged.
func (s *chatServiceImpl) notifyAdded(ctx context.Context, chat *domain.Chat, addedBy string, userIDs []string) {
	l := log.Ctx(ctx)
	payload := domain.ChatAddedPayload{ChatID: chat.ID, Name: chat.Name, AddedBy: addedBy}
	for _, id := range userIDs {
		if id == addedBy {
			continue
		}
		if _, err := s.notifier.Notify(ctx, id, domain.NotificationChatAdded, payload); err != nil {
			l.Error().Err(err).Str(log.FieldChatID, chat.ID).Str(log.FieldUserID, id).Msg("failed to notify added participant")
		}
	}
}

func requireAdmin(participants []domain.Participant, requesterID string) error {
	p, ok := domain.FindParticipant(participants, requesterID)
	if !ok {
		return errNotParticipant
	}
	if !p.IsAdmin {
		return domain.Forbidden("only chat admins can update the chat")
	}
	return nil
}

// addMembers adds each id that names a known user. It returns the per-id
// results and the updated participant list; the error is reserved for store
// failures, which abort the batch.
func addMembers(ctx context.Context, repo repository.ChatRepository, chatID string, participants []domain.Participant, ids []string, users map[string]*domain.User) ([]domain.MemberResult, []domain.Participant, error) {
	results := make([]domain.MemberResult, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			results = append(results, domain.FailedResult(id, domain.Validation("user id cannot be blank")))
			continue
		}
		if _, ok := users[id]; !ok {
			results = append(results, domain.FailedResult(id, domain.NotFound("user %s not found", id)))
			continue
		}
		added, err := repo.AddParticipant(ctx, domain.Participant{ChatID: chatID, UserID: id})
		if err != nil {
			return nil, nil, err
		}
		if !added {
			results = append(results, domain.MemberResult{UserID: id, Status: domain.MemberExisting})
			continue
		}
		participants = append(participants, domain.Participant{ChatID: chatID, UserID: id})
		results = append(results, domain.MemberResult{UserID: id, Status: domain.MemberAdded})
	}
	return results, participants, nil
}

// removeMembers removes each id that is a participant, refusing to remove the
// last admin of a group chat.
func removeMembers(ctx context.Context, repo repository.ChatRepository, chat *domain.Chat, participants []domain.Participant, ids []string) ([]domain.MemberResult, []domain.Participant, error) {
	results := make([]domain.MemberResult, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			results = append(results, domain.FailedResult(id, domain.Validation("user id cannot be blank")))
			continue
		}
		if _, ok := domain.FindParticipant(participants, id); !ok {
			results = append(results, domain.FailedResult(id, domain.NotFound("user %s is not a participant", id)))
			continue
		}

		remaining := withoutParticipant(participants, id)
		if len(remaining) > 0 && domain.CountAdmins(participants) > 0 && domain.CountAdmins(remaining) == 0 &&
			domain.Classify(chat, remaining) == domain.ChatKindGroup {
			results = append(results, domain.FailedResult(id, domain.Conflict("cannot remove the last admin of a group chat")))
			continue
		}

		if err := repo.RemoveParticipant(ctx, chat.ID, id); err != nil {
			if errors.Is(err, repository.ErrParticipantNotFound) {
				results = append(results, domain.FailedResult(id, domain.NotFound("user %s is not a participant", id)))
				continue
			}
			return nil, nil, err
		}
		participants = remaining
		results = append(results, domain.MemberResult{UserID: id, Status: domain.MemberRemoved})
	}
	return results, participants, nil
}

// setAdmin applies one admin flag change and updates participants in place.
func setAdmin(ctx context.Context, repo repository.ChatRepository, chatID string, participants []domain.Participant, id string, isAdmin bool) (domain.MemberResult, error) {
	idx := -1
	for i, p := range participants {
		if p.UserID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.FailedResult(id, domain.NotFound("user %s is not a participant", id)), nil
	}
	if participants[idx].IsAdmin == isAdmin {
		return domain.MemberResult{UserID: id, Status: domain.MemberUnchanged}, nil
	}
	if !isAdmin && domain.CountAdmins(participants) == 1 {
		return domain.FailedResult(id, domain.Conflict("a group chat must keep at least one admin")), nil
	}

	if err := repo.SetAdmin(ctx, chatID, id, isAdmin); err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return domain.FailedResult(id, domain.NotFound("user %s is not a participant", id)), nil
		}
		return domain.MemberResult{}, err
	}
	participants[idx].IsAdmin = isAdmin
	if isAdmin {
		return domain.MemberResult{UserID: id, Status: domain.MemberPromoted}, nil
	}
	return domain.MemberResult{UserID: id, Status: domain.MemberDemoted}, nil
}

func buildDetails(chat *domain.Chat, participants []domain.Participant, users map[string]*domain.User) *domain.ChatDetails {
	return &domain.ChatDetails{
		ID:           chat.ID,
		Name:         chat.Name,
		Picture:      chat.Picture,
		Kind:         domain.Classify(chat, participants),
		Participants: participantViews(participants, users),
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}
}

func participantViews(participants []domain.Participant, users map[string]*domain.User) []domain.ParticipantView {
	views := make([]domain.ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = domain.ParticipantView{UserSummary: summaryOf(users, p.UserID), IsAdmin: p.IsAdmin}
	}
	return views
}

// displayName is the chat name, or the names of the other participants for an
// unnamed chat.
func displayName(chat *domain.Chat, participants []domain.Participant, viewerID string, users map[string]*domain.User) string {
	if chat.HasName() {
		return *chat.Name
	}
	var names []string
	for _, p := range participants {
		if p.UserID == viewerID {
			continue
		}
		names = append(names, summaryOf(users, p.UserID).Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func summaryOf(users map[string]*domain.User, userID string) domain.UserSummary {
	if u, ok := users[userID]; ok {
		return u.Summary()
	}
	return domain.UserSummary{ID: userID}
}

func participantIDs(participants []domain.Participant) []string {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	return ids
}

func withoutParticipant(participants []domain.Participant, userID string) []domain.Participant {
	out := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	return out
}

func succeeded(results []domain.MemberResult, status domain.MemberStatus) []string {
	var ids []string
	for _, r := range results {
		if r.Status == status {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

// uniqueIDs trims ids and drops duplicates, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsID(ids []string, id string) bool {
	id = strings.TrimSpace(id)
	for _, other := range ids {
		if strings.TrimSpace(other) == id {
			return true
		}
	}
	return false
}

func normalizeName(name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > maxChatNameLength {
		return nil, domain.Validation("name cannot exceed %d characters", maxChatNameLength)
	}
	return &trimmed, nil
}

func picturePrefix(chatID string) string {
	return "chats/" + chatID + "/"
}
