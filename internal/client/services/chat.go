package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lumensanctum/sanctum/internal/client/client"
	"github.com/lumensanctum/sanctum/internal/client/entities"
	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/securestore"
	"github.com/lumensanctum/sanctum/internal/common"
	"github.com/lumensanctum/sanctum/internal/logging"
	"golang.org/x/sync/errgroup"
)

// ChatService runs one-to-one and group conversations through the
// classifier and the strike machine.
type ChatService struct {
	kv         securestore.KV
	session    *Session
	roster     *entities.Roster
	classifier client.Classifier
	strikes    *StrikeMachine
	term       *Terminator
	clock      Clock
	logger     logging.Logger

	// sendMu keeps one turn per transcript in flight, so history
	// read-append-write cycles do not interleave.
	sendMu sync.Mutex
}

func NewChatService(kv securestore.KV, session *Session, roster *entities.Roster, classifier client.Classifier,
	strikes *StrikeMachine, term *Terminator, clock Clock, logger logging.Logger) *ChatService {
	return &ChatService{
		kv:         kv,
		session:    session,
		roster:     roster,
		classifier: classifier,
		strikes:    strikes,
		term:       term,
		clock:      clock,
		logger:     logger.With("component", "chat"),
	}
}

// History returns the transcript for entityID. An undecodable transcript is
// removed and reported as empty.
func (s *ChatService) History(ctx context.Context, entityID string) ([]models.ChatMessage, error) {
	return s.loadHistory(ctx, common.ChatHistoryKey(entityID))
}

func (s *ChatService) GroupHistory(ctx context.Context) ([]models.ChatMessage, error) {
	return s.loadHistory(ctx, common.KeyGroupChatHistory)
}

func (s *ChatService) loadHistory(ctx context.Context, key string) ([]models.ChatMessage, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var msgs []models.ChatMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.logger.Warn(ctx, "failed to load chat history", "key", key, "error", err)
		if err := s.kv.Remove(ctx, key); err != nil {
			return nil, fmt.Errorf("remove %s: %w", key, err)
		}
		return nil, nil
	}
	return msgs, nil
}

func (s *ChatService) saveHistory(ctx context.Context, key string, msgs []models.ChatMessage) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		s.logger.Error(ctx, "failed to save chat history", "key", key, "error", err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *ChatService) message(sender, content string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		Timestamp: s.clock.Now(),
	}
}

func lastWasStrike(history []models.ChatMessage) bool {
	return len(history) > 0 && history[len(history)-1].IsStrikeMessage
}

// Send runs one turn with a single entity and returns the updated
// transcript.
func (s *ChatService) Send(ctx context.Context, entityID, content string, att *models.Attachment) ([]models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" && att == nil {
		return nil, ErrEmptyMessage
	}
	if err := s.strikes.Gate(); err != nil {
		return nil, err
	}
	entity, ok := s.roster.Get(entityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	user := s.session.Current()
	if user == nil {
		return nil, common.ErrNoSession
	}
	if !user.CanAccess(entityID) || !entity.Online() {
		return nil, fmt.Errorf("%w: %s", ErrEntityUnavailable, entity.Name)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	// A turn queued behind the lock sees the strikes of the turn before it.
	if err := s.strikes.Gate(); err != nil {
		return nil, err
	}
	if user = s.session.Current(); user == nil {
		return nil, common.ErrNoSession
	}

	key := common.ChatHistoryKey(entityID)
	history, err := s.loadHistory(ctx, key)
	if err != nil {
		return nil, err
	}

	userMsg := s.message(models.SenderUser, content)
	userMsg.Attachment = att
	current := append(slices.Clone(history), userMsg)

	req := client.NewClassifyRequest(user, entity, current, lastWasStrike(history), att)
	outcome, err := s.classifier.Classify(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "classification failed", "entity", entityID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if s.term.Terminated() {
		return nil, common.ErrTerminated
	}

	switch o := outcome.(type) {
	case models.OutcomeSuspectedTampering:
		eff, err := s.strikes.Apply(ctx, o, CooldownAssign)
		if err != nil {
			return nil, err
		}
		if eff.Terminated {
			return nil, common.ErrTerminated
		}
		return current, nil

	case models.OutcomeConsentViolation:
		eff, err := s.strikes.Apply(ctx, o, CooldownAssign)
		if err != nil {
			return nil, err
		}
		if eff.Terminated {
			return nil, common.ErrTerminated
		}
		guidance := s.message(entity.Name, o.Guidance)
		strike := s.message(models.SenderSystem, fmt.Sprintf("STRIKE %d RECORDED.", eff.Strike))
		strike.IsStrikeMessage = true
		current = append(current, guidance, strike)

	case models.OutcomeOK:
		reply := s.message(entity.Name, o.Response)
		reply.Confidence = o.Confidence
		reply.GeneratedMedia = o.GeneratedMedia
		current = append(current, reply)
	}

	if err := s.saveHistory(ctx, key, current); err != nil {
		return current, err
	}
	return current, nil
}

type groupReply struct {
	entity  models.Entity
	outcome models.Outcome
	// msg carries the id and arrival timestamp.
	msg models.ChatMessage
}

// SendGroup fans one message out to every online entity the user can
// access. Replies are applied in the order they resolve, so strikes are
// numbered serially; the committed transcript is sorted by timestamp.
func (s *ChatService) SendGroup(ctx context.Context, content string) ([]models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.strikes.Gate(); err != nil {
		return nil, err
	}
	user := s.session.Current()
	if user == nil {
		return nil, common.ErrNoSession
	}
	var online []models.Entity
	if len(user.AccessibleEntities) > 0 {
		online = s.roster.Online(user.AccessibleEntities)
	}
	if len(online) == 0 {
		return nil, ErrNoEntitiesOnline
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.strikes.Gate(); err != nil {
		return nil, err
	}
	if user = s.session.Current(); user == nil {
		return nil, common.ErrNoSession
	}

	history, err := s.loadHistory(ctx, common.KeyGroupChatHistory)
	if err != nil {
		return nil, err
	}
	userMsg := s.message(models.SenderUser, content)
	current := append(slices.Clone(history), userMsg)
	wasStrike := lastWasStrike(history)

	var (
		mu      sync.Mutex
		replies []groupReply
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range online {
		g.Go(func() error {
			req := client.NewClassifyRequest(user, e, current, wasStrike, nil)
			outcome, err := s.classifier.Classify(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			mu.Lock()
			replies = append(replies, groupReply{entity: e, outcome: outcome, msg: s.message(e.Name, "")})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn(ctx, "group classification failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if s.term.Terminated() {
		return nil, common.ErrTerminated
	}

	produced := make([]models.ChatMessage, 0, len(replies))
	for _, r := range replies {
		switch o := r.outcome.(type) {
		case models.OutcomeSuspectedTampering, models.OutcomeConsentViolation:
			eff, err := s.strikes.Apply(ctx, o, CooldownMax)
			if err != nil {
				return nil, err
			}
			if eff.Terminated {
				return nil, common.ErrTerminated
			}
			if eff.Strike > 0 {
				msg := r.msg
				msg.Sender = models.SenderSystem
				msg.Content = fmt.Sprintf("STRIKE %d INCURRED DUE TO RESPONSE FROM %s.", eff.Strike, r.entity.Name)
				msg.IsStrikeMessage = true
				produced = append(produced, msg)
			}

		case models.OutcomeOK:
			if strings.TrimSpace(o.Response) == "" {
				continue
			}
			msg := r.msg
			msg.Content = o.Response
			msg.Confidence = o.Confidence
			msg.GeneratedMedia = o.GeneratedMedia
			produced = append(produced, msg)
		}
	}

	current = append(current, produced...)
	slices.SortStableFunc(current, func(a, b models.ChatMessage) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	if err := s.saveHistory(ctx, common.KeyGroupChatHistory, current); err != nil {
		return current, err
	}
	return current, nil
}
