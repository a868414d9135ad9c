package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (LAWYRS_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("chat_sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

func (s *Store) memoriesCol() *firestore.CollectionRef {
	return s.client.Collection("agent_memories")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	Jurisdiction string    `firestore:"jurisdiction"`
	MatterID     string    `firestore:"matter_id"`
	MatterLabel  string    `firestore:"matter_label"`
	CreatedAt    time.Time `firestore:"created_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

type envelopeDoc struct {
	Agent        string   `firestore:"agent"`
	Confidence   *float64 `firestore:"confidence"`
	SubAgents    []string `firestore:"sub_agents"`
	RisksFlagged *int     `firestore:"risks_flagged"`
	Citations    *int     `firestore:"citations"`
	MemoryLoaded *bool    `firestore:"memory_loaded"`
	MultiAgent   *bool    `firestore:"multi_agent"`
	TokensUsed   int      `firestore:"tokens_used"`
	DurationMS   int64    `firestore:"duration_ms"`
	Model        string   `firestore:"model"`
}

type messageDoc struct {
	SessionID string       `firestore:"session_id"`
	Author    string       `firestore:"author"`
	Text      string       `firestore:"text"`
	CreatedAt time.Time    `firestore:"created_at"`
	Agent     *envelopeDoc `firestore:"agent"`
	IsError   bool         `firestore:"is_error"`
}

type memoryDoc struct {
	MatterID  string    `firestore:"matter_id"`
	SessionID string    `firestore:"session_id"`
	Agent     string    `firestore:"agent_type"`
	Key       string    `firestore:"key"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func toSessionDoc(session *domain.Session) sessionDoc {
	doc := sessionDoc{
		Jurisdiction: string(session.Jurisdiction),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	if session.Matter != nil {
		doc.MatterID = string(session.Matter.ID)
		doc.MatterLabel = session.Matter.Label
	}
	return doc
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Create(ctx, toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Set(ctx, toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}

	sess := &domain.Session{
		ID:           id,
		Jurisdiction: domain.Jurisdiction(doc.Jurisdiction),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if doc.MatterID != "" {
		sess.Matter = &domain.Matter{ID: domain.MatterID(doc.MatterID), Label: doc.MatterLabel}
	}
	return sess, nil
}

// DeleteSession removes the session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	if err := s.DeleteMessagesBySession(ctx, id); err != nil {
		return err
	}
	if _, err := s.sessionDoc(id).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore DeleteSession: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		SessionID: string(msg.SessionID),
		Author:    string(msg.Author),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		IsError:   msg.IsError,
	}
	if env := msg.Agent; env != nil {
		ed := &envelopeDoc{
			Agent:        string(env.Agent),
			Confidence:   env.Confidence,
			SubAgents:    env.SubAgents,
			RisksFlagged: env.RisksFlagged,
			Citations:    env.Citations,
			MemoryLoaded: env.MemoryLoaded,
			MultiAgent:   env.MultiAgent,
		}
		if tm := env.Telemetry; tm != nil {
			ed.TokensUsed, ed.DurationMS, ed.Model = tm.TokensUsed, tm.DurationMS, tm.Model
		}
		doc.Agent = ed
	}

	_, err := s.messagesCol(msg.SessionID).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.LimitToLast(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
	}

	out := make([]*domain.Message, 0, len(snaps))
	for _, snap := range snaps {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, fromMessageDoc(domain.MessageID(snap.Ref.ID), sessionID, doc))
	}
	return out, nil
}

func fromMessageDoc(id domain.MessageID, sessionID domain.SessionID, doc messageDoc) *domain.Message {
	msg := &domain.Message{
		ID:        id,
		SessionID: sessionID,
		Author:    domain.Role(doc.Author),
		Text:      doc.Text,
		CreatedAt: doc.CreatedAt,
		IsError:   doc.IsError,
	}
	if ed := doc.Agent; ed != nil {
		msg.Agent = &domain.AgentEnvelope{
			Agent:        domain.ParseAgentType(ed.Agent),
			Confidence:   ed.Confidence,
			SubAgents:    ed.SubAgents,
			RisksFlagged: ed.RisksFlagged,
			Citations:    ed.Citations,
			MemoryLoaded: ed.MemoryLoaded,
			MultiAgent:   ed.MultiAgent,
		}
		if ed.TokensUsed > 0 || ed.DurationMS > 0 || ed.Model != "" {
			msg.Agent.Telemetry = &domain.Telemetry{TokensUsed: ed.TokensUsed, DurationMS: ed.DurationMS, Model: ed.Model}
		}
	}
	return msg
}

func (s *Store) DeleteMessagesBySession(ctx context.Context, sessionID domain.SessionID) error {
	iter := s.messagesCol(sessionID).Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("firestore DeleteMessagesBySession: %w", err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return fmt.Errorf("firestore DeleteMessagesBySession: %w", err)
		}
	}
	bw.End()
	return nil
}

// ─────────────────────────────────────────
// MemoryStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMemory(ctx context.Context, m *domain.Memory) error {
	doc := memoryDoc{
		MatterID:  string(m.MatterID),
		SessionID: string(m.SessionID),
		Agent:     string(m.Agent),
		Key:       m.Key,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}

	ref := s.memoriesCol().NewDoc()
	if m.ID != "" {
		ref = s.memoriesCol().Doc(string(m.ID))
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendMemory: %w", err)
	}
	m.ID = domain.MemoryID(ref.ID)
	return nil
}

// ListMemories filters by matter in the query and by text client-side;
// Firestore has no substring search.
func (s *Store) ListMemories(ctx context.Context, q domain.MemoryQuery, limit int) ([]*domain.Memory, error) {
	query := s.memoriesCol().OrderBy("created_at", firestore.Desc)
	if q.MatterID != "" {
		query = s.memoriesCol().Where("matter_id", "==", string(q.MatterID)).OrderBy("created_at", firestore.Desc)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	out := []*domain.Memory{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMemories: %w", err)
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode memoryDoc: %w", err)
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(doc.Content), needle) &&
			!strings.Contains(strings.ToLower(doc.Key), needle) {
			continue
		}

		out = append(out, &domain.Memory{
			ID:        domain.MemoryID(snap.Ref.ID),
			MatterID:  domain.MatterID(doc.MatterID),
			SessionID: domain.SessionID(doc.SessionID),
			Agent:     domain.ParseAgentType(doc.Agent),
			Key:       doc.Key,
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) DeleteMemory(ctx context.Context, id domain.MemoryID) error {
	ref := s.memoriesCol().Doc(string(id))
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrMemoryNotFound
		}
		return fmt.Errorf("firestore DeleteMemory: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestore DeleteMemory: %w", err)
	}
	return nil
}
