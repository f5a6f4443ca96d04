package message

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tertulia/internal/group"
	"tertulia/internal/profile"
)

// mentionsAI stands in for the real trigger matcher, which lives in a
// package that depends on this one.
func mentionsAI(content string) bool {
	return strings.Contains(strings.ToLower(content), "@ia")
}

// fakeStore is an in-memory Store for service tests
type fakeStore struct {
	messages []*Message
}

func (f *fakeStore) add(groupID uuid.UUID, userID *uuid.UUID, content string, isAI bool, replyToID *uuid.UUID) *Message {
	msg := &Message{
		ID:        uuid.New(),
		GroupID:   groupID,
		UserID:    userID,
		Content:   content,
		IsAI:      isAI,
		ReplyToID: replyToID,
		CreatedAt: time.Now().Add(time.Duration(len(f.messages)) * time.Second),
	}
	f.messages = append(f.messages, msg)
	return msg
}

func (f *fakeStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*Message, error) {
	var out []*Message
	for _, m := range f.messages {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Message, error) {
	out := make(map[uuid.UUID]*Message)
	for _, id := range ids {
		if m, _ := f.GetByID(ctx, id); m != nil {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, groupID, userID uuid.UUID, content string, isAI bool, replyToID *uuid.UUID) (*Message, error) {
	return f.add(groupID, &userID, content, isAI, replyToID), nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	for i, m := range f.messages {
		if m.ID == id {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

type fakeProfiles struct {
	byUserID map[uuid.UUID]*profile.Profile
}

func (f *fakeProfiles) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*profile.Profile, error) {
	out := make(map[uuid.UUID]*profile.Profile)
	for _, id := range userIDs {
		if p, ok := f.byUserID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeGroups struct {
	members map[uuid.UUID]bool
	admins  map[uuid.UUID]bool
	persona *group.AIPersona
}

func (f *fakeGroups) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return f.members[userID], nil
}

func (f *fakeGroups) IsAdmin(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakeGroups) AIPersona(ctx context.Context, groupID uuid.UUID) (*group.AIPersona, error) {
	if f.persona != nil {
		return f.persona, nil
	}
	return &group.AIPersona{Name: group.DefaultAIName, SystemPrompt: group.DefaultAISystemPrompt, OnlyWhenTagged: true}, nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(channel, event, id string) {
	f.events = append(f.events, event)
}

type fixture struct {
	svc       *Service
	store     *fakeStore
	profiles  *fakeProfiles
	groups    *fakeGroups
	publisher *fakePublisher
	groupID   uuid.UUID
}

func newFixture() *fixture {
	store := &fakeStore{}
	profiles := &fakeProfiles{byUserID: make(map[uuid.UUID]*profile.Profile)}
	groups := &fakeGroups{members: make(map[uuid.UUID]bool), admins: make(map[uuid.UUID]bool)}
	publisher := &fakePublisher{}
	return &fixture{
		svc:       NewService(store, profiles, groups, publisher, mentionsAI),
		store:     store,
		profiles:  profiles,
		groups:    groups,
		publisher: publisher,
		groupID:   uuid.New(),
	}
}

func (f *fixture) addUser(name string) uuid.UUID {
	id := uuid.New()
	f.groups.members[id] = true
	f.profiles.byUserID[id] = &profile.Profile{ID: uuid.New(), UserID: id, DisplayName: name}
	return id
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("messages keep creation order with authors resolved", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		blas := f.addUser("Blas")
		f.store.add(f.groupID, &ana, "hola", false, nil)
		f.store.add(f.groupID, &blas, "buenas", false, nil)
		f.store.add(f.groupID, &ana, "¿qué tal?", false, nil)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "hola", messages[0].Content)
		assert.Equal(t, "Ana", messages[0].Author.DisplayName)
		assert.Equal(t, "Blas", messages[1].Author.DisplayName)
		assert.Equal(t, "¿qué tal?", messages[2].Content)
	})

	t.Run("ai messages carry the persona name", func(t *testing.T) {
		f := newFixture()
		f.groups.persona = &group.AIPersona{Name: "Sócrates", SystemPrompt: "x"}
		ana := f.addUser("Ana")
		f.store.add(f.groupID, &ana, "claro que sí", true, nil)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Sócrates", messages[0].Author.DisplayName)
	})

	t.Run("unknown author falls back to a generic name", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		ghost := uuid.New()
		f.store.add(f.groupID, &ghost, "hola", false, nil)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		assert.Equal(t, "Usuario", messages[0].Author.DisplayName)
	})

	t.Run("non-members cannot read", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.List(ctx, f.groupID, uuid.New())
		assert.ErrorIs(t, err, ErrNotMember)
	})
}

func TestListReplyPreviews(t *testing.T) {
	ctx := context.Background()

	t.Run("only the immediate parent is previewed", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		blas := f.addUser("Blas")
		a := f.store.add(f.groupID, &ana, "primer mensaje", false, nil)
		b := f.store.add(f.groupID, &blas, "respuesta al primero", false, &a.ID)
		c := f.store.add(f.groupID, &ana, "respuesta a la respuesta", false, &b.ID)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		require.Len(t, messages, 3)

		require.NotNil(t, messages[1].ReplyTo)
		assert.Equal(t, "primer mensaje", messages[1].ReplyTo.Content)
		assert.Equal(t, "Ana", messages[1].ReplyTo.AuthorName)

		require.NotNil(t, messages[2].ReplyTo)
		assert.Equal(t, "respuesta al primero", messages[2].ReplyTo.Content)
		assert.Equal(t, "Blas", messages[2].ReplyTo.AuthorName)
		_ = c
	})

	t.Run("long parents are truncated", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		long := strings.Repeat("aá", 100)
		parent := f.store.add(f.groupID, &ana, long, false, nil)
		f.store.add(f.groupID, &ana, "reply", false, &parent.ID)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		preview := messages[1].ReplyTo.Content
		assert.True(t, strings.HasSuffix(preview, "…"))
		assert.Equal(t, replyPreviewLimit+1, len([]rune(preview)))
	})

	t.Run("deleted parent leaves no preview", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		missing := uuid.New()
		f.store.add(f.groupID, &ana, "reply to nothing", false, &missing)

		messages, err := f.svc.List(ctx, f.groupID, ana)
		require.NoError(t, err)
		assert.Nil(t, messages[0].ReplyTo)
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("send reports whether the ai was mentioned", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")

		_, mentioned, err := f.svc.Send(ctx, f.groupID, ana, &SendMessageRequest{Content: "hola a todos"})
		require.NoError(t, err)
		assert.False(t, mentioned)

		_, mentioned, err = f.svc.Send(ctx, f.groupID, ana, &SendMessageRequest{Content: "@ia ¿qué opinas?"})
		require.NoError(t, err)
		assert.True(t, mentioned)
		assert.Contains(t, f.publisher.events, "message_created")
	})

	t.Run("blank content is rejected", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")

		_, _, err := f.svc.Send(ctx, f.groupID, ana, &SendMessageRequest{Content: "   "})
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("non-members cannot send", func(t *testing.T) {
		f := newFixture()
		_, _, err := f.svc.Send(ctx, f.groupID, uuid.New(), &SendMessageRequest{Content: "hola"})
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("reply parent must live in the same group", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		otherGroup := uuid.New()
		parent := f.store.add(otherGroup, &ana, "elsewhere", false, nil)
		parentID := parent.ID.String()

		_, _, err := f.svc.Send(ctx, f.groupID, ana, &SendMessageRequest{Content: "reply", ReplyToID: &parentID})
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("authors delete their own messages", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		msg := f.store.add(f.groupID, &ana, "borrar esto", false, nil)

		err := f.svc.Delete(ctx, f.groupID, ana, msg.ID)
		require.NoError(t, err)
		assert.Empty(t, f.store.messages)
		assert.Contains(t, f.publisher.events, "message_deleted")
	})

	t.Run("members cannot delete others' messages", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		blas := f.addUser("Blas")
		msg := f.store.add(f.groupID, &ana, "mío", false, nil)

		err := f.svc.Delete(ctx, f.groupID, blas, msg.ID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("admins delete any message including ai replies", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		admin := f.addUser("Admin")
		f.groups.admins[admin] = true
		aiMsg := f.store.add(f.groupID, &ana, "respuesta del asistente", true, nil)

		err := f.svc.Delete(ctx, f.groupID, admin, aiMsg.ID)
		require.NoError(t, err)
	})

	t.Run("the triggering user cannot delete an ai reply", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		aiMsg := f.store.add(f.groupID, &ana, "respuesta del asistente", true, nil)

		err := f.svc.Delete(ctx, f.groupID, ana, aiMsg.ID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("messages from other groups are invisible", func(t *testing.T) {
		f := newFixture()
		ana := f.addUser("Ana")
		msg := f.store.add(uuid.New(), &ana, "otro grupo", false, nil)

		err := f.svc.Delete(ctx, f.groupID, ana, msg.ID)
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}
