package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for service tests
type fakeStore struct {
	groups   map[uuid.UUID]*Group
	members  map[uuid.UUID]map[uuid.UUID]*Member
	requests map[uuid.UUID]*AccessRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:   make(map[uuid.UUID]*Group),
		members:  make(map[uuid.UUID]map[uuid.UUID]*Member),
		requests: make(map[uuid.UUID]*AccessRequest),
	}
}

func (f *fakeStore) addGroup(accessType AccessType) *Group {
	g := &Group{ID: uuid.New(), Name: "test", AccessType: accessType, AIOnlyWhenTagged: true}
	f.groups[g.ID] = g
	return g
}

func (f *fakeStore) addMember(groupID, userID uuid.UUID, role MemberRole) *Member {
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[uuid.UUID]*Member)
	}
	m := &Member{ID: uuid.New(), GroupID: groupID, UserID: userID, Role: role, JoinedAt: time.Now()}
	f.members[groupID][userID] = m
	return m
}

func (f *fakeStore) addRequest(groupID, userID uuid.UUID, status RequestStatus) *AccessRequest {
	r := &AccessRequest{ID: uuid.New(), GroupID: groupID, UserID: userID, Status: status, CreatedAt: time.Now()}
	f.requests[r.ID] = r
	return r
}

func (f *fakeStore) Create(ctx context.Context, creatorID uuid.UUID, req *CreateGroupRequest) (*Group, error) {
	g := &Group{ID: uuid.New(), Name: req.Name, AccessType: req.AccessType, MemberCount: 1, IsMember: true, IsAdmin: true}
	f.groups[g.ID] = g
	f.addMember(g.ID, creatorID, MemberRoleAdmin)
	return g, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id, viewerID uuid.UUID) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	out := *g
	out.MemberCount = len(f.members[id])
	if m := f.members[id][viewerID]; m != nil {
		out.IsMember = true
		out.IsAdmin = m.Role == MemberRoleAdmin
	}
	return &out, nil
}

func (f *fakeStore) List(ctx context.Context, viewerID uuid.UUID) ([]*Group, error) {
	var out []*Group
	for id := range f.groups {
		g, _ := f.GetByID(ctx, id, viewerID)
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, req *UpdateGroupRequest) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		g.Name = *req.Name
	}
	return g, nil
}

func (f *fakeStore) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error) {
	return f.members[groupID][userID], nil
}

func (f *fakeStore) AddMember(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error) {
	if f.members[groupID][userID] != nil {
		return nil, ErrMemberAlreadyExists
	}
	return f.addMember(groupID, userID, role), nil
}

func (f *fakeStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for _, m := range f.members[groupID] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error) {
	m := f.members[groupID][userID]
	if m == nil {
		return nil, nil
	}
	m.Role = role
	return m, nil
}

func (f *fakeStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if f.members[groupID][userID] == nil {
		return ErrMemberNotFound
	}
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeStore) CountAdmins(ctx context.Context, groupID uuid.UUID) (int, error) {
	count := 0
	for _, m := range f.members[groupID] {
		if m.Role == MemberRoleAdmin {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	return len(f.members[groupID]), nil
}

func (f *fakeStore) CreateAccessRequest(ctx context.Context, groupID, userID uuid.UUID, message *string) (*AccessRequest, error) {
	for _, r := range f.requests {
		if r.GroupID == groupID && r.UserID == userID && r.Status == RequestStatusPending {
			return nil, ErrRequestPending
		}
	}
	r := f.addRequest(groupID, userID, RequestStatusPending)
	r.Message = message
	return r, nil
}

func (f *fakeStore) GetAccessRequest(ctx context.Context, requestID uuid.UUID) (*AccessRequest, error) {
	return f.requests[requestID], nil
}

func (f *fakeStore) ListPendingRequests(ctx context.Context, groupID uuid.UUID) ([]*AccessRequest, error) {
	var out []*AccessRequest
	for _, r := range f.requests {
		if r.GroupID == groupID && r.Status == RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ApproveRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error) {
	r := f.requests[requestID]
	if r == nil || r.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	now := time.Now()
	r.Status = RequestStatusApproved
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &now
	f.addMember(r.GroupID, r.UserID, MemberRoleMember)
	return r, nil
}

func (f *fakeStore) RejectRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error) {
	r := f.requests[requestID]
	if r == nil || r.Status != RequestStatusPending {
		return nil, ErrRequestNotPending
	}
	now := time.Now()
	r.Status = RequestStatusRejected
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &now
	return r, nil
}

type recordedNotification struct {
	recipientID uuid.UUID
	message     string
}

type fakeNotifier struct {
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(ctx context.Context, recipientID uuid.UUID, message, entityType string, entityID uuid.UUID) {
	f.sent = append(f.sent, recordedNotification{recipientID: recipientID, message: message})
}

type recordedEvent struct {
	channel string
	event   string
}

type fakePublisher struct {
	events []recordedEvent
}

func (f *fakePublisher) Publish(channel, event, id string) {
	f.events = append(f.events, recordedEvent{channel: channel, event: event})
}

func (f *fakePublisher) hasEvent(event string) bool {
	for _, e := range f.events {
		if e.event == event {
			return true
		}
	}
	return false
}

func newTestService() (*Service, *fakeStore, *fakeNotifier, *fakePublisher) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	return NewService(store, notifier, publisher), store, notifier, publisher
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown access type is rejected", func(t *testing.T) {
		svc, _, _, _ := newTestService()

		_, err := svc.Create(ctx, uuid.New(), &CreateGroupRequest{Name: "test", AccessType: "invite_only"})
		assert.ErrorIs(t, err, ErrInvalidAccessType)
	})

	t.Run("creator becomes the first admin", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		creatorID := uuid.New()

		g, err := svc.Create(ctx, creatorID, &CreateGroupRequest{Name: "test", AccessType: AccessTypeOpen})
		require.NoError(t, err)

		member := store.members[g.ID][creatorID]
		require.NotNil(t, member)
		assert.Equal(t, MemberRoleAdmin, member.Role)
	})
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("open group admits directly", func(t *testing.T) {
		svc, store, _, publisher := newTestService()
		g := store.addGroup(AccessTypeOpen)
		userID := uuid.New()

		member, err := svc.Join(ctx, g.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, MemberRoleMember, member.Role)
		assert.Equal(t, userID, member.UserID)
		assert.True(t, publisher.hasEvent("member_joined"))
		assert.Empty(t, store.requests, "no access request for an open join")
	})

	t.Run("closed group rejects direct join", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)

		_, err := svc.Join(ctx, g.ID, uuid.New())
		assert.ErrorIs(t, err, ErrApprovalRequired)
	})

	t.Run("existing member cannot join twice", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		userID := uuid.New()
		store.addMember(g.ID, userID, MemberRoleMember)

		_, err := svc.Join(ctx, g.ID, userID)
		assert.ErrorIs(t, err, ErrMemberAlreadyExists)
	})

	t.Run("unknown group", func(t *testing.T) {
		svc, _, _, _ := newTestService()

		_, err := svc.Join(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, ErrGroupNotFound)
	})
}

func TestRequestAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending request", func(t *testing.T) {
		svc, store, _, publisher := newTestService()
		g := store.addGroup(AccessTypeApproval)
		userID := uuid.New()

		req, err := svc.RequestAccess(ctx, g.ID, userID, nil)
		require.NoError(t, err)
		assert.Equal(t, RequestStatusPending, req.Status)
		assert.True(t, publisher.hasEvent("request_created"))
	})

	t.Run("duplicate pending request conflicts", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)
		userID := uuid.New()
		store.addRequest(g.ID, userID, RequestStatusPending)

		_, err := svc.RequestAccess(ctx, g.ID, userID, nil)
		assert.ErrorIs(t, err, ErrRequestPending)
	})

	t.Run("a past rejection does not block a new request", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)
		userID := uuid.New()
		store.addRequest(g.ID, userID, RequestStatusRejected)

		req, err := svc.RequestAccess(ctx, g.ID, userID, nil)
		require.NoError(t, err)
		assert.Equal(t, RequestStatusPending, req.Status)
	})

	t.Run("open groups are joined, not petitioned", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)

		_, err := svc.RequestAccess(ctx, g.ID, uuid.New(), nil)
		assert.ErrorIs(t, err, ErrGroupOpen)
	})
}

func TestApproveRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("approval admits the requester", func(t *testing.T) {
		svc, store, notifier, publisher := newTestService()
		g := store.addGroup(AccessTypeApproval)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		requesterID := uuid.New()
		req := store.addRequest(g.ID, requesterID, RequestStatusPending)

		reviewed, err := svc.ApproveRequest(ctx, g.ID, adminID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, RequestStatusApproved, reviewed.Status)
		assert.Equal(t, adminID, *reviewed.ReviewedBy)

		member := store.members[g.ID][requesterID]
		require.NotNil(t, member, "approval must create the membership")
		assert.Equal(t, MemberRoleMember, member.Role)

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, requesterID, notifier.sent[0].recipientID)
		assert.True(t, publisher.hasEvent("request_reviewed"))
		assert.True(t, publisher.hasEvent("member_joined"))
	})

	t.Run("only admins review", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)
		memberID := uuid.New()
		store.addMember(g.ID, memberID, MemberRoleMember)
		req := store.addRequest(g.ID, uuid.New(), RequestStatusPending)

		_, err := svc.ApproveRequest(ctx, g.ID, memberID, req.ID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("reviewed requests stay reviewed", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		req := store.addRequest(g.ID, uuid.New(), RequestStatusApproved)

		_, err := svc.ApproveRequest(ctx, g.ID, adminID, req.ID)
		assert.ErrorIs(t, err, ErrRequestNotPending)
	})

	t.Run("request must belong to the group", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeApproval)
		other := store.addGroup(AccessTypeApproval)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		req := store.addRequest(other.ID, uuid.New(), RequestStatusPending)

		_, err := svc.ApproveRequest(ctx, g.ID, adminID, req.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestRejectRequest(t *testing.T) {
	ctx := context.Background()

	svc, store, notifier, publisher := newTestService()
	g := store.addGroup(AccessTypeApproval)
	adminID := uuid.New()
	store.addMember(g.ID, adminID, MemberRoleAdmin)
	requesterID := uuid.New()
	req := store.addRequest(g.ID, requesterID, RequestStatusPending)

	reviewed, err := svc.RejectRequest(context.Background(), g.ID, adminID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusRejected, reviewed.Status)
	assert.Nil(t, store.members[g.ID][requesterID], "rejection must not create a membership")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, requesterID, notifier.sent[0].recipientID)
	assert.True(t, publisher.hasEvent("request_reviewed"))
	assert.False(t, publisher.hasEvent("member_joined"))

	_, err = svc.RejectRequest(ctx, g.ID, adminID, req.ID)
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestPromoteAndDemote(t *testing.T) {
	ctx := context.Background()

	t.Run("promote notifies the new admin", func(t *testing.T) {
		svc, store, notifier, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminID := uuid.New()
		memberID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		store.addMember(g.ID, memberID, MemberRoleMember)

		member, err := svc.PromoteMember(ctx, g.ID, adminID, memberID)
		require.NoError(t, err)
		assert.Equal(t, MemberRoleAdmin, member.Role)
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, memberID, notifier.sent[0].recipientID)
	})

	t.Run("demoting the last admin is rejected", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		store.addMember(g.ID, uuid.New(), MemberRoleMember)

		_, err := svc.DemoteMember(ctx, g.ID, adminID, adminID)
		assert.ErrorIs(t, err, ErrLastAdmin)
	})

	t.Run("demoting one of two admins succeeds", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminA := uuid.New()
		adminB := uuid.New()
		store.addMember(g.ID, adminA, MemberRoleAdmin)
		store.addMember(g.ID, adminB, MemberRoleAdmin)

		member, err := svc.DemoteMember(ctx, g.ID, adminA, adminB)
		require.NoError(t, err)
		assert.Equal(t, MemberRoleMember, member.Role)
	})
}

func TestLeaveAndRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("sole admin cannot abandon remaining members", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		store.addMember(g.ID, uuid.New(), MemberRoleMember)

		err := svc.Leave(ctx, g.ID, adminID)
		assert.ErrorIs(t, err, ErrLastAdmin)
	})

	t.Run("last member may leave and empty the group", func(t *testing.T) {
		svc, store, _, publisher := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)

		err := svc.Leave(ctx, g.ID, adminID)
		require.NoError(t, err)
		assert.Empty(t, store.members[g.ID])
		assert.True(t, publisher.hasEvent("member_removed"))
	})

	t.Run("removal requires admin and notifies the removed user", func(t *testing.T) {
		svc, store, notifier, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		adminID := uuid.New()
		memberID := uuid.New()
		store.addMember(g.ID, adminID, MemberRoleAdmin)
		store.addMember(g.ID, memberID, MemberRoleMember)

		err := svc.RemoveMember(ctx, g.ID, memberID, adminID)
		assert.ErrorIs(t, err, ErrNotAuthorized)

		err = svc.RemoveMember(ctx, g.ID, adminID, memberID)
		require.NoError(t, err)
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, memberID, notifier.sent[0].recipientID)
	})

	t.Run("leaving a group you are not in", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)

		err := svc.Leave(ctx, g.ID, uuid.New())
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestAIPersona(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults fill unset fields", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)

		persona, err := svc.AIPersona(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, DefaultAIName, persona.Name)
		assert.Equal(t, DefaultAISystemPrompt, persona.SystemPrompt)
		assert.True(t, persona.OnlyWhenTagged)
	})

	t.Run("configured fields win", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		name := "Sócrates"
		prompt := "Responde siempre con preguntas."
		g.AIName = &name
		g.AISystemPrompt = &prompt
		g.AIOnlyWhenTagged = false

		persona, err := svc.AIPersona(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sócrates", persona.Name)
		assert.Equal(t, prompt, persona.SystemPrompt)
		assert.False(t, persona.OnlyWhenTagged)
	})

	t.Run("empty strings fall back to defaults", func(t *testing.T) {
		svc, store, _, _ := newTestService()
		g := store.addGroup(AccessTypeOpen)
		empty := ""
		g.AIName = &empty
		g.AISystemPrompt = &empty

		persona, err := svc.AIPersona(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, DefaultAIName, persona.Name)
		assert.Equal(t, DefaultAISystemPrompt, persona.SystemPrompt)
	})
}
