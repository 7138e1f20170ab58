package audience

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline-dev/castline/internal/database"
	"github.com/castline-dev/castline/internal/filters"
	"github.com/castline-dev/castline/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewService(db, filters.Default(), zerolog.Nop())
}

func TestContacts_CRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateContact(ctx, ContactInput{Email: " Ada@Example.com ", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, models.ContactStatusSubscribed, c.Status)

	_, err = svc.CreateContact(ctx, ContactInput{Email: "ADA@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.CreateContact(ctx, ContactInput{Email: "grace@example.com", FirstName: "Grace", Status: models.ContactStatusUnsubscribed})
	require.NoError(t, err)

	list, total, err := svc.ListContacts(ctx, ContactQuery{Search: "gra"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Grace", list[0].FirstName)

	_, total, err = svc.ListContacts(ctx, ContactQuery{Status: models.ContactStatusSubscribed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	updated, err := svc.UpdateContact(ctx, c.ID, ContactInput{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", updated.LastName)

	_, err = svc.UpdateContact(ctx, c.ID, ContactInput{Email: "grace@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, svc.DeleteContact(ctx, c.ID))
	_, err = svc.GetContact(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	vip, err := svc.CreateTag(ctx, TagInput{Name: "VIP", Color: "#ff0000"})
	require.NoError(t, err)
	beta, err := svc.CreateTag(ctx, TagInput{Name: "beta"})
	require.NoError(t, err)

	_, err = svc.CreateTag(ctx, TagInput{Name: "vip"})
	assert.ErrorIs(t, err, ErrDuplicate)

	c, err := svc.CreateContact(ctx, ContactInput{Email: "ada@example.com"})
	require.NoError(t, err)

	tagged, err := svc.AssignTags(ctx, c.ID, []string{vip.ID, beta.ID, vip.ID})
	require.NoError(t, err)
	assert.Len(t, tagged.Tags, 2)

	_, err = svc.AssignTags(ctx, c.ID, []string{"missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	list, total, err := svc.ListContacts(ctx, ContactQuery{TagID: vip.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)

	require.NoError(t, svc.RemoveTag(ctx, c.ID, beta.ID))
	got, err := svc.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "VIP", got.Tags[0].Name)

	require.NoError(t, svc.DeleteTag(ctx, vip.ID))
	got, err = svc.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "beta", tags[0].Name)
}

func TestSegments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seg, err := svc.CreateSegment(ctx, SegmentInput{
		Name: "Engaged",
		Filter: filters.Group{Conditions: []filters.Condition{
			{Field: "status", Operator: "is", Value: "subscribed"},
		}},
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, filters.MatchAll, seg.Filter.Match)

	_, err = svc.CreateSegment(ctx, SegmentInput{
		Name:   "Broken",
		Filter: filters.Group{Conditions: []filters.Condition{{Field: "nope", Operator: "is", Value: "x"}}},
	}, "user-1")
	assert.ErrorIs(t, err, filters.ErrInvalidFilter)

	a, err := svc.CreateContact(ctx, ContactInput{Email: "a@example.com"})
	require.NoError(t, err)
	b, err := svc.CreateContact(ctx, ContactInput{Email: "b@example.com", Status: models.ContactStatusBounced})
	require.NoError(t, err)

	require.NoError(t, svc.SetMembers(ctx, seg.ID, []string{a.ID, b.ID}))
	count, err := svc.MemberCount(ctx, seg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	assert.ErrorIs(t, svc.SetMembers(ctx, seg.ID, []string{"missing"}), ErrNotFound)

	list, err := svc.ListSegments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 1, list[0].MemberCount)

	reloaded, err := svc.GetSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Filter.Conditions, 1)
	assert.Equal(t, "subscribed", reloaded.Filter.Conditions[0].Value)

	updated, err := svc.UpdateSegment(ctx, seg.ID, SegmentInput{Name: "Renamed", Filter: filters.Group{Match: filters.MatchAny}})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, svc.SetMembers(ctx, seg.ID, nil))
	count, err = svc.MemberCount(ctx, seg.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.DeleteSegment(ctx, seg.ID))
	_, err = svc.GetSegment(ctx, seg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
