package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIDAcceptsNumberAndString(t *testing.T) {
	var p wirePost
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42}`), &p))
	assert.Equal(t, "42", string(p.ID))

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc-1"}`), &p))
	assert.Equal(t, "abc-1", string(p.ID))

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &p))
	assert.Equal(t, "", string(p.ID))
}

func TestFlexTagsAcceptsArrayAndCommaString(t *testing.T) {
	var p wirePost
	require.NoError(t, json.Unmarshal([]byte(`{"tags": ["go", "web"]}`), &p))
	assert.Equal(t, []string{"go", "web"}, []string(p.Tags))

	require.NoError(t, json.Unmarshal([]byte(`{"tags": "go, web , "}`), &p))
	assert.Equal(t, []string{"go", "web"}, []string(p.Tags))

	require.NoError(t, json.Unmarshal([]byte(`{"tags": null}`), &p))
	assert.Nil(t, []string(p.Tags))
}

func TestNormalizePostBuildsCommentTree(t *testing.T) {
	raw := `{
		"id": 1,
		"title": "t",
		"content": "body text",
		"comments": [
			{"id": 10, "content": "top one"},
			{"id": 11, "parent_id": 10, "content": "reply to ten"},
			{"id": 12, "content": "top two"},
			{"id": 13, "parent_id": 10, "content": "second reply"}
		]
	}`
	var w wirePost
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	p := NewNormalizer("").Post(w)

	require.Len(t, p.Comments, 2)
	assert.Equal(t, "10", p.Comments[0].ID)
	require.Len(t, p.Comments[0].Replies, 2)
	assert.Equal(t, "11", p.Comments[0].Replies[0].ID)
	assert.Equal(t, "13", p.Comments[0].Replies[1].ID)
	assert.Empty(t, p.Comments[1].Replies)
	// Count covers the flat sequence, replies included.
	assert.Equal(t, 4, p.CommentCount)
}

func TestNormalizeOrphanReplyDegradesToTopLevel(t *testing.T) {
	raw := `{
		"id": 1,
		"comments": [
			{"id": 20, "parent_id": 99, "content": "orphan"},
			{"id": 21, "content": "top"}
		]
	}`
	var w wirePost
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	p := NewNormalizer("").Post(w)

	require.Len(t, p.Comments, 2)
	assert.Equal(t, "20", p.Comments[0].ID)
	assert.Empty(t, p.Comments[0].ParentID)
}

func TestNormalizeLikedDerivedFromViewer(t *testing.T) {
	raw := `{
		"id": 1,
		"likes": [{"user_id": 7}, {"user_id": 8}]
	}`
	var w wirePost
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	p := NewNormalizer("7").Post(w)
	assert.True(t, p.Liked)
	assert.Equal(t, 2, p.LikeCount)

	p = NewNormalizer("9").Post(w)
	assert.False(t, p.Liked)

	// Anonymous viewers never see liked state.
	p = NewNormalizer("").Post(w)
	assert.False(t, p.Liked)
}

func TestNormalizeAuthorFallsBackToUserKey(t *testing.T) {
	raw := `{"id": 1, "user": {"id": 3, "username": "ana"}}`
	var w wirePost
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	p := NewNormalizer("").Post(w)
	assert.Equal(t, "3", p.Author.ID)
	assert.Equal(t, "ana", p.Author.Name)
}

func TestNormalizeBodyAndStatusDefaults(t *testing.T) {
	raw := `{"id": 1, "content": "from content key"}`
	var w wirePost
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	p := NewNormalizer("").Post(w)
	assert.Equal(t, "from content key", p.Body)
	assert.Equal(t, StatusPublished, p.Status)
	assert.Equal(t, "from content key", p.Excerpt)
}

func TestExcerptTruncatesLongBody(t *testing.T) {
	long := make([]rune, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, 'x')
	}
	got := excerptOf("", string(long))
	assert.Len(t, []rune(got), excerptLen+1)

	assert.Equal(t, "explicit", excerptOf("explicit", string(long)))
}
