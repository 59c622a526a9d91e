package crosspost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/newshub/app/database"
)

type fakeStore struct {
	candidates []database.SocialCandidate
	pubs       map[string]*database.Publication
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{pubs: make(map[string]*database.Publication)}
	for _, id := range ids {
		s.candidates = append(s.candidates, database.SocialCandidate{StoryID: id, Title: "Title " + id, Summary: "Summary " + id})
		s.pubs[id] = &database.Publication{StoryID: id, WebStatus: "published", SocialStatus: database.SocialDisabled}
	}
	return s
}

func (s *fakeStore) EligibleForSocial(ctx context.Context, limit int) ([]database.SocialCandidate, error) {
	if len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

func (s *fakeStore) GetPublication(ctx context.Context, storyID string) (*database.Publication, error) {
	return s.pubs[storyID], nil
}

func (s *fakeStore) MarkSocialPosted(ctx context.Context, storyID, postID string) (bool, error) {
	pub := s.pubs[storyID]
	if pub.SocialPostID != "" {
		return false, nil
	}
	pub.SocialPostID = postID
	pub.SocialStatus = database.SocialPosted
	return true, nil
}

func (s *fakeStore) MarkSocialFailed(ctx context.Context, storyID string, status database.SocialStatus, errorMsg string) (bool, error) {
	pub := s.pubs[storyID]
	pub.SocialStatus = status
	pub.SocialAttempts++
	pub.SocialErrorLast = errorMsg
	return true, nil
}

type fakeRecorder struct {
	events []database.ErrorEvent
}

func (f *fakeRecorder) RecordError(ctx context.Context, event database.ErrorEvent) error {
	f.events = append(f.events, event)
	return nil
}

// scriptedPoster returns the error scripted for a link, or a post id.
type scriptedPoster struct {
	errs  map[string]error
	links []string
}

func (p *scriptedPoster) Post(ctx context.Context, message, link string) (string, error) {
	p.links = append(p.links, link)
	if err := p.errs[link]; err != nil {
		return "", err
	}
	return "post-" + link, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected database.SocialStatus
	}{
		{"invalid token", &APIError{HTTPStatus: 400, Code: 190}, database.SocialAuthError},
		{"session invalid", &APIError{HTTPStatus: 400, Code: 102}, database.SocialAuthError},
		{"unauthorized", &APIError{HTTPStatus: 401}, database.SocialAuthError},
		{"app rate limit", &APIError{HTTPStatus: 400, Code: 4}, database.SocialRateLimited},
		{"page rate limit", &APIError{HTTPStatus: 400, Code: 32}, database.SocialRateLimited},
		{"too many requests", &APIError{HTTPStatus: 429}, database.SocialRateLimited},
		{"server error", &APIError{HTTPStatus: 500, Code: 1}, database.SocialFailed},
		{"network", errors.New("connection reset"), database.SocialFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestPolicyPostsInOrder(t *testing.T) {
	store := newFakeStore("a", "b")
	poster := &scriptedPoster{}

	counters, err := NewPolicy(store, &fakeRecorder{}, poster, "https://site").Run(context.Background(), "run-1", nil)
	require.NoError(t, err)

	assert.Equal(t, Counters{Posted: 2}, counters)
	assert.Equal(t, []string{"https://site/story/a", "https://site/story/b"}, poster.links)
	assert.Equal(t, "post-https://site/story/a", store.pubs["a"].SocialPostID)
}

func TestPolicyHaltsOnAuthError(t *testing.T) {
	store := newFakeStore("a", "b", "c")
	poster := &scriptedPoster{errs: map[string]error{
		"https://site/story/b": &APIError{HTTPStatus: 400, Code: 190, Message: "Invalid OAuth access token."},
	}}
	recorder := &fakeRecorder{}

	counters, err := NewPolicy(store, recorder, poster, "https://site").Run(context.Background(), "run-1", nil)
	require.NoError(t, err)

	assert.Equal(t, Counters{Posted: 1, Failed: 1, Halted: true}, counters)
	assert.Len(t, poster.links, 2, "story c must not be attempted after an auth error")
	assert.Equal(t, database.SocialAuthError, store.pubs["b"].SocialStatus)
	assert.Equal(t, 1, store.pubs["b"].SocialAttempts)
	require.Len(t, recorder.events, 1)
	assert.Equal(t, database.ErrorEvent{
		RunID:   "run-1",
		Phase:   "crosspost",
		StoryID: "b",
		Code:    "auth_error",
		Message: "Facebook API 400 (code 190): Invalid OAuth access token.",
	}, recorder.events[0])
}

func TestPolicyContinuesPastRateLimitAndFailure(t *testing.T) {
	store := newFakeStore("a", "b", "c")
	poster := &scriptedPoster{errs: map[string]error{
		"https://site/story/a": &APIError{HTTPStatus: 400, Code: 32},
		"https://site/story/b": errors.New("timeout"),
	}}

	counters, err := NewPolicy(store, &fakeRecorder{}, poster, "https://site").Run(context.Background(), "run-1", nil)
	require.NoError(t, err)

	assert.Equal(t, Counters{Posted: 1, Failed: 2}, counters)
	assert.Equal(t, database.SocialRateLimited, store.pubs["a"].SocialStatus)
	assert.Equal(t, database.SocialFailed, store.pubs["b"].SocialStatus)
	assert.Equal(t, database.SocialPosted, store.pubs["c"].SocialStatus)
}

func TestPolicyNeverResubmitsPostedStory(t *testing.T) {
	store := newFakeStore("a", "b")
	store.pubs["a"].SocialPostID = "existing"
	poster := &scriptedPoster{}

	counters, err := NewPolicy(store, &fakeRecorder{}, poster, "https://site").Run(context.Background(), "run-1", nil)
	require.NoError(t, err)

	assert.Equal(t, Counters{Posted: 1, Skipped: 1}, counters)
	assert.Equal(t, []string{"https://site/story/b"}, poster.links)
	assert.Equal(t, "existing", store.pubs["a"].SocialPostID)
}

func TestPolicyStopsWhenOutOfTime(t *testing.T) {
	store := newFakeStore("a", "b")
	poster := &scriptedPoster{}

	calls := 0
	hasTime := func() bool {
		calls++
		return calls == 1
	}

	counters, err := NewPolicy(store, &fakeRecorder{}, poster, "https://site").Run(context.Background(), "run-1", hasTime)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Posted)
	assert.Len(t, poster.links, 1)
}
