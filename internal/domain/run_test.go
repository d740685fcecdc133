package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusNext(t *testing.T) {
	t.Parallel()

	path := []RunStatus{StatusIdle, StatusTopicsSent, StatusTopicSelected, StatusDraftSent, StatusApproved, StatusPublished}
	for i := 0; i < len(path)-1; i++ {
		next, ok := path[i].Next()
		require.True(t, ok, path[i])
		assert.Equal(t, path[i+1], next)
		assert.True(t, path[i].Before(path[i+1]))
		assert.False(t, path[i+1].Before(path[i]))
	}

	_, ok := StatusPublished.Next()
	assert.False(t, ok)
	assert.False(t, RunStatus("DRAFTING").Valid())
	assert.True(t, StatusApproved.Valid())
}

func TestRunActive(t *testing.T) {
	t.Parallel()

	assert.True(t, WorkflowRun{Status: StatusTopicsSent}.Active())
	assert.True(t, WorkflowRun{Status: StatusApproved}.Active())
	assert.False(t, WorkflowRun{Status: StatusPublished}.Active())
}

func TestRunLeased(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)
	run := WorkflowRun{LeaseUntil: &until}

	assert.True(t, run.Leased(now))
	assert.False(t, run.Leased(until))
	assert.False(t, WorkflowRun{}.Leased(now))
}

func TestAdvanceStampsPhase(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lease := at.Add(time.Hour)
	run := WorkflowRun{Status: StatusDraftSent, LeaseUntil: &lease, Attempts: 3, LastError: "boom"}

	Advance(StatusApproved, at).Apply(&run, at)

	assert.Equal(t, StatusApproved, run.Status)
	require.NotNil(t, run.ApprovedAt)
	assert.Equal(t, at, *run.ApprovedAt)
	assert.Nil(t, run.PublishedAt)
	assert.Nil(t, run.LeaseUntil)
	assert.Zero(t, run.Attempts)
	assert.Empty(t, run.LastError)
	assert.Equal(t, at, run.UpdatedAt)
}

func TestPatchLeavesNilFieldsAlone(t *testing.T) {
	t.Parallel()

	topic := Topic{Title: "kept"}
	run := WorkflowRun{Status: StatusTopicSelected, SelectedTopic: &topic, Attempts: 2}

	draft := DraftPost{Title: "pending"}
	RunPatch{PendingDraft: &draft}.Apply(&run, time.Now())

	assert.Equal(t, StatusTopicSelected, run.Status)
	assert.Equal(t, "kept", run.SelectedTopic.Title)
	assert.Equal(t, 2, run.Attempts)
	require.NotNil(t, run.PendingDraft)

	draft.Title = "mutated"
	assert.Equal(t, "pending", run.PendingDraft.Title)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	sent := time.Now()
	run := WorkflowRun{
		Topics:        []Topic{{Title: "a"}},
		SelectedTopic: &Topic{Title: "a"},
		DraftPost:     &DraftPost{Title: "d", Tags: []string{"x"}},
		TopicsSentAt:  &sent,
	}
	out := run.Clone()
	out.Topics[0].Title = "changed"
	out.SelectedTopic.Title = "changed"
	out.DraftPost.Tags[0] = "changed"
	*out.TopicsSentAt = sent.Add(time.Hour)

	assert.Equal(t, "a", run.Topics[0].Title)
	assert.Equal(t, "a", run.SelectedTopic.Title)
	assert.Equal(t, "x", run.DraftPost.Tags[0])
	assert.Equal(t, sent, *run.TopicsSentAt)
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryARVR, ParseCategory(" ar/vr "))
	assert.Equal(t, CategoryIoT, ParseCategory("IOT"))
	assert.Equal(t, DefaultCategory, ParseCategory("Quantum"))
	assert.Equal(t, "ar-vr", CategoryARVR.Tag())
}

func TestReasonOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ReasonInvalidState, ReasonOf(NewActionError(ReasonInvalidState, "run %s", "x")))
	assert.Equal(t, ReasonInternal, ReasonOf(ErrNotFound))
}
