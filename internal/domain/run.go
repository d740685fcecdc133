package domain

import "time"

// RunStatus enumerates the stored workflow milestones.
type RunStatus string

const (
	// StatusIdle names the absence of an active run. It is never stored.
	StatusIdle          RunStatus = "IDLE"
	StatusTopicsSent    RunStatus = "TOPICS_SENT"
	StatusTopicSelected RunStatus = "TOPIC_SELECTED"
	StatusDraftSent     RunStatus = "DRAFT_SENT"
	StatusApproved      RunStatus = "APPROVED"
	StatusPublished     RunStatus = "PUBLISHED"
)

var statusOrder = map[RunStatus]int{
	StatusIdle:          0,
	StatusTopicsSent:    1,
	StatusTopicSelected: 2,
	StatusDraftSent:     3,
	StatusApproved:      4,
	StatusPublished:     5,
}

// Valid reports whether the status is one of the known milestones.
func (s RunStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether a run in this status no longer blocks a new cycle.
func (s RunStatus) Terminal() bool {
	return s == StatusIdle || s == StatusPublished
}

// Next returns the single legal successor, or false for PUBLISHED.
func (s RunStatus) Next() (RunStatus, bool) {
	switch s {
	case StatusIdle:
		return StatusTopicsSent, true
	case StatusTopicsSent:
		return StatusTopicSelected, true
	case StatusTopicSelected:
		return StatusDraftSent, true
	case StatusDraftSent:
		return StatusApproved, true
	case StatusApproved:
		return StatusPublished, true
	default:
		return "", false
	}
}

// Before reports whether s precedes other on the forward path.
func (s RunStatus) Before(other RunStatus) bool {
	return statusOrder[s] < statusOrder[other]
}

// WorkflowRun is one research → publish cycle.
type WorkflowRun struct {
	ID            string
	Status        RunStatus
	Topics        []Topic
	SelectedTopic *Topic
	DraftPost     *DraftPost
	ApprovalToken string
	PostID        string

	// Retry bookkeeping. PendingDraft holds writer output while the run is
	// still TOPIC_SELECTED; it becomes DraftPost on the advance to DRAFT_SENT.
	PendingDraft *DraftPost
	LeaseUntil   *time.Time
	Attempts     int
	LastError    string

	CreatedAt       time.Time
	UpdatedAt       time.Time
	TopicsSentAt    *time.Time
	TopicSelectedAt *time.Time
	DraftSentAt     *time.Time
	ApprovedAt      *time.Time
	PublishedAt     *time.Time
}

// Active reports whether the run blocks a new cycle.
func (r WorkflowRun) Active() bool {
	return !r.Status.Terminal()
}

// Leased reports whether another attempt holds the run at the given instant.
func (r WorkflowRun) Leased(now time.Time) bool {
	return r.LeaseUntil != nil && r.LeaseUntil.After(now)
}

// TopicsDelivered reports whether the topic email went out for this run.
func (r WorkflowRun) TopicsDelivered() bool {
	return r.TopicsSentAt != nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r WorkflowRun) Clone() WorkflowRun {
	out := r
	if r.Topics != nil {
		out.Topics = make([]Topic, len(r.Topics))
		copy(out.Topics, r.Topics)
	}
	if r.SelectedTopic != nil {
		t := *r.SelectedTopic
		out.SelectedTopic = &t
	}
	out.DraftPost = r.DraftPost.clone()
	out.PendingDraft = r.PendingDraft.clone()
	out.LeaseUntil = cloneTime(r.LeaseUntil)
	out.TopicsSentAt = cloneTime(r.TopicsSentAt)
	out.TopicSelectedAt = cloneTime(r.TopicSelectedAt)
	out.DraftSentAt = cloneTime(r.DraftSentAt)
	out.ApprovedAt = cloneTime(r.ApprovedAt)
	out.PublishedAt = cloneTime(r.PublishedAt)
	return out
}

// RunPatch lists the columns a conditional update writes. Nil fields are left alone.
type RunPatch struct {
	Status          *RunStatus
	Topics          []Topic
	SelectedTopic   *Topic
	DraftPost       *DraftPost
	PendingDraft    *DraftPost
	PostID          *string
	TopicsSentAt    *time.Time
	TopicSelectedAt *time.Time
	DraftSentAt     *time.Time
	ApprovedAt      *time.Time
	PublishedAt     *time.Time

	// ClearLease drops the claim held by the current attempt and resets the
	// attempt counter.
	ClearLease bool
}

// Apply writes the patch onto run and stamps UpdatedAt.
func (p RunPatch) Apply(run *WorkflowRun, now time.Time) {
	if p.Status != nil {
		run.Status = *p.Status
	}
	if p.Topics != nil {
		run.Topics = append([]Topic(nil), p.Topics...)
	}
	if p.SelectedTopic != nil {
		t := *p.SelectedTopic
		run.SelectedTopic = &t
	}
	if p.DraftPost != nil {
		run.DraftPost = p.DraftPost.clone()
	}
	if p.PendingDraft != nil {
		run.PendingDraft = p.PendingDraft.clone()
	}
	if p.PostID != nil {
		run.PostID = *p.PostID
	}
	if p.TopicsSentAt != nil {
		run.TopicsSentAt = cloneTime(p.TopicsSentAt)
	}
	if p.TopicSelectedAt != nil {
		run.TopicSelectedAt = cloneTime(p.TopicSelectedAt)
	}
	if p.DraftSentAt != nil {
		run.DraftSentAt = cloneTime(p.DraftSentAt)
	}
	if p.ApprovedAt != nil {
		run.ApprovedAt = cloneTime(p.ApprovedAt)
	}
	if p.PublishedAt != nil {
		run.PublishedAt = cloneTime(p.PublishedAt)
	}
	if p.ClearLease {
		run.LeaseUntil = nil
		run.Attempts = 0
		run.LastError = ""
	}
	run.UpdatedAt = now
}

// Advance builds a patch that moves the run to status and stamps the matching
// phase timestamp.
func Advance(status RunStatus, at time.Time) RunPatch {
	p := RunPatch{Status: &status, ClearLease: true}
	switch status {
	case StatusTopicSelected:
		p.TopicSelectedAt = &at
	case StatusDraftSent:
		p.DraftSentAt = &at
	case StatusApproved:
		p.ApprovedAt = &at
	case StatusPublished:
		p.PublishedAt = &at
	}
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
