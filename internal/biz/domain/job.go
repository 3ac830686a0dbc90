package domain

import (
	"text/template"
	"time"
)

// Action is the outbound reaction performed for each new event
type Action string

const (
	ActionReply Action = "reply"
	ActionPost  Action = "post"
	ActionQuote Action = "quote"
)

// ReactionSpec describes how a job reacts to an event
type ReactionSpec struct {
	Stream string
	Action Action
	Target Platform
	Prompt *template.Template
	Like   bool // Like the event after a successful action
}

// JobSpec is a periodic job bound to exactly one stream
type JobSpec struct {
	Name     string
	Interval time.Duration
	Stream   Stream
	Reaction ReactionSpec
}

// PromptData is what prompt templates are rendered with
type PromptData struct {
	ID     string
	Text   string
	Author string
	URL    string
	Stream string
}

// ReactionReport counts the outcome of one reaction batch
type ReactionReport struct {
	Reacted int // Generated and acted on
	Skipped int // Generation failed or produced nothing
	Failed  int // Outbound action failed
}

// FiringReport summarises one firing of a stream job
type FiringReport struct {
	Stream          string
	Fetched         int
	New             int
	Reaction        ReactionReport
	WatermarkBefore string
	WatermarkAfter  string
	Advanced        bool
}
