package model

import "strings"

// Execution status (review progress).
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusLaunchApproved  = "launch_approved"
)

// Pipeline progress.
const (
	PipelineNotStarted            = "not_started"
	PipelineIntermediaryGenerated = "intermediary_generated"
	PipelineAssetsGenerated       = "assets_generated"
)

// Copy review.
const (
	CopyPending  = "pending"
	CopyApproved = "approved"
	CopyRejected = "rejected"
)

// Audience list review.
const (
	ListPending  = "pending"
	ListUploaded = "uploaded"
	ListApproved = "approved"
)

// Launch.
const (
	LaunchNotStarted = "not_started"
	LaunchInProgress = "in_progress"
	LaunchLive       = "live"
)

// Highlighting outcome.
const (
	HighlightingNotRequested = "not_requested"
	HighlightingCompleted    = "completed"
	HighlightingFailed       = "failed"
)

type Axis string

const (
	AxisStatus   Axis = "status"
	AxisPipeline Axis = "pipeline_status"
	AxisCopy     Axis = "copy_status"
	AxisList     Axis = "list_status"
	AxisLaunch   Axis = "launch_status"
)

// transitions lists, per axis, the states reachable from each state. A
// missing entry means the state is terminal on that axis.
var transitions = map[Axis]map[string][]string{
	AxisStatus: {
		StatusDraft:           {StatusPendingApproval},
		StatusPendingApproval: {StatusApproved, StatusRejected},
		StatusApproved:        {StatusLaunchApproved},
		StatusRejected:        {StatusDraft},
	},
	AxisPipeline: {
		PipelineNotStarted:            {PipelineIntermediaryGenerated},
		PipelineIntermediaryGenerated: {PipelineIntermediaryGenerated, PipelineAssetsGenerated},
		PipelineAssetsGenerated:       {PipelineIntermediaryGenerated, PipelineAssetsGenerated},
	},
	AxisCopy: {
		CopyPending:  {CopyApproved, CopyRejected},
		CopyRejected: {CopyPending},
	},
	AxisList: {
		ListPending:  {ListUploaded},
		ListUploaded: {ListUploaded, ListApproved},
	},
	AxisLaunch: {
		LaunchNotStarted: {LaunchInProgress},
		LaunchInProgress: {LaunchLive},
	},
}

// CanTransition reports whether axis may move from one state to another.
func CanTransition(axis Axis, from, to string) bool {
	for _, next := range transitions[axis][from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every state on axis that may move to the given state.
// Repositories use it to build conditional writes.
func SourcesFor(axis Axis, to string) []string {
	var out []string
	for from, nexts := range transitions[axis] {
		for _, n := range nexts {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// LaunchBlockers returns the unmet preconditions for starting a launch.
// Empty means the gate is open.
func LaunchBlockers(e *Execution) []string {
	var unmet []string
	if e.LaunchStatus != LaunchNotStarted {
		unmet = append(unmet, "launch_status must be not_started (is "+e.LaunchStatus+")")
	}
	if e.CopyStatus != CopyApproved {
		unmet = append(unmet, "copy_status must be approved (is "+e.CopyStatus+")")
	}
	if e.ListStatus != ListApproved {
		unmet = append(unmet, "list_status must be approved (is "+e.ListStatus+")")
	}
	return unmet
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
