package model

import (
	"sort"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		axis     Axis
		from, to string
		want     bool
	}{
		{AxisStatus, StatusDraft, StatusPendingApproval, true},
		{AxisStatus, StatusDraft, StatusApproved, false},
		{AxisStatus, StatusRejected, StatusDraft, true},
		{AxisStatus, StatusLaunchApproved, StatusDraft, false},
		{AxisPipeline, PipelineAssetsGenerated, PipelineIntermediaryGenerated, true},
		{AxisPipeline, PipelineNotStarted, PipelineAssetsGenerated, false},
		{AxisList, ListUploaded, ListUploaded, true},
		{AxisList, ListPending, ListApproved, false},
		{AxisLaunch, LaunchInProgress, LaunchLive, true},
		{AxisLaunch, LaunchLive, LaunchInProgress, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.axis, tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s, %s) = %v, want %v", tt.axis, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSourcesFor(t *testing.T) {
	got := SourcesFor(AxisPipeline, PipelineIntermediaryGenerated)
	sort.Strings(got)
	want := []string{PipelineAssetsGenerated, PipelineIntermediaryGenerated, PipelineNotStarted}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if len(SourcesFor(AxisLaunch, LaunchNotStarted)) != 0 {
		t.Error("nothing moves back to not_started")
	}
}

func TestLaunchBlockers(t *testing.T) {
	e := &Execution{LaunchStatus: LaunchNotStarted, CopyStatus: CopyApproved, ListStatus: ListUploaded}
	unmet := LaunchBlockers(e)
	if len(unmet) != 1 || unmet[0] != "list_status must be approved (is uploaded)" {
		t.Errorf("unmet = %v", unmet)
	}
	e.ListStatus = ListApproved
	if unmet := LaunchBlockers(e); len(unmet) != 0 {
		t.Errorf("gate should be open, got %v", unmet)
	}
}

func TestIntermediaryMissing(t *testing.T) {
	var io *IntermediaryOutputs
	if len(io.Missing()) != 2 {
		t.Error("nil outputs miss everything")
	}
	io = &IntermediaryOutputs{Hook: "  ", AttractionOffer: AttractionOffer{Headline: "Kit"}}
	if m := io.Missing(); len(m) != 1 || m[0] != "hook" {
		t.Errorf("missing = %v", m)
	}
}
