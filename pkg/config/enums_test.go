package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseStatus(t *testing.T) {
	assert.True(t, ReleaseStatusPendingPreview.IsValid())
	assert.False(t, ReleaseStatus("shipped").IsValid())

	assert.True(t, ReleaseStatusUploaded.IsTerminal())
	assert.True(t, ReleaseStatusRejected.IsTerminal())
	assert.True(t, ReleaseStatusFailed.IsTerminal())
	assert.False(t, ReleaseStatusPendingApproval.IsTerminal())
}

func TestRunState(t *testing.T) {
	assert.True(t, RunStateAwaitingApproval.IsValid())
	assert.False(t, RunState("done").IsValid())

	assert.True(t, RunStateApproved.IsDecision())
	assert.True(t, RunStateRejected.IsDecision())
	assert.False(t, RunStateTimedOut.IsDecision(), "timeout is not a human decision")

	for _, s := range []RunState{RunStateApproved, RunStateRejected, RunStateTimedOut, RunStateFailed} {
		assert.True(t, s.IsTerminal(), string(s))
	}
	for _, s := range []RunState{RunStatePending, RunStateGenerating, RunStateAwaitingApproval} {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestProviderType(t *testing.T) {
	assert.True(t, ProviderTypeAnthropic.IsValid())
	assert.False(t, ProviderType("oracle").IsValid())
}
