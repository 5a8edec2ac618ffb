package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	rn, err := NewRun("Build a research assistant", ModeInteractive)
	require.NoError(t, err)

	assert.NotEmpty(t, rn.ID)
	assert.Equal(t, "build_a_research_assistant", rn.Slug)
	assert.Equal(t, StageArchitect, rn.Stage)
	assert.Equal(t, StatusPending, rn.Status)
	assert.Equal(t, 0, rn.APICalls)
	assert.Nil(t, rn.Failure)
}

func TestNewRun_EmptyGoal(t *testing.T) {
	_, err := NewRun("", ModeAutonomous)
	assert.Error(t, err)
}

func TestRun_Lifecycle_Success(t *testing.T) {
	rn, err := NewRun("summarize news", ModeAutonomous)
	require.NoError(t, err)

	require.NoError(t, rn.Start())
	assert.Equal(t, StatusRunning, rn.Status)

	require.NoError(t, rn.AdvanceStage())
	assert.Equal(t, StageReviewLoop, rn.Stage)
	require.NoError(t, rn.AdvanceStage())
	assert.Equal(t, StageQALead, rn.Stage)

	require.NoError(t, rn.Succeed())
	assert.Equal(t, StatusSucceeded, rn.Status)
	assert.Equal(t, StageDone, rn.Stage)
	assert.NotNil(t, rn.CompletedAt)
	assert.True(t, rn.IsCompleted())
}

func TestRun_PauseOnlyAtArchitect(t *testing.T) {
	rn, err := NewRun("summarize news", ModeInteractive)
	require.NoError(t, err)
	require.NoError(t, rn.Start())

	// Legal at the Architect stage
	require.NoError(t, rn.Pause())
	assert.Equal(t, StatusPaused, rn.Status)

	require.NoError(t, rn.Resume())
	require.NoError(t, rn.AdvanceStage())

	// Illegal anywhere else
	err = rn.Pause()
	assert.Error(t, err)
}

func TestRun_ResumeRequiresPaused(t *testing.T) {
	rn, err := NewRun("summarize news", ModeInteractive)
	require.NoError(t, err)
	require.NoError(t, rn.Start())

	assert.Error(t, rn.Resume())
}

func TestRun_ReturnToArchitect(t *testing.T) {
	rn, err := NewRun("summarize news", ModeInteractive)
	require.NoError(t, err)
	require.NoError(t, rn.Start())

	require.NoError(t, rn.ReturnToArchitect())
	assert.Equal(t, StageArchitect, rn.Stage)
	assert.Equal(t, 1, rn.RearchitectAttempts)

	require.NoError(t, rn.ReturnToArchitect())
	assert.Equal(t, 2, rn.RearchitectAttempts)
}

func TestRun_Fail(t *testing.T) {
	rn, err := NewRun("summarize news", ModeAutonomous)
	require.NoError(t, err)
	require.NoError(t, rn.Start())
	require.NoError(t, rn.AdvanceStage())

	require.NoError(t, rn.Fail(FailureReviewExhausted, "no approval in 3 iterations"))
	assert.Equal(t, StatusFailed, rn.Status)
	require.NotNil(t, rn.Failure)
	assert.Equal(t, FailureReviewExhausted, rn.Failure.Kind)
	assert.Equal(t, StageReviewLoop, rn.Failure.Stage)
	assert.NotNil(t, rn.CompletedAt)
}

func TestRun_AbortFromPaused(t *testing.T) {
	rn, err := NewRun("summarize news", ModeInteractive)
	require.NoError(t, err)
	require.NoError(t, rn.Start())
	require.NoError(t, rn.Pause())

	require.NoError(t, rn.RequestAbort())
	assert.True(t, rn.AbortRequested)

	require.NoError(t, rn.Abort())
	assert.Equal(t, StatusAborted, rn.Status)
}

func TestRun_RequestAbortOnTerminal(t *testing.T) {
	rn, err := NewRun("summarize news", ModeAutonomous)
	require.NoError(t, err)
	require.NoError(t, rn.Start())
	require.NoError(t, rn.AdvanceStage())
	require.NoError(t, rn.AdvanceStage())
	require.NoError(t, rn.Succeed())

	assert.Error(t, rn.RequestAbort())
}

func TestRun_ConsumeAPICall(t *testing.T) {
	rn, err := NewRun("summarize news", ModeAutonomous)
	require.NoError(t, err)

	assert.True(t, rn.ConsumeAPICall(2))
	assert.True(t, rn.ConsumeAPICall(2))
	assert.False(t, rn.ConsumeAPICall(2))
	assert.Equal(t, 2, rn.APICalls)

	// Zero limit means unlimited
	assert.True(t, rn.ConsumeAPICall(0))
	assert.Equal(t, 3, rn.APICalls)
}

func TestFailureKind_Fatal(t *testing.T) {
	assert.True(t, FailureReviewExhausted.Fatal())
	assert.True(t, FailureQuotaExceeded.Fatal())
	assert.False(t, FailureHumanRejected.Fatal())
}
