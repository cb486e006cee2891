package entity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"s3-etl-pipeline/internal/entity"
)

func TestPaths_RoundTripKeepsOrder(t *testing.T) {
	paths := []string{"s3://b/2021/10/09/00/c.csv", "s3://b/2021/10/09/00/a.csv"}

	joined := entity.JoinPaths(paths)
	require.Equal(t, "s3://b/2021/10/09/00/c.csv,s3://b/2021/10/09/00/a.csv", joined)
	require.Equal(t, paths, entity.SplitPaths(joined))
	require.Nil(t, entity.SplitPaths(""))
}

func TestTruncateMessage_RespectsRuneBoundary(t *testing.T) {
	require.Equal(t, "short", entity.TruncateMessage("short", 10))

	long := strings.Repeat("a", 5000)
	require.Len(t, entity.TruncateMessage(long, entity.MaxFailureMessageBytes), entity.MaxFailureMessageBytes)

	// "é" is two bytes; cutting at 3 would split the second one.
	got := entity.TruncateMessage("éé", 3)
	require.Equal(t, "é", got)
}

func TestJobStatus_Terminal(t *testing.T) {
	require.True(t, entity.StatusLoaded.Terminal())
	require.True(t, entity.StatusFailed.Terminal())
	require.False(t, entity.StatusPending.Terminal())
	require.False(t, entity.StatusProcessing.Terminal())
	require.False(t, entity.JobStatus("done").Valid())
}
