package scanner_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/scanner"
)

var t0 = time.Date(2021, 10, 9, 0, 0, 0, 0, time.UTC)

func objectsOfSizes(sizes ...int64) []entity.ObjectInfo {
	objs := make([]entity.ObjectInfo, len(sizes))
	for i, s := range sizes {
		objs[i] = entity.ObjectInfo{
			Location:     fmt.Sprintf("s3://bucket/2021/10/09/00/f%d.csv", i),
			ModifiedTime: t0.Add(time.Duration(i) * time.Minute),
			SizeBytes:    s,
		}
	}
	return objs
}

func sizesOf(drafts []entity.JobDraft) []int64 {
	out := make([]int64, len(drafts))
	for i, d := range drafts {
		out[i] = d.TotalSizeBytes
	}
	return out
}

func TestBatchIntoJobs_Empty(t *testing.T) {
	require.Empty(t, scanner.BatchIntoJobs(nil, 1000))
}

// The cap is checked before adding, so 800 < 1000 still admits the third
// object and a single 1200 byte job comes out.
func TestBatchIntoJobs_CapCheckedBeforeAdding(t *testing.T) {
	drafts := scanner.BatchIntoJobs(objectsOfSizes(400, 400, 400), 1000)

	require.Equal(t, []int64{1200}, sizesOf(drafts))
	require.Len(t, drafts[0].FilePaths, 3)
	require.Equal(t, t0.Add(2*time.Minute), drafts[0].LatestModifiedTime)
}

func TestBatchIntoJobs_ClosesOnceCapReached(t *testing.T) {
	drafts := scanner.BatchIntoJobs(objectsOfSizes(600, 500, 100, 1000, 10), 1000)

	// 600 -> 1100 (closes), 100 -> 1100 (closes), 10 is the final partial batch.
	require.Equal(t, []int64{1100, 1100, 10}, sizesOf(drafts))
	require.Equal(t, []string{
		"s3://bucket/2021/10/09/00/f0.csv",
		"s3://bucket/2021/10/09/00/f1.csv",
	}, drafts[0].FilePaths)
	require.Equal(t, t0.Add(4*time.Minute), drafts[2].LatestModifiedTime)
}

func TestBatchIntoJobs_SingleObjectLargerThanCap(t *testing.T) {
	drafts := scanner.BatchIntoJobs(objectsOfSizes(5000, 1), 1000)
	require.Equal(t, []int64{5000, 1}, sizesOf(drafts))
}

func TestBatchIntoJobs_NonPositiveCapNeverEmitsEmptyJob(t *testing.T) {
	drafts := scanner.BatchIntoJobs(objectsOfSizes(1, 2, 3), 0)
	require.Equal(t, []int64{1, 2, 3}, sizesOf(drafts))
	for _, d := range drafts {
		require.NotEmpty(t, d.FilePaths)
	}
}

// Every job is a contiguous run of the input; nothing is dropped or repeated
// and the latest time is the time of the job's last object.
func TestBatchIntoJobs_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(40) + 1
		sizes := make([]int64, n)
		for i := range sizes {
			sizes[i] = rng.Int63n(500)
		}
		objs := objectsOfSizes(sizes...)
		capBytes := rng.Int63n(2000) + 1

		drafts := scanner.BatchIntoJobs(objs, capBytes)

		idx := 0
		for _, d := range drafts {
			require.NotEmpty(t, d.FilePaths)
			var sum int64
			for _, p := range d.FilePaths {
				require.Equal(t, objs[idx].Location, p)
				sum += objs[idx].SizeBytes
				idx++
			}
			require.Equal(t, sum, d.TotalSizeBytes)
			require.Equal(t, objs[idx-1].ModifiedTime, d.LatestModifiedTime)
			require.Less(t, sum-objs[idx-1].SizeBytes, capBytes, "job only grows while under the cap")
		}
		require.Equal(t, n, idx)
	}
}
