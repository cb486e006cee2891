package scanner

import (
	"s3-etl-pipeline/internal/entity"
)

// BatchIntoJobs packs time-ordered objects into job drafts.
//
// The cap is checked before an object is added: while the running total is
// below maxJobBytes the object joins the current batch, otherwise the batch is
// closed and the object starts the next one. A job can therefore exceed the
// cap by up to one object. The last batch is always emitted.
func BatchIntoJobs(objects []entity.ObjectInfo, maxJobBytes int64) []entity.JobDraft {
	var (
		drafts  []entity.JobDraft
		current entity.JobDraft
	)

	for i, obj := range objects {
		if current.TotalSizeBytes < maxJobBytes {
			current.TotalSizeBytes += obj.SizeBytes
			current.FilePaths = append(current.FilePaths, obj.Location)
			current.LatestModifiedTime = obj.ModifiedTime
		} else {
			if len(current.FilePaths) > 0 {
				drafts = append(drafts, current)
			}
			current = entity.JobDraft{
				FilePaths:          []string{obj.Location},
				TotalSizeBytes:     obj.SizeBytes,
				LatestModifiedTime: obj.ModifiedTime,
			}
		}

		if i == len(objects)-1 {
			drafts = append(drafts, current)
		}
	}
	return drafts
}
