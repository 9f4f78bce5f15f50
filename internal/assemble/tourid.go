package assemble

import (
	"fmt"

	"toursync/internal/model"
)

// DedupKey derives the content-based tour id: the start time components
// followed by a distinguishing part. Tours with distance data use the
// truncated distance plus the recording duration; distanceless tours use
// the per-format suffix plus the recording duration so equal start times
// from different formats do not collide.
func DedupKey(tour *model.TourRecord, uniqueSuffix string) string {
	prefix := fmt.Sprintf("%d%d%d%d%d%d",
		tour.StartYear, tour.StartMonth, tour.StartDay,
		tour.StartHour, tour.StartMinute, tour.StartSecond)

	if tour.TourDistance > 0 {
		return fmt.Sprintf("%s%d%d", prefix, int64(tour.TourDistance), tour.RecordingDuration)
	}
	return fmt.Sprintf("%s%s%d", prefix, uniqueSuffix, tour.RecordingDuration)
}
