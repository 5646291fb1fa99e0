package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/upstream"
)

func TestFormatDate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2024-03-05T10:30:00Z", "5/03/2024"},
		{"2024-11-20T00:00:00.000Z", "20/11/2024"},
		{"2024-01-02", "2/01/2024"},
		{"", "-"},
		{"not-a-date", "-"},
		{"99-99-9999", "-"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDate(tc.raw), "input %q", tc.raw)
	}
}

func TestFormatTimestampIncludesTimeOfDay(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	assert.Equal(t, "5/03/2024 14:07", FormatTimestamp(ts))
	assert.Equal(t, "-", FormatTimestamp(time.Time{}))
}

func TestEventStatusFromBoolean(t *testing.T) {
	approved := FromEvent(upstream.Event{ID: "E1", Approved: true})
	assert.Equal(t, models.StatusApproved, approved.Status)

	pending := FromEvent(upstream.Event{ID: "E2", Approved: false})
	assert.Equal(t, models.StatusPending, pending.Status)
}

func TestStatusStringNormalisation(t *testing.T) {
	cases := map[string]models.ReviewStatus{
		"pending":  models.StatusPending,
		"Approved": models.StatusApproved,
		"REJECTED": models.StatusRejected,
		"accepted": models.StatusApproved,
		"":         models.StatusPending,
		"garbage":  models.StatusPending,
	}
	for raw, want := range cases {
		sub := FromTraining(upstream.Training{ID: "T1", Status: raw})
		assert.Equal(t, want, sub.Status, "status %q", raw)
	}
}

func TestSubmissionsConcatenationOrder(t *testing.T) {
	subs := Submissions(
		[]upstream.Event{{ID: "E1"}, {ID: "E2"}},
		[]upstream.Training{{ID: "T1"}},
		[]upstream.Award{{ID: "A1"}},
		[]upstream.ActivityLog{{ID: "L1"}},
	)

	require.Len(t, subs, 5)
	assert.Equal(t, []string{"E1", "E2", "T1", "A1", "L1"}, []string{
		subs[0].ID, subs[1].ID, subs[2].ID, subs[3].ID, subs[4].ID,
	})
	assert.Equal(t, models.SubmissionEvent, subs[0].Type)
	assert.Equal(t, models.SubmissionTraining, subs[2].Type)
	assert.Equal(t, models.SubmissionAward, subs[3].Type)
	assert.Equal(t, models.SubmissionLog, subs[4].Type)
}

func TestTypeSpecificFields(t *testing.T) {
	event := FromEvent(upstream.Event{
		ID:        "E1",
		Title:     "State Jamboree",
		Location:  "Ridge Camp",
		StartDate: "2024-06-01",
		EndDate:   "2024-06-03",
		Image:     "https://cdn.example/evidence.jpg",
		CreatedBy: upstream.Creator{Name: "Priya"},
		CreatedAt: "2024-05-20T08:00:00Z",
	})
	assert.Equal(t, "Ridge Camp", event.Location)
	assert.Equal(t, "1/06/2024", event.StartDate)
	assert.Equal(t, "3/06/2024", event.EndDate)
	assert.Equal(t, "Priya", event.SubmittedBy)
	assert.Equal(t, "20/05/2024", event.DateSubmitted)
	assert.Empty(t, event.TrainingDate)
	assert.Empty(t, event.AwardDate)

	training := FromTraining(upstream.Training{
		ID:             "T1",
		TrainingType:   "First Aid",
		TrainingDate:   "2024-04-10",
		CertificateURL: "https://cdn.example/cert.pdf",
		Status:         "pending",
	})
	assert.Equal(t, "First Aid", training.Title)
	assert.Equal(t, "10/04/2024", training.TrainingDate)
	assert.Equal(t, "https://cdn.example/cert.pdf", training.EvidenceURL)
	assert.Empty(t, training.Location)
}

func TestMalformedRecordDegradesGracefully(t *testing.T) {
	sub := FromLog(upstream.ActivityLog{ID: "L1"})
	assert.Equal(t, "L1", sub.ID)
	assert.Equal(t, models.SubmissionLog, sub.Type)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "-", sub.DateSubmitted)
	assert.Equal(t, "-", sub.LogDate)
	assert.Empty(t, sub.SubmittedBy)
}

func TestNormalizationIsIdempotent(t *testing.T) {
	raw := upstream.Event{ID: "E1", Title: "Hike", Approved: false, CreatedAt: "2024-02-01T00:00:00Z"}
	first := FromEvent(raw)
	second := FromEvent(raw)
	assert.Equal(t, first, second)
}
