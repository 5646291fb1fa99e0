// Package normalize converts the four heterogeneous record shapes returned
// by the membership service into the single Submission view model the
// review surface renders. Mapping is pure and deterministic: the same raw
// record always yields the same Submission.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/upstream"
)

// Placeholder is rendered wherever a date or field cannot be derived.
// Malformed records degrade to it instead of failing the whole list.
const Placeholder = "-"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// FormatDate renders an upstream timestamp as D/MM/YYYY: no leading zero
// on the day, two-digit month, four-digit year. Unparsable or empty input
// yields the placeholder.
func FormatDate(raw string) string {
	t, ok := parseDate(raw)
	if !ok {
		return Placeholder
	}
	return fmt.Sprintf("%d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}

// FormatTimestamp renders an audit-trail timestamp with time of day,
// D/MM/YYYY HH:MM. It is deliberately distinct from FormatDate: submission
// dates never show a time component.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return fmt.Sprintf("%d/%02d/%04d %02d:%02d", t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute())
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// statusFromBool maps the event record's boolean approval flag. An
// unapproved event is still awaiting review, not rejected: rejected events
// are deleted upstream rather than flagged.
func statusFromBool(approved bool) models.ReviewStatus {
	if approved {
		return models.StatusApproved
	}
	return models.StatusPending
}

// statusFromString maps the free-form status strings the other record
// kinds carry. Unknown values degrade to Pending so a malformed record
// still renders somewhere sensible.
func statusFromString(raw string) models.ReviewStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "accepted":
		return models.StatusApproved
	case "rejected", "declined":
		return models.StatusRejected
	default:
		return models.StatusPending
	}
}

// Submissions flattens the four per-type arrays into one ordered sequence:
// events, then trainings, then awards, then logs, each preserving the
// order the membership service returned. No cross-type sort happens here;
// if chronological ordering is wanted the upstream arrays must already
// carry it.
func Submissions(events []upstream.Event, trainings []upstream.Training, awards []upstream.Award, logs []upstream.ActivityLog) []models.Submission {
	out := make([]models.Submission, 0, len(events)+len(trainings)+len(awards)+len(logs))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	for _, t := range trainings {
		out = append(out, FromTraining(t))
	}
	for _, a := range awards {
		out = append(out, FromAward(a))
	}
	for _, l := range logs {
		out = append(out, FromLog(l))
	}
	return out
}

// FromEvent maps an event record onto the unified shape.
func FromEvent(e upstream.Event) models.Submission {
	return models.Submission{
		ID:            e.ID,
		Title:         e.Title,
		Type:          models.SubmissionEvent,
		SubmittedBy:   e.CreatedBy.Name,
		Status:        statusFromBool(e.Approved),
		DateSubmitted: FormatDate(e.CreatedAt),
		Description:   e.Description,
		Location:      e.Location,
		StartDate:     FormatDate(e.StartDate),
		EndDate:       FormatDate(e.EndDate),
		EvidenceURL:   e.Image,
	}
}

// FromTraining maps a training/certificate record onto the unified shape.
func FromTraining(t upstream.Training) models.Submission {
	return models.Submission{
		ID:            t.ID,
		Title:         t.TrainingType,
		Type:          models.SubmissionTraining,
		SubmittedBy:   t.Scout.Name,
		Status:        statusFromString(t.Status),
		DateSubmitted: FormatDate(t.CreatedAt),
		Description:   t.Description,
		TrainingDate:  FormatDate(t.TrainingDate),
		EvidenceURL:   t.CertificateURL,
	}
}

// FromAward maps an award record onto the unified shape.
func FromAward(a upstream.Award) models.Submission {
	return models.Submission{
		ID:            a.ID,
		Title:         a.AwardName,
		Type:          models.SubmissionAward,
		SubmittedBy:   a.Scout.Name,
		Status:        statusFromString(a.Status),
		DateSubmitted: FormatDate(a.CreatedAt),
		Description:   a.Description,
		AwardDate:     FormatDate(a.AwardDate),
		EvidenceURL:   a.Image,
	}
}

// FromLog maps a logbook entry onto the unified shape.
func FromLog(l upstream.ActivityLog) models.Submission {
	return models.Submission{
		ID:            l.ID,
		Title:         l.Title,
		Type:          models.SubmissionLog,
		SubmittedBy:   l.Scout.Name,
		Status:        statusFromString(l.Status),
		DateSubmitted: FormatDate(l.CreatedAt),
		Description:   l.Description,
		LogDate:       FormatDate(l.LogDate),
		EvidenceURL:   l.Image,
	}
}
