package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/waply/waply-web/internal/upstream"
)

const (
	formDateLayout = "2006-01-02"
	formTimeLayout = "15:04"
)

// RecurrenceCustom marks a recurrence whose effective rule is the free-text
// CustomRecurrence field.
const RecurrenceCustom = "custom"

// FormData is the editable copy of one reminder's fields, opened when a
// reminder is selected. Invitees is the comma-joined attendee email list and
// doubles as the meeting marker.
type FormData struct {
	TaskDescription  string `json:"taskDescription"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Recurrence       string `json:"recurrence"`
	CustomRecurrence string `json:"customRecurrence"`
	Invitees         string `json:"invitees"`
}

// NewFormData seeds an edit buffer from a reminder. The recurrence comes
// from the reminder's frequency; invitee emails are flattened from the
// attached meeting, if any.
func NewFormData(r upstream.Reminder, loc *time.Location) FormData {
	next := r.NextOccurrence.In(loc)
	return FormData{
		TaskDescription: r.TaskDescription,
		Date:            next.Format(formDateLayout),
		Time:            next.Format(formTimeLayout),
		Recurrence:      r.Recurrence.Frequency,
		Invitees:        strings.Join(r.InviteeEmails(), ", "),
	}
}

// IsMeeting derives the meeting flag from the presence of invitees.
func (f FormData) IsMeeting() bool {
	return f.Invitees != ""
}

// Snapshot serializes the form for storage as the edit baseline.
func (f FormData) Snapshot() (json.RawMessage, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	return payload, nil
}

// IsEdited reports whether the form differs structurally from the snapshot
// taken when the edit opened. Reverting every field to its original value
// makes this false again.
func (f FormData) IsEdited(snapshot json.RawMessage) bool {
	current, err := json.Marshal(f)
	if err != nil {
		return false
	}
	var baseline FormData
	if err := json.Unmarshal(snapshot, &baseline); err != nil {
		return true
	}
	normalized, err := json.Marshal(baseline)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, normalized)
}

// EffectiveRecurrence resolves the rule sent to the server: the custom text
// when the frequency is custom, the frequency itself otherwise.
func (f FormData) EffectiveRecurrence() string {
	if f.Recurrence == RecurrenceCustom {
		return f.CustomRecurrence
	}
	return f.Recurrence
}

// UserInput builds the instruction string the update endpoint expects,
// appending invitees only for meetings.
func (f FormData) UserInput() string {
	input := fmt.Sprintf("reminder/meeting task desc: %s, start date: %s, start time: %s, recurrence rule: %s",
		f.TaskDescription, f.Date, f.Time, f.EffectiveRecurrence())
	if f.IsMeeting() {
		input += ", invitees: " + f.Invitees
	}
	return input
}

// NextOccurrence parses the form's date and time in the given location.
func (f FormData) NextOccurrence(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(formDateLayout+" "+formTimeLayout, f.Date+" "+f.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse occurrence: %w", err)
	}
	return t, nil
}

// ApplyUpdate merges the edited fields of one reminder into the cached list,
// the optimistic patch performed after a successful update instead of a
// re-fetch. Reminders other than id are untouched.
func ApplyUpdate(reminders []upstream.Reminder, id string, form FormData, loc *time.Location) []upstream.Reminder {
	patched := make([]upstream.Reminder, len(reminders))
	copy(patched, reminders)
	for i := range patched {
		if patched[i].ID != id {
			continue
		}
		patched[i].TaskDescription = form.TaskDescription
		patched[i].Recurrence.Frequency = form.Recurrence
		if next, err := form.NextOccurrence(loc); err == nil {
			patched[i].NextOccurrence = next
		}
	}
	return patched
}

// Remove drops the reminder with the given id from the cached list.
func Remove(reminders []upstream.Reminder, id string) []upstream.Reminder {
	out := make([]upstream.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.ID == id {
			continue
		}
		out = append(out, r)
	}
	return out
}
