package upstream

import "time"

// Profile carries the display fields returned by the PIN status check. They
// are forwarded to the PIN pages as query parameters and never validated.
type Profile struct {
	ProfileName string `json:"profileName"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	Timezone    string `json:"timezone"`
}

// PinStatus is the response of the check-pin-status endpoint.
type PinStatus struct {
	IsPinSet bool    `json:"isPinSet"`
	User     Profile `json:"user"`
}

// Recurrence names a repetition frequency. When Frequency is "custom" the
// effective rule is free text supplied at edit time.
type Recurrence struct {
	Frequency string `json:"frequency"`
}

// Attendee is a meeting participant.
type Attendee struct {
	Email string `json:"email"`
}

// Meeting is the optional meeting attached to a reminder.
type Meeting struct {
	Attendees []Attendee `json:"attendees"`
}

// Reminder is a scheduled task as returned by the reminders endpoint. The
// server is the source of truth; the client rebuilds its view from this
// payload on every fetch.
type Reminder struct {
	ID              string     `json:"_id"`
	TaskDescription string     `json:"taskDescription"`
	NextOccurrence  time.Time  `json:"nextOccurrence"`
	Recurrence      Recurrence `json:"recurrence"`
	RelatedMeeting  *Meeting   `json:"relatedMeetingId,omitempty"`
}

// IsMeeting reports whether the reminder has an attached meeting.
func (r Reminder) IsMeeting() bool {
	return r.RelatedMeeting != nil
}

// InviteeEmails flattens the attached meeting's attendee emails. Nil when
// the reminder has no meeting.
func (r Reminder) InviteeEmails() []string {
	if r.RelatedMeeting == nil {
		return nil
	}
	emails := make([]string, 0, len(r.RelatedMeeting.Attendees))
	for _, a := range r.RelatedMeeting.Attendees {
		emails = append(emails, a.Email)
	}
	return emails
}
