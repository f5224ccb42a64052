package calls

import (
	"strings"

	"github.com/fixline-ai/fixline/internal/backend"
)

var statusLabels = map[string]string{
	"AI_RESOLVED":   "AI Resolved",
	"WARM_TRANSFER": "Warm Transfer",
	"DROPPED":       "Dropped",
	"APPOINTMENT":   "Appointment",
}

// Call is a call log entry shaped for display.
type Call struct {
	ID          int64
	Phone       string
	Date        string
	Time        string
	Duration    string
	CallType    string
	Status      string
	Resolved    bool
	Outcome     string
	Issue       string
	AudioURL    string
	Transcripts []Line
}

// Line is one transcript utterance.
type Line struct {
	Speaker string
	FromAI  bool
	Message string
	At      string
}

// Adapt converts a backend call log entry.
func Adapt(c backend.CallLog) Call {
	out := Call{
		ID:       c.ID,
		Phone:    orDash(c.PhoneNumber),
		Date:     "-",
		Time:     "-",
		Duration: orDash(c.Duration.String()),
		CallType: c.CallType,
		Status:   orDash(c.CallType),
		Outcome:  "-",
		Issue:    c.IssueName,
		AudioURL: c.AudioURL,
	}
	if label, ok := statusLabels[c.CallType]; ok {
		out.Status = label
	}
	out.Resolved = out.Status == "AI Resolved"
	if c.StartedAt != nil && !c.StartedAt.IsZero() {
		out.Date = c.StartedAt.Format("Jan 2, 2006")
		out.Time = c.StartedAt.Format("03:04 PM")
	}
	if c.Outcome != "" {
		out.Outcome = strings.ReplaceAll(c.Outcome, "_", " ")
	}
	if out.Issue == "" {
		out.Issue = "Unknown"
	}
	for _, t := range c.Transcripts {
		ai := strings.EqualFold(t.Speaker, "AI")
		speaker := "Customer:"
		if ai {
			speaker = "AI Assistant:"
		}
		out.Transcripts = append(out.Transcripts, Line{Speaker: speaker, FromAI: ai, Message: t.Message, At: t.Timestamp})
	}
	return out
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
