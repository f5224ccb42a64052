package settings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// Tones the voice agent can speak in.
var Tones = []string{"friendly", "professional", "sales"}

// Weekdays in backend order. Day 0 is Monday.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// RetryOptions are the attempts allowed before a warm transfer.
var RetryOptions = []int{1, 2, 3, 4, 5}

// Closed is the time value of a day without opening hours.
const Closed = "---"

// DefaultRetryAttempts applies when the store has no value yet.
const DefaultRetryAttempts = 3

// DayHours is one weekday row of the business hours grid. Times are 24 hour
// "15:04" strings or Closed.
type DayHours struct {
	Day   int
	Name  string
	Open  string
	Close string
}

// IsOpen reports whether the day has opening hours.
func (d DayHours) IsOpen() bool { return d.Open != Closed }

// AIForm is the AI behavior form.
type AIForm struct {
	Tone          string `validate:"oneof=friendly professional sales"`
	Opening       string
	ClosedMessage string
	Hours         []DayHours
	RetryAttempts int `validate:"min=1,max=5"`
	Fallback      string
	Keywords      []string
}

var aiMessages = map[string]string{
	"Tone.oneof":        "Choose a tone",
	"RetryAttempts.min": "Retry attempts must be between 1 and 5",
	"RetryAttempts.max": "Retry attempts must be between 1 and 5",
}

// DefaultAIForm is the form of a store without AI behavior.
func DefaultAIForm() AIForm {
	hours := make([]DayHours, len(Weekdays))
	for i, name := range Weekdays {
		hours[i] = DayHours{Day: i, Name: name, Open: Closed, Close: Closed}
	}
	return AIForm{Tone: Tones[0], Hours: hours, RetryAttempts: DefaultRetryAttempts}
}

// FromBehavior fills the form from the backend configuration. Days missing
// from cfg stay closed.
func FromBehavior(cfg backend.AIBehavior) AIForm {
	f := DefaultAIForm()
	if cfg.Tone != "" {
		f.Tone = cfg.Tone
	}
	f.Opening = cfg.Greetings.OpeningHoursGreeting
	f.ClosedMessage = cfg.Greetings.ClosedHoursMessage
	f.Fallback = cfg.FallbackResponse
	if cfg.RetryAttemptsBeforeTransfer > 0 {
		f.RetryAttempts = cfg.RetryAttemptsBeforeTransfer
	}
	for _, bh := range cfg.BusinessHours {
		if bh.Day < 0 || bh.Day >= len(f.Hours) || !bh.IsOpen {
			continue
		}
		f.Hours[bh.Day].Open = clockOrClosed(bh.OpenTime)
		f.Hours[bh.Day].Close = clockOrClosed(bh.CloseTime)
	}
	raw := make([]string, 0, len(cfg.AutoTransferKeywords))
	for _, k := range cfg.AutoTransferKeywords {
		raw = append(raw, k.Keyword)
	}
	f.Keywords = NormalizeKeywords(raw)
	return f
}

// Behavior converts the form into the backend payload.
func (f AIForm) Behavior() backend.AIBehavior {
	hours := make([]backend.BusinessHour, 0, len(f.Hours))
	for _, d := range f.Hours {
		hours = append(hours, backend.BusinessHour{
			Day:       d.Day,
			IsOpen:    d.IsOpen(),
			OpenTime:  timeOrNil(d.Open),
			CloseTime: timeOrNil(d.Close),
		})
	}
	keywords := NormalizeKeywords(f.Keywords)
	transfer := make([]backend.TransferKeyword, 0, len(keywords))
	for _, k := range keywords {
		transfer = append(transfer, backend.TransferKeyword{Keyword: k})
	}
	return backend.AIBehavior{
		Tone:                        f.Tone,
		RetryAttemptsBeforeTransfer: f.RetryAttempts,
		FallbackResponse:            f.Fallback,
		Greetings: backend.Greetings{
			OpeningHoursGreeting: f.Opening,
			ClosedHoursMessage:   f.ClosedMessage,
		},
		BusinessHours:        hours,
		AutoTransferKeywords: transfer,
	}
}

// KeywordText joins the keywords for the textarea.
func (f AIForm) KeywordText() string { return strings.Join(f.Keywords, ", ") }

// NormalizeKeywords splits entries on commas and new lines, then trims,
// lower-cases and deduplicates them keeping first occurrences.
func NormalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, kw := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }) {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// ParseClock normalizes a time field. Blank and Closed mean closed.
func ParseClock(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == Closed {
		return Closed, nil
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "03:04 PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(raw)); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("settings: bad time %q", raw)
}

func clockOrClosed(v *string) string {
	if v == nil {
		return Closed
	}
	clock, err := ParseClock(*v)
	if err != nil {
		return Closed
	}
	return clock
}

func timeOrNil(v string) *string {
	if v == Closed {
		return nil
	}
	return &v
}

func parseAIForm(r *http.Request) (AIForm, formErrors) {
	f := DefaultAIForm()
	errs := formErrors{}
	f.Tone = strings.ToLower(strings.TrimSpace(r.PostFormValue("tone")))
	f.Opening = strings.TrimSpace(r.PostFormValue("opening_greeting"))
	f.ClosedMessage = strings.TrimSpace(r.PostFormValue("closed_message"))
	f.Fallback = strings.TrimSpace(r.PostFormValue("fallback_response"))
	f.RetryAttempts, _ = strconv.Atoi(r.PostFormValue("retry_attempts"))
	f.Keywords = NormalizeKeywords(r.PostForm["keywords"])
	for i := range f.Hours {
		day := &f.Hours[i]
		open, err := ParseClock(r.PostFormValue(fmt.Sprintf("open_%d", i)))
		if err != nil {
			errs["Hours"] = "Enter times as HH:MM for " + day.Name
			continue
		}
		closing, err := ParseClock(r.PostFormValue(fmt.Sprintf("close_%d", i)))
		if err != nil {
			errs["Hours"] = "Enter times as HH:MM for " + day.Name
			continue
		}
		if (open == Closed) != (closing == Closed) {
			errs["Hours"] = "Set both opening and closing times for " + day.Name
		}
		day.Open, day.Close = open, closing
	}
	return f, errs
}

type aiState struct {
	Form   AIForm
	Exists bool
}

type aiPageData struct {
	Form         AIForm
	Exists       bool
	Loaded       bool
	Errors       formErrors
	Tones        []string
	RetryOptions []int
}

func (h *Handler) showAI(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	p := state.FromContext(r.Context())
	snap, err := screen.Open(r.Context(), "settings.ai", screen.Key{StoreID: storeID}, func(ctx context.Context, key screen.Key) (aiState, error) {
		cfg, err := h.connect(p).AIBehavior(ctx, key.StoreID)
		if errors.Is(err, backend.ErrNotFound) {
			return aiState{Form: DefaultAIForm()}, nil
		}
		if err != nil {
			return aiState{}, shared.NewSafeError("Failed to load AI settings", err)
		}
		return aiState{Form: FromBehavior(cfg), Exists: true}, nil
	})
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}
	data := aiPageData{Form: snap.Data.Form, Exists: snap.Data.Exists, Loaded: snap.HasData, Tones: Tones, RetryOptions: RetryOptions}
	if !snap.HasData {
		data.Form = DefaultAIForm()
	}
	h.responder.Render(w, r, "pages/settings_ai.html", "AI Settings", data, http.StatusOK)
}

func (h *Handler) saveAI(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form, errs := parseAIForm(r)
	for field, msg := range h.check(form, aiMessages) {
		errs[field] = msg
	}
	create := r.PostFormValue("mode") == "create"
	if len(errs) > 0 {
		h.responder.Render(w, r, "pages/settings_ai.html", "AI Settings", aiPageData{
			Form: form, Exists: !create, Loaded: true, Errors: errs, Tones: Tones, RetryOptions: RetryOptions,
		}, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	b := h.connect(state.FromContext(ctx))
	cfg := form.Behavior()
	var err error
	if !create {
		err = b.UpdateAIBehavior(ctx, storeID, cfg)
		create = errors.Is(err, backend.ErrNotFound)
	}
	if create {
		err = b.CreateAIBehavior(ctx, storeID, cfg)
	}
	if err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to save AI settings", err), "/settings/ai")
		return
	}
	msg := "AI settings saved successfully"
	if create {
		msg = "AI settings created successfully"
	}
	h.responder.Redirect(w, r, "/settings/ai", shared.FlashSuccess, msg)
}
