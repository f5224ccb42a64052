package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fixline-ai/fixline/internal/state"
)

// Text decodes JSON strings and numbers alike. The backend serializes
// decimals as strings and durations as either.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// String returns the raw text.
func (t Text) String() string { return string(t) }

// RefID decodes a foreign key serialized as a number, a numeric string or a
// nested object with an id.
type RefID int64

// UnmarshalJSON implements json.Unmarshaler.
func (r *RefID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = 0
		return nil
	case data[0] == '{':
		var obj struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*r = RefID(obj.ID)
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*r = 0
			return nil
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*r = RefID(id)
		return nil
	default:
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = RefID(id)
		return nil
	}
}

// Int64 returns the id.
func (r RefID) Int64() int64 { return int64(r) }

// wireUser is the user object of login, profile and user listing responses.
type wireUser struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Store         *RefID `json:"store"`
	ProfileImage  string `json:"profile_image"`
	StateLocation string `json:"state_location"`
	LastActive    string `json:"last_active"`
}

func (u wireUser) toState() state.User {
	out := state.User{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Role:          u.Role,
		ProfileImage:  u.ProfileImage,
		StateLocation: u.StateLocation,
	}
	if u.Store != nil && *u.Store != 0 {
		id := u.Store.Int64()
		out.StoreID = &id
	}
	return out
}

// CallLog is one entry of the call log listing.
type CallLog struct {
	ID          int64        `json:"id"`
	PhoneNumber string       `json:"phone_number"`
	StartedAt   *time.Time   `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at"`
	CreatedAt   *time.Time   `json:"created_at"`
	Duration    Text         `json:"duration"`
	CallType    string       `json:"call_type"`
	Outcome     string       `json:"outcome"`
	Issue       RefID        `json:"issue"`
	IssueName   string       `json:"issue_name"`
	AudioURL    string       `json:"audio_url"`
	Transcripts []Transcript `json:"transcripts"`
}

// Transcript is one utterance of a call.
type Transcript struct {
	Speaker   string `json:"speaker"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// CallLogFilter narrows the call log listing.
type CallLogFilter struct {
	Search   string
	CallType string
	Issue    string
	Date     string
}

// TrendPoint is one bucket of the call trend series.
type TrendPoint struct {
	Label string `json:"label"`
	Calls int64  `json:"calls"`
}

// CallTrends is the call-trends response.
type CallTrends struct {
	Trend      []TrendPoint `json:"trend"`
	TotalCalls int64        `json:"total_calls"`
}

// StoreSummary holds the dashboard counters.
type StoreSummary struct {
	TotalCalls         int64 `json:"total_calls"`
	AIHandled          int64 `json:"ai_handled"`
	WarmTransfers      int64 `json:"warm_transfers"`
	AppointmentsBooked int64 `json:"appointments_booked"`
	MissedCalls        int64 `json:"missed_calls"`
	AvgCallDuration    Text  `json:"avg_call_duration"`
}

// Appointment is one booked appointment.
type Appointment struct {
	ID            int64      `json:"id"`
	CustomerPhone string     `json:"customer_phone"`
	ServiceName   string     `json:"service_name"`
	Status        string     `json:"status"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
}

// Category is a repair catalog category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Brand belongs to a category.
type Brand struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category RefID  `json:"category"`
}

// DeviceModel belongs to a brand.
type DeviceModel struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Brand RefID  `json:"brand"`
}

// RepairType is a kind of repair service.
type RepairType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PriceItem is one row of the store price list.
type PriceItem struct {
	ID              int64      `json:"id"`
	Category        RefID      `json:"category"`
	CategoryName    string     `json:"category_name"`
	Brand           RefID      `json:"brand"`
	BrandName       string     `json:"brand_name"`
	DeviceModel     RefID      `json:"device_model"`
	DeviceModelName string     `json:"device_model_name"`
	RepairType      RefID      `json:"repair_type"`
	RepairTypeName  string     `json:"repair_type_name"`
	Price           Text       `json:"price"`
	Status          string     `json:"status"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// PriceFilter narrows the price list.
type PriceFilter struct {
	Category    int64
	Brand       int64
	DeviceModel int64
	RepairType  int64
}

// NewPrice creates a price list row.
type NewPrice struct {
	DeviceModel int64  `json:"device_model"`
	RepairType  int64  `json:"repair_type"`
	Price       string `json:"price"`
	Status      string `json:"status"`
}

// PricePatch updates a price list row. Empty fields are omitted.
type PricePatch struct {
	Price  string `json:"price,omitempty"`
	Status string `json:"status,omitempty"`
}

// Notification is one store notification.
type Notification struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Category  string     `json:"category"`
	IsRead    bool       `json:"is_read"`
	CreatedAt *time.Time `json:"created_at"`
}

// NotificationFilter narrows the notification listing. Status is one of
// all, read or unread; Category is upper case.
type NotificationFilter struct {
	Status   string
	Category string
}

// StoreUser is a dashboard account attached to a store.
type StoreUser struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Role         string
	LastActive   string
	ProfileImage string
}

// NewUser creates a dashboard account.
type NewUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	Store     int64  `json:"store"`
}

// UserPatch updates a dashboard account. Empty fields are omitted.
type UserPatch struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ProfileUpdate is the multipart profile form.
type ProfileUpdate struct {
	FirstName     string
	LastName      string
	StateLocation string
	Image         *Upload
}

// Upload is a file attached to a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PasswordChange is the change-password payload.
type PasswordChange struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AIBehavior is the per-store voice agent configuration.
type AIBehavior struct {
	Tone                        string            `json:"tone"`
	RetryAttemptsBeforeTransfer int               `json:"retry_attempts_before_transfer"`
	FallbackResponse            string            `json:"fallback_response"`
	Greetings                   Greetings         `json:"greetings"`
	BusinessHours               []BusinessHour    `json:"business_hours"`
	AutoTransferKeywords        []TransferKeyword `json:"auto_transfer_keywords"`
}

// Greetings holds the scripted opening lines.
type Greetings struct {
	OpeningHoursGreeting string `json:"opening_hours_greeting"`
	ClosedHoursMessage   string `json:"closed_hours_message"`
}

// BusinessHour is one weekday; Day 0 is Monday.
type BusinessHour struct {
	Day       int     `json:"day"`
	IsOpen    bool    `json:"is_open"`
	OpenTime  *string `json:"open_time"`
	CloseTime *string `json:"close_time"`
}

// TransferKeyword triggers a warm transfer when spoken.
type TransferKeyword struct {
	Keyword string `json:"keyword"`
}

// APIConfig is the per-store model and speech configuration.
type APIConfig struct {
	APIKey    *APIKey    `json:"api_key,omitempty"`
	AIConfig  *AIConfig  `json:"ai_config,omitempty"`
	STTConfig *STTConfig `json:"stt_config,omitempty"`
}

// APIKey wraps the provider key.
type APIKey struct {
	Key string `json:"key"`
}

// AIConfig tunes the language model.
type AIConfig struct {
	Model         string   `json:"model"`
	Temperature   *float64 `json:"temperature"`
	MaxTokens     *int     `json:"max_tokens"`
	Timeout       *int     `json:"timeout"`
	RetryAttempts *int     `json:"retry_attempts"`
	VoiceProvider string   `json:"voice_provider"`
}

// STTConfig tunes speech recognition.
type STTConfig struct {
	Provider         string `json:"provider"`
	Language         string `json:"language"`
	Punctuation      *bool  `json:"punctuation"`
	NoiseSuppression *bool  `json:"noise_suppression"`
}
