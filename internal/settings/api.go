package settings

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// Choices offered on the API settings page.
var (
	Models         = []string{"GPT-40 (Recommend)", "GPT-4o mini", "GPT-4 Turbo"}
	VoiceProviders = []string{"Eleven Labs", "Google Text-to-Speech", "Amazon Polly"}
	STTProviders   = []string{"Google Speech-to-Text", "Deepgram", "Whisper"}
	Languages      = []string{"English", "Spanish", "French"}
)

// APIForm is the model and speech configuration form.
type APIForm struct {
	APIKey           string
	Model            string  `validate:"required"`
	Temperature      float64 `validate:"gte=0,lte=1"`
	MaxTokens        int     `validate:"min=1,max=4096"`
	Timeout          int     `validate:"min=1,max=120"`
	RetryAttempts    int     `validate:"min=0,max=5"`
	VoiceProvider    string  `validate:"required"`
	STTProvider      string  `validate:"required"`
	Language         string  `validate:"required"`
	Punctuation      bool
	NoiseSuppression bool
}

var apiMessages = map[string]string{
	"Model.required":         "Choose a model",
	"Temperature.gte":        "Temperature must be between 0 and 1",
	"Temperature.lte":        "Temperature must be between 0 and 1",
	"MaxTokens.min":          "Max tokens must be between 1 and 4096",
	"MaxTokens.max":          "Max tokens must be between 1 and 4096",
	"Timeout.min":            "Timeout must be between 1 and 120 seconds",
	"Timeout.max":            "Timeout must be between 1 and 120 seconds",
	"RetryAttempts.min":      "Retry attempts must be between 0 and 5",
	"RetryAttempts.max":      "Retry attempts must be between 0 and 5",
	"VoiceProvider.required": "Choose a voice provider",
	"STTProvider.required":   "Choose a speech-to-text provider",
	"Language.required":      "Choose a language",
}

// DefaultAPIForm holds the values used for settings the store never saved.
func DefaultAPIForm() APIForm {
	return APIForm{
		Model:         Models[0],
		Temperature:   0.7,
		MaxTokens:     150,
		Timeout:       10,
		RetryAttempts: 2,
		VoiceProvider: VoiceProviders[0],
		STTProvider:   STTProviders[0],
		Language:      Languages[0],
		Punctuation:   true,
	}
}

// FromConfig overlays the saved configuration on the defaults.
func FromConfig(cfg backend.APIConfig) APIForm {
	f := DefaultAPIForm()
	if cfg.APIKey != nil {
		f.APIKey = cfg.APIKey.Key
	}
	if ai := cfg.AIConfig; ai != nil {
		f.Model = or(ai.Model, f.Model)
		f.VoiceProvider = or(ai.VoiceProvider, f.VoiceProvider)
		if ai.Temperature != nil {
			f.Temperature = *ai.Temperature
		}
		if ai.MaxTokens != nil {
			f.MaxTokens = *ai.MaxTokens
		}
		if ai.Timeout != nil {
			f.Timeout = *ai.Timeout
		}
		if ai.RetryAttempts != nil {
			f.RetryAttempts = *ai.RetryAttempts
		}
	}
	if stt := cfg.STTConfig; stt != nil {
		f.STTProvider = or(stt.Provider, f.STTProvider)
		f.Language = or(stt.Language, f.Language)
		if stt.Punctuation != nil {
			f.Punctuation = *stt.Punctuation
		}
		if stt.NoiseSuppression != nil {
			f.NoiseSuppression = *stt.NoiseSuppression
		}
	}
	return f
}

// Config builds the full backend payload.
func (f APIForm) Config() backend.APIConfig {
	return backend.APIConfig{
		APIKey: &backend.APIKey{Key: f.APIKey},
		AIConfig: &backend.AIConfig{
			Model:         f.Model,
			Temperature:   &f.Temperature,
			MaxTokens:     &f.MaxTokens,
			Timeout:       &f.Timeout,
			RetryAttempts: &f.RetryAttempts,
			VoiceProvider: f.VoiceProvider,
		},
		STTConfig: &backend.STTConfig{
			Provider:         f.STTProvider,
			Language:         f.Language,
			Punctuation:      &f.Punctuation,
			NoiseSuppression: &f.NoiseSuppression,
		},
	}
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func parseAPIForm(r *http.Request) APIForm {
	f := APIForm{
		APIKey:        strings.TrimSpace(r.PostFormValue("api_key")),
		Model:         strings.TrimSpace(r.PostFormValue("model")),
		VoiceProvider: strings.TrimSpace(r.PostFormValue("voice_provider")),
		STTProvider:   strings.TrimSpace(r.PostFormValue("stt_provider")),
		Language:      strings.TrimSpace(r.PostFormValue("language")),
	}
	var err error
	if f.Temperature, err = strconv.ParseFloat(r.PostFormValue("temperature"), 64); err != nil || math.IsNaN(f.Temperature) {
		f.Temperature = -1
	}
	f.MaxTokens, _ = strconv.Atoi(r.PostFormValue("max_tokens"))
	f.Timeout, _ = strconv.Atoi(r.PostFormValue("timeout"))
	if f.RetryAttempts, err = strconv.Atoi(r.PostFormValue("retry_attempts")); err != nil {
		f.RetryAttempts = -1
	}
	f.Punctuation = r.PostFormValue("punctuation") != ""
	f.NoiseSuppression = r.PostFormValue("noise_suppression") != ""
	return f
}

type apiPageData struct {
	Form           APIForm
	Loaded         bool
	Errors         formErrors
	Models         []string
	VoiceProviders []string
	STTProviders   []string
	Languages      []string
}

func (h *Handler) renderAPI(w http.ResponseWriter, r *http.Request, form APIForm, loaded bool, errs formErrors, status int) {
	h.responder.Render(w, r, "pages/settings_api.html", "API Settings", apiPageData{
		Form:           form,
		Loaded:         loaded,
		Errors:         errs,
		Models:         Models,
		VoiceProviders: VoiceProviders,
		STTProviders:   STTProviders,
		Languages:      Languages,
	}, status)
}

func (h *Handler) showAPI(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	p := state.FromContext(r.Context())
	snap, err := screen.Open(r.Context(), "settings.api", screen.Key{StoreID: storeID}, func(ctx context.Context, key screen.Key) (APIForm, error) {
		cfg, err := h.connect(p).APIConfig(ctx, key.StoreID)
		if err != nil {
			return APIForm{}, shared.NewSafeError("Failed to load API config", err)
		}
		return FromConfig(cfg), nil
	})
	if err != nil {
		h.responder.Fail(w, r, err, "/dashboard")
		return
	}
	if snap.Err != nil && !h.responder.Toast(w, r, snap.Err) {
		return
	}
	form := snap.Data
	if !snap.HasData {
		form = DefaultAPIForm()
	}
	h.renderAPI(w, r, form, snap.HasData, nil, http.StatusOK)
}

func (h *Handler) saveAPIKey(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(r.PostFormValue("api_key"))
	if key == "" {
		h.responder.Redirect(w, r, "/settings/api", shared.FlashError, "API key is required")
		return
	}
	ctx := r.Context()
	err := h.connect(state.FromContext(ctx)).UpdateAPIConfig(ctx, storeID, backend.APIConfig{APIKey: &backend.APIKey{Key: key}})
	if err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to save API key", err), "/settings/api")
		return
	}
	h.responder.Redirect(w, r, "/settings/api", shared.FlashSuccess, "API key saved")
}

func (h *Handler) saveAPI(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.responder.ActiveStore(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := parseAPIForm(r)
	if errs := h.check(form, apiMessages); len(errs) > 0 {
		h.renderAPI(w, r, form, true, errs, http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if err := h.connect(state.FromContext(ctx)).UpdateAPIConfig(ctx, storeID, form.Config()); err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to save settings", err), "/settings/api")
		return
	}
	h.responder.Redirect(w, r, "/settings/api", shared.FlashSuccess, "Settings saved successfully")
}
