// Package http exposes the analysis service over a chi router.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"speech-rehab-service/internal/app"
	"speech-rehab-service/internal/i18n"
	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/service/analysis"
)

// formOverhead is the allowance for non-file multipart fields.
const formOverhead = 1 << 20

// SupportedLanguages are the tags the language endpoint accepts.
var SupportedLanguages = []string{"zh-CN", "en-US"}

type handlers struct {
	app      *app.Application
	analyzer *analysis.Analyzer
	maxBytes int64
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status             string   `json:"status"`
	Message            string   `json:"message"`
	Version            string   `json:"version"`
	EnginesAvailable   []string `json:"engines_available"`
	AvailableLanguages []string `json:"available_models"`
	CurrentLanguage    string   `json:"current_language"`
	STTProvider        string   `json:"stt_provider"`
}

type languagesResponse struct {
	AvailableLanguages []string `json:"available_languages"`
	CurrentLanguage    string   `json:"current_language"`
}

type languageRequest struct {
	Language string `json:"language"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log := logging.WithComponent("http")
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	hl := h.analyzer.Health()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		Message:            i18n.Default().Message(messageLanguage(hl.CurrentLanguage), "health.message", nil),
		Version:            app.Version,
		EnginesAvailable:   hl.EnginesAvailable,
		AvailableLanguages: hl.EnginesAvailable,
		CurrentLanguage:    hl.CurrentLanguage,
		STTProvider:        h.app.Cfg.STT.Provider,
	})
}

func (h *handlers) languages(w http.ResponseWriter, _ *http.Request) {
	hl := h.analyzer.Health()
	writeJSON(w, http.StatusOK, languagesResponse{
		AvailableLanguages: hl.EnginesAvailable,
		CurrentLanguage:    hl.CurrentLanguage,
	})
}

// setLanguage accepts either a JSON body or a form field named "language".
func (h *handlers) setLanguage(w http.ResponseWriter, r *http.Request) {
	var lang string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req languageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, formOverhead)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		lang = req.Language
	} else {
		lang = r.FormValue("language")
	}

	catalog := i18n.Default()
	msgLang := messageLanguage(lang)
	if !supported(lang) {
		writeError(w, http.StatusBadRequest, catalog.Message(msgLang, "language.unsupported", nil))
		return
	}

	data := map[string]any{"Language": lang}
	if !h.analyzer.SetActiveLanguage(lang) {
		writeError(w, http.StatusConflict, catalog.Message(msgLang, "language.not_loaded", data))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: catalog.Message(msgLang, "language.switched", data),
	})
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	log := logging.WithComponent("http")

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with an audio file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	reference := strings.TrimSpace(r.FormValue("reference_text"))
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference_text is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded audio")
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	report := h.analyzer.Analyze(r.Context(), analysis.Request{
		Audio:         data,
		Format:        filepath.Ext(header.Filename),
		ReferenceText: reference,
		Language:      r.FormValue("language"),
		UserID:        r.FormValue("user_id"),
	})
	writeJSON(w, http.StatusOK, report)
}

func supported(lang string) bool {
	return slices.Contains(SupportedLanguages, lang)
}

// messageLanguage picks the catalog language for a response.
func messageLanguage(lang string) string {
	if supported(lang) {
		return lang
	}
	return i18n.DefaultLanguage
}
