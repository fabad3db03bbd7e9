package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/Romspopopoms/7Jours/internal/database"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type subscribeRequest struct {
	FirstName    string `json:"firstName"`
	Email        string `json:"email"`
	ConsentGiven bool   `json:"consentGiven"`
}

func (req *subscribeRequest) validate() []string {
	var errs []string

	if strings.TrimSpace(req.FirstName) == "" {
		errs = append(errs, "Le prénom est requis et doit être une chaîne de caractères non vide")
	}
	if req.Email == "" || !emailPattern.MatchString(req.Email) {
		errs = append(errs, "Une adresse email valide est requise")
	}
	if !req.ConsentGiven {
		errs = append(errs, "Un consentement explicite est requis")
	}

	return errs
}

// Subscribe registers a new subscriber: validate, duplicate check, insert,
// then a best-effort confirmation email. The row is the durable outcome; a
// failed send never turns a successful registration into an error.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "Le type de contenu doit être application/json",
		})
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "Corps de requête invalide",
		})
		return
	}

	if validationErrs := req.validate(); len(validationErrs) > 0 {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "Échec de la validation",
			Errors:  validationErrs,
		})
		return
	}

	// Fast path only: the unique index is the real guard against races.
	existing, err := h.store.FindByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("duplicate check failed", "error", err, "email", req.Email)
		respondJSON(w, http.StatusInternalServerError, apiResponse{
			Success: false,
			Message: "L'inscription a échoué",
		})
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "Cet email est déjà inscrit.",
		})
		return
	}

	id, err := h.store.Insert(r.Context(), strings.TrimSpace(req.FirstName), req.Email, req.ConsentGiven)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			respondJSON(w, http.StatusBadRequest, apiResponse{
				Success: false,
				Message: "Cet email est déjà inscrit.",
			})
			return
		}
		h.logger.Error("failed to insert subscriber", "error", err, "email", req.Email)
		respondJSON(w, http.StatusInternalServerError, apiResponse{
			Success: false,
			Message: "L'inscription a échoué",
		})
		return
	}

	result := h.mailer.SendConfirmation(r.Context(), strings.TrimSpace(req.FirstName), req.Email)
	if result.Sent {
		if err := h.store.MarkPDFSent(r.Context(), id); err != nil {
			h.logger.Error("failed to mark pdf sent", "error", err, "id", id)
		}
	} else {
		h.logger.Error("confirmation email not sent", "error", result.Err, "email", req.Email, "id", id)
	}

	respondJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Inscription réussie ! Vérifiez votre email pour recevoir votre PDF.",
		ID:      id,
	})
}
