package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Romspopopoms/7Jours/internal/email"
	"github.com/Romspopopoms/7Jours/internal/models"
)

// SubscriberStore is the persistence surface the handlers need. Satisfied
// by *database.DB.
type SubscriberStore interface {
	EnsureSchema(ctx context.Context) error
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	Insert(ctx context.Context, firstName, email string, consentGiven bool) (int, error)
	MarkPDFSent(ctx context.Context, id int) error
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
}

// Mailer is satisfied by *email.Sender.
type Mailer interface {
	SendConfirmation(ctx context.Context, firstName, email string) email.SendResult
	Verify(ctx context.Context) bool
	Diagnostics() email.Diagnostics
}

type Handler struct {
	store  SubscriberStore
	mailer Mailer
	logger *slog.Logger
}

func New(store SubscriberStore, mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		mailer: mailer,
		logger: logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(h.requestLogger)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, apiResponse{
			Success: false,
			Message: "Méthode non autorisée",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", h.Subscribe)
		r.Get("/migrate", h.Migrate)
		r.Get("/test-email", h.TestEmail)
		r.Get("/subscribers", h.ListSubscribers)
	})

	return r
}

// Migrate runs the idempotent schema setup. The page calls it once on
// mount; repeated or concurrent calls are harmless.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.EnsureSchema(r.Context()); err != nil {
		h.logger.Error("database migration failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, apiResponse{
			Success: false,
			Message: "Échec de la migration de la base de données",
			Error:   err.Error(),
		})
		return
	}

	h.logger.Info("database migration succeeded")
	respondJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Base de données mise à jour avec succès",
	})
}

// ListSubscribers returns every registered subscriber, newest first.
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		h.logger.Error("failed to list subscribers", "error", err)
		respondJSON(w, http.StatusInternalServerError, apiResponse{
			Success: false,
			Message: "Impossible de récupérer les abonnés",
		})
		return
	}

	respondJSON(w, http.StatusOK, subscribers)
}

type testEmailResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Config  *email.Diagnostics `json:"config,omitempty"`
}

// TestEmail reports SMTP configuration state and, with
// ?test=send&email=...&name=..., triggers a real send.
func (h *Handler) TestEmail(w http.ResponseWriter, r *http.Request) {
	diag := h.mailer.Diagnostics()
	configValid := h.mailer.Verify(r.Context())

	q := r.URL.Query()
	if q.Get("test") == "send" && q.Get("email") != "" && q.Get("name") != "" {
		if !configValid {
			respondJSON(w, http.StatusInternalServerError, testEmailResponse{
				Success: false,
				Message: "La configuration email n'est pas valide. Impossible d'envoyer l'email de test.",
				Config:  &diag,
			})
			return
		}

		result := h.mailer.SendConfirmation(r.Context(), q.Get("name"), q.Get("email"))
		if !result.Sent {
			respondJSON(w, http.StatusInternalServerError, testEmailResponse{
				Success: false,
				Message: "Échec de l'envoi de l'email de test",
				Config:  &diag,
			})
			return
		}

		respondJSON(w, http.StatusOK, testEmailResponse{
			Success: true,
			Message: "Email de test envoyé avec succès à " + q.Get("email"),
			Config:  &diag,
		})
		return
	}

	message := "Configuration email invalide"
	if configValid {
		message = "Configuration email valide"
	}
	respondJSON(w, http.StatusOK, testEmailResponse{
		Success: configValid,
		Message: message,
		Config:  &diag,
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
