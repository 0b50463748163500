package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/enrich"
	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/review"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment and review HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"provider": env.Enricher.Health().Snapshot(),
		})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Enricher.Metrics().Snapshot())
	})

	r.Post("/enrich", func(w http.ResponseWriter, r *http.Request) {
		var task enrich.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req := model.NewEnrichmentRequest(task.RecordID, task.TenantID, task.Field, task.Payload)
		outcome, err := env.Enricher.Enrich(r.Context(), req, task.Payload)
		if err != nil {
			status, msg := enrichErrorStatus(err)
			if outcome == nil {
				writeError(w, status, msg)
				return
			}
			// Evaluation errors still carry a ledger entry worth returning.
			writeJSON(w, status, outcome)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	r.Get("/reviews", func(w http.ResponseWriter, r *http.Request) {
		items, err := env.Reviews.List(r.Context(), ledger.ReviewFilter{
			Status:   model.ReviewStatus(r.URL.Query().Get("status")),
			TenantID: r.URL.Query().Get("tenant"),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	})

	r.Get("/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		item, err := env.Reviews.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "review item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	r.Post("/reviews/{id}/approve", resolveHandler(func(ctx context.Context, itemID string, body resolveRequest) (*model.ReviewItem, error) {
		return env.Reviews.Approve(ctx, itemID, body.ReviewerID, body.Notes)
	}))
	r.Post("/reviews/{id}/reject", resolveHandler(func(ctx context.Context, itemID string, body resolveRequest) (*model.ReviewItem, error) {
		return env.Reviews.Reject(ctx, itemID, body.ReviewerID, body.Reason, body.Notes)
	}))
	r.Post("/reviews/{id}/escalate", resolveHandler(func(ctx context.Context, itemID string, body resolveRequest) (*model.ReviewItem, error) {
		return env.Reviews.Escalate(ctx, itemID, body.ReviewerID, body.Notes)
	}))

	return r
}

type resolveRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason,omitempty"`
	Notes      string `json:"notes"`
}

func resolveHandler(resolve func(ctx context.Context, itemID string, body resolveRequest) (*model.ReviewItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body resolveRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		item, err := resolve(r.Context(), chi.URLParam(r, "id"), body)
		if err != nil {
			if errors.Is(err, review.ErrAlreadyResolved) {
				writeError(w, http.StatusConflict, "review item already resolved")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func enrichErrorStatus(err error) (int, string) {
	var rateErr *enrich.RateLimitError
	var provErr *enrich.ProviderError
	var evalErr *enrich.EvaluationError
	switch {
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, rateErr.Error()
	case errors.As(err, &provErr):
		return http.StatusBadGateway, provErr.Error()
	case errors.As(err, &evalErr):
		return http.StatusUnprocessableEntity, evalErr.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
