package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/flagsync/internal/api/common"
	"github.com/stacklok/flagsync/internal/storage"
	"github.com/stacklok/flagsync/internal/versions"
)

// HealthRouter creates a router for health, status and version endpoints
func HealthRouter(provider StatusProvider) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(provider))
	r.Get("/status", statusHandler(provider))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler reports liveness. It succeeds whenever the process can serve HTTP.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := provider.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func statusHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := provider.Snapshot(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to build status snapshot", "error", err)
			common.WriteErrorResponse(w, "failed to read synchronization status", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, snapshot, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// FlagRouter creates a router exposing the cached splits
func FlagRouter(flags FlagReader) http.Handler {
	r := chi.NewRouter()

	r.Get("/", listSplitsHandler(flags))
	r.Get("/{name}", getSplitHandler(flags))

	return r
}

func listSplitsHandler(flags FlagReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := flags.SplitNames(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to list splits", "error", err)
			common.WriteErrorResponse(w, "failed to list splits", http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		common.WriteJSONResponse(w, SplitListResponse{Splits: names, Count: len(names)}, http.StatusOK)
	}
}

func getSplitHandler(flags FlagReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := common.GetAndValidateURLParam(r, "name")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}

		split, err := flags.Split(r.Context(), name)
		if errors.Is(err, storage.ErrSplitNotFound) {
			common.WriteErrorResponse(w, "split not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to read split", "split", name, "error", err)
			common.WriteErrorResponse(w, "failed to read split", http.StatusInternalServerError)
			return
		}

		common.WriteJSONResponse(w, SplitResponse{
			Name:             split.Name,
			Status:           split.Status,
			Killed:           split.Killed,
			DefaultTreatment: split.DefaultTreatment,
			ChangeNumber:     split.ChangeNumber,
			Segments:         split.Segments(),
			Definition:       split.Definition,
		}, http.StatusOK)
	}
}

func segmentMembershipHandler(flags FlagReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segment, err := common.GetAndValidateURLParam(r, "name")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		key, err := common.GetAndValidateURLParam(r, "key")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}

		member, err := flags.IsInSegment(r.Context(), segment, key)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to check segment membership", "segment", segment, "error", err)
			common.WriteErrorResponse(w, "failed to read segment", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, SegmentMembershipResponse{Segment: segment, Key: key, Member: member}, http.StatusOK)
	}
}
