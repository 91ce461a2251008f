package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"orghub/internal/bridge"
	"orghub/internal/common"
	"orghub/internal/viewed"
)

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (s *Server) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID := UserIDFromContext(r.Context())
	if err := s.registry.RegisterToken(r.Context(), userID, req.Token, req.Platform); err != nil {
		log.Printf("Device registration failed for user %s: %v", userID, err)
		http.Error(w, "failed to register device", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"registered": true})
}

func (s *Server) dispatchNotification(w http.ResponseWriter, r *http.Request) {
	var event common.DispatchEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// the caller is the actor; producers must never notify themselves
	event.ActorID = UserIDFromContext(r.Context())

	result, err := s.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		log.Printf("Dispatch failed for %s/%s: %v", event.Category, event.OrganizationID, err)
		http.Error(w, "dispatch failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type foregroundDeliveryRequest struct {
	bridge.ForegroundMessage
	Focused bool `json:"focused"`
}

func (s *Server) foregroundDelivery(w http.ResponseWriter, r *http.Request) {
	var req foregroundDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.bridge.Deliver(req.ForegroundMessage, req.Focused)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) unreadCounts(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgId"]
	userID := UserIDFromContext(r.Context())

	totals := s.unread.CountsOnce(r.Context(), userID, orgID)
	writeJSON(w, http.StatusOK, totals)
}

// streamUnread holds an aggregation group open for the life of the
// connection and pushes every totals change as a server-sent event. The
// group is torn down when the client disconnects.
func (s *Server) streamUnread(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	orgID := mux.Vars(r)["orgId"]
	userID := UserIDFromContext(r.Context())

	group, err := s.unread.OpenAggregation(r.Context(), userID, orgID)
	if err != nil {
		log.Printf("Failed to open aggregation for user %s org %s: %v", userID, orgID, err)
		http.Error(w, "failed to open aggregation", http.StatusInternalServerError)
		return
	}
	defer s.unread.CloseAggregation(group)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case totals, open := <-group.Updates():
			if !open {
				return
			}
			payload, err := json.Marshal(totals)
			if err != nil {
				log.Printf("Failed to encode totals for user %s org %s: %v", userID, orgID, err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type markViewedRequest struct {
	Entities []viewed.EntityRef `json:"entities"`
}

func (s *Server) markViewed(w http.ResponseWriter, r *http.Request) {
	var req markViewedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Entities) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	userID := UserIDFromContext(r.Context())

	// paced flush outlives the request; lost refs are rediscovered as
	// unread and re-batched
	go s.marker.MarkBatch(context.Background(), userID, req.Entities)

	writeJSON(w, http.StatusAccepted, map[string]int{"queued": len(req.Entities)})
}

func (s *Server) recentDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "delivery log unavailable", http.StatusServiceUnavailable)
		return
	}

	orgID := mux.Vars(r)["orgId"]
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.logs.RecentByOrganization(r.Context(), orgID, limit)
	if err != nil {
		log.Printf("Failed to list deliveries for org %s: %v", orgID, err)
		http.Error(w, "failed to list deliveries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
