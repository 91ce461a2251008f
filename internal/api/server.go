// Package api is the HTTP surface over the notification core.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"orghub/internal/bridge"
	"orghub/internal/common"
	"orghub/internal/dbmysql"
	"orghub/internal/unread"
	"orghub/internal/viewed"
)

// Service interfaces consumed by the handlers. The concrete core types
// satisfy them; tests substitute fakes.

type UnreadService interface {
	CountsOnce(ctx context.Context, userID, organizationID string) unread.Totals
	OpenAggregation(ctx context.Context, userID, organizationID string) (*unread.Group, error)
	CloseAggregation(group *unread.Group)
}

type RegistryService interface {
	RegisterToken(ctx context.Context, userID, token, platform string) error
}

type DispatchService interface {
	Dispatch(ctx context.Context, event common.DispatchEvent) (common.DispatchResult, error)
}

type MarkService interface {
	MarkBatch(ctx context.Context, userID string, refs []viewed.EntityRef)
}

type BridgeService interface {
	Deliver(msg bridge.ForegroundMessage, focused bool)
}

type Server struct {
	unread     UnreadService
	registry   RegistryService
	dispatcher DispatchService
	marker     MarkService
	bridge     BridgeService
	logs       dbmysql.DeliveryLogRepository
}

func NewServer(
	unreadSvc UnreadService,
	registry RegistryService,
	dispatcher DispatchService,
	marker MarkService,
	bridgeSvc BridgeService,
	logs dbmysql.DeliveryLogRepository,
) *Server {
	return &Server{
		unread:     unreadSvc,
		registry:   registry,
		dispatcher: dispatcher,
		marker:     marker,
		bridge:     bridgeSvc,
		logs:       logs,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.health).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(Authenticate)
	v1.HandleFunc("/devices", s.registerDevice).Methods("POST")
	v1.HandleFunc("/notifications", s.dispatchNotification).Methods("POST")
	v1.HandleFunc("/deliveries/foreground", s.foregroundDelivery).Methods("POST")
	v1.HandleFunc("/organizations/{orgId}/unread", s.unreadCounts).Methods("GET")
	v1.HandleFunc("/organizations/{orgId}/unread/stream", s.streamUnread).Methods("GET")
	v1.HandleFunc("/organizations/{orgId}/viewed", s.markViewed).Methods("POST")
	v1.HandleFunc("/organizations/{orgId}/deliveries", s.recentDeliveries).Methods("GET")

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
