// Package api serves the public wishlist endpoints, the subscription double
// opt-in flow, and the digest trigger the scheduler calls.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/lists"
	"github.com/jdholdren/clearly/internal/metadata"
	"github.com/jdholdren/clearly/internal/notify"
	"github.com/jdholdren/clearly/internal/serverutil"
)

type (
	ListService interface {
		CreateList(ctx context.Context, name string) (clearly.List, error)
		PublicList(ctx context.Context, token string) (lists.PublicList, error)
		AddItem(ctx context.Context, listID string, args lists.AddItemArgs) (clearly.Item, error)
		RemoveItem(ctx context.Context, itemID string) error
		ClaimItem(ctx context.Context, token, itemID, claimedBy string) (clearly.Item, error)
		UnclaimItem(ctx context.Context, token, itemID string) (clearly.Item, error)
		VisitItem(ctx context.Context, itemID string) (string, error)
	}

	SubscriptionService interface {
		Subscribe(ctx context.Context, listID, email string) error
		Verify(ctx context.Context, token string) error
		Unsubscribe(ctx context.Context, token string) error
	}

	DigestRunner interface {
		Run(ctx context.Context) (notify.Report, error)
	}

	MetadataFetcher interface {
		Fetch(ctx context.Context, url string) (metadata.Metadata, error)
	}
)

type (
	// Server handles the HTTP side of the wishlist: browsing and claiming
	// shared lists, managing email subscriptions, and sending digests.
	Server struct {
		*http.Server

		lists    ListService
		subs     SubscriptionService
		digests  DigestRunner
		metadata MetadataFetcher
		links    clearly.Links
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string

		// Bearer secret for the digest trigger.
		BatchJobSecret string
		// Bearer secret for creating lists and managing their items.
		AdminToken string
	}
)

func NewServer(
	config ServerConfig,
	listSvc ListService,
	subSvc SubscriptionService,
	digests DigestRunner,
	fetcher MetadataFetcher,
	links clearly.Links,
) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		lists:    listSvc,
		subs:     subSvc,
		digests:  digests,
		metadata: fetcher,
		links:    links,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 5 * time.Second,
			// Digest runs are answered once every email has gone out.
			WriteTimeout: 2 * time.Minute,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type", "authorization"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/healthz", srvr.getHealthz).Methods(http.MethodGet)

	// Shared lists
	r.HandleFuncE("/api/lists/{token}", srvr.getPublicList).Methods(http.MethodGet)
	r.HandleFuncE("/api/lists/{token}/items/{itemID}/claim", srvr.postClaim).Methods(http.MethodPost)
	r.HandleFuncE("/api/lists/{token}/items/{itemID}/claim", srvr.deleteClaim).Methods(http.MethodDelete)
	r.HandleFuncE("/api/items/{itemID}/visit", srvr.getVisit).Methods(http.MethodGet)
	r.HandleFuncE("/api/fetch-metadata", srvr.getMetadata).Methods(http.MethodGet)

	// Subscriptions. The GET variants are what the email links point at.
	r.HandleFuncE("/api/subscriptions", srvr.postSubscription).Methods(http.MethodPost)
	r.HandleFuncE("/api/subscriptions/verify", srvr.putVerify).Methods(http.MethodPut)
	r.HandleFuncE("/api/subscriptions/verify", srvr.getVerify).Methods(http.MethodGet)
	r.HandleFuncE("/api/subscriptions/unsubscribe", srvr.deleteUnsubscribe).Methods(http.MethodDelete)
	r.HandleFuncE("/api/subscriptions/unsubscribe", srvr.getUnsubscribe).Methods(http.MethodGet)

	jobs := serverutil.ErrRouter{Router: r.PathPrefix("/api/jobs").Subrouter()}
	jobs.Use(serverutil.BearerAuth(config.BatchJobSecret))
	jobs.HandleFuncE("/digests", srvr.postDigests).Methods(http.MethodPost)

	admin := serverutil.ErrRouter{Router: r.NewRoute().Subrouter()}
	admin.Use(serverutil.BearerAuth(config.AdminToken))
	admin.HandleFuncE("/api/lists", srvr.postList).Methods(http.MethodPost)
	admin.HandleFuncE("/api/lists/{listID}/items", srvr.postItem).Methods(http.MethodPost)
	admin.HandleFuncE("/api/items/{itemID}", srvr.deleteItem).Methods(http.MethodDelete)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

func (s Server) getHealthz(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Success body shape the web client reads.
type okResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
