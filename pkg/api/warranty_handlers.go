package api

import (
	"net/http"
	"time"

	"github.com/pkolev/warrantyhub/pkg/contextkeys"
	"github.com/pkolev/warrantyhub/pkg/httputil"
	"github.com/pkolev/warrantyhub/pkg/warranty"
)

// warrantyResponse wraps an item with its derived status
type warrantyResponse struct {
	warranty.Item
	Status warranty.Status `json:"status"`
}

func toWarrantyResponse(item warranty.Item, now time.Time) warrantyResponse {
	return warrantyResponse{Item: item, Status: item.Status(now)}
}

func (s *Server) createWarranty(w http.ResponseWriter, r *http.Request) {
	var req warranty.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	item, err := s.warranties.Create(r.Context(), userID, req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, toWarrantyResponse(*item, time.Now()))
}

func (s *Server) getWarranty(w http.ResponseWriter, r *http.Request) {
	warrantyID, ok := httputil.ParsePathStringOrError(w, r, "warrantyID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	item, err := s.warranties.Get(r.Context(), userID, warrantyID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, toWarrantyResponse(*item, time.Now()))
}

func (s *Server) listWarranties(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	items, err := s.warranties.List(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	now := time.Now()
	responses := make([]warrantyResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toWarrantyResponse(item, now))
	}
	httputil.WriteSuccess(w, responses)
}

func (s *Server) updateWarranty(w http.ResponseWriter, r *http.Request) {
	warrantyID, ok := httputil.ParsePathStringOrError(w, r, "warrantyID")
	if !ok {
		return
	}
	var req warranty.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	item, err := s.warranties.Update(r.Context(), userID, warrantyID, req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, toWarrantyResponse(*item, time.Now()))
}

func (s *Server) deleteWarranty(w http.ResponseWriter, r *http.Request) {
	warrantyID, ok := httputil.ParsePathStringOrError(w, r, "warrantyID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.warranties.Delete(r.Context(), userID, warrantyID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) addDocuments(w http.ResponseWriter, r *http.Request) {
	warrantyID, ok := httputil.ParsePathStringOrError(w, r, "warrantyID")
	if !ok {
		return
	}
	var req struct {
		Documents []warranty.DocumentInput `json:"documents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	docs, err := s.warranties.AddDocuments(r.Context(), userID, warrantyID, req.Documents)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, docs)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID, ok := httputil.ParsePathStringOrError(w, r, "documentID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.warranties.DeleteDocument(r.Context(), userID, documentID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) warrantyStatusCounts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	counts, err := s.warranties.CountByStatus(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, counts)
}
