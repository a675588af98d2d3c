// Package httputil provides HTTP utilities for standardized request/response
// handling.
//
// Handlers return errors from the service layer as *apperr.Error values;
// WriteAppError maps the error kind to the HTTP status code so the mapping
// lives in exactly one place:
//
//	if err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//
// Request parsing:
//
//	var req createWarrantyRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
package httputil
