// Package api wires the HTTP surface: routing, handlers and DTOs.
//
// Handlers are thin. They parse the request, pull the authenticated user id
// from the context, call the service layer and map the returned error kind
// to a status code through httputil.WriteAppError. All authorization
// decisions live in the services.
package api
