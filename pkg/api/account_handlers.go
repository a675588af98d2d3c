package api

import (
	"net/http"

	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/contextkeys"
	"github.com/pkolev/warrantyhub/pkg/httputil"
)

type accountNameRequest struct {
	Name string `json:"name"`
}

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountNameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	account, err := s.accounts.CreateAccount(r.Context(), userID, req.Name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, account)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.UserIDFrom(r.Context())
	summaries, err := s.accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, summaries)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	account, err := s.accounts.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

func (s *Server) renameAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}
	var req accountNameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	account, err := s.accounts.RenameAccount(r.Context(), userID, accountID, req.Name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.accounts.DeleteAccount(r.Context(), userID, accountID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) leaveAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.accounts.LeaveAccount(r.Context(), userID, accountID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	members, err := s.accounts.ListMembers(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) listMemberDetails(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	details, err := s.accounts.ListMemberDetails(r.Context(), userID, accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, details)
}

func (s *Server) inviteMember(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathStringOrError(w, r, "accountID")
	if !ok {
		return
	}
	var req inviteMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	membership, err := s.accounts.InviteMember(r.Context(), userID, accountID, req.Email, auth.Role(req.Role))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, membership)
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "membershipID")
	if !ok {
		return
	}
	var req changeRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.accounts.ChangeRole(r.Context(), userID, membershipID, auth.Role(req.Role)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "membershipID")
	if !ok {
		return
	}

	userID := contextkeys.UserIDFrom(r.Context())
	if err := s.accounts.RemoveMember(r.Context(), userID, membershipID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
