package gatewaytest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
)

type rpcArgs struct {
	Token          string        `json:"token"`
	Email          string        `json:"email"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	Role           identity.Role `json:"role"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

func (s *Server) rpc(w http.ResponseWriter, r *http.Request) {
	var args rpcArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.authenticateLocked(w, r, false)
	if !ok {
		return
	}

	switch name := chi.URLParam(r, "name"); name {
	case gateway.RPCValidateInvitation:
		inv, ok := s.usableInvitationLocked(w, args.Token)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, inv)

	case gateway.RPCAcceptInvitation:
		if u == nil {
			writeError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
			return
		}
		inv, ok := s.usableInvitationLocked(w, args.Token)
		if !ok {
			return
		}
		if !strings.EqualFold(inv.Email, u.Email) {
			writeError(w, http.StatusForbidden, "invitation_email_mismatch", "Invitation was issued for a different email")
			return
		}
		now := time.Now()
		inv.AcceptedAt = &now
		s.tables[gateway.ResourceMemberships] = append(s.tables[gateway.ResourceMemberships],
			toRow(gateway.Membership{UserID: u.ID, OrganizationID: inv.OrganizationID, Role: inv.Role}))
		writeJSON(w, http.StatusOK, inv)

	case gateway.RPCCreateInvitation:
		if u == nil {
			writeError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
			return
		}
		role, member := s.memberRoleLocked(u.ID, args.OrganizationID)
		if !u.Superuser && (!member || !role.IsAdmin()) {
			writeError(w, http.StatusForbidden, "forbidden", "Only organization admins can invite members")
			return
		}
		inv := &identity.Invitation{
			ID:             uuid.New(),
			Email:          args.Email,
			OrganizationID: args.OrganizationID,
			Role:           args.Role,
			Token:          uuid.NewString(),
			ExpiresAt:      args.ExpiresAt,
		}
		s.invitations[inv.Token] = inv
		writeJSON(w, http.StatusOK, inv)

	case gateway.RPCStartImpersonation:
		if u == nil || !u.Superuser {
			writeError(w, http.StatusForbidden, "forbidden", "Only superusers can impersonate")
			return
		}
		org, ok := s.organizationLocked(args.OrganizationID)
		if !ok {
			writeError(w, http.StatusNotFound, "organization_not_found", "Organization not found")
			return
		}
		s.impersonating[u.ID] = org.ID
		writeJSON(w, http.StatusOK, org)

	case gateway.RPCStopImpersonation:
		if u == nil {
			writeError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
			return
		}
		delete(s.impersonating, u.ID)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "function_not_found", "Could not find the function "+name)
	}
}

func (s *Server) usableInvitationLocked(w http.ResponseWriter, token string) (*identity.Invitation, bool) {
	inv, ok := s.invitations[token]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "invitation_not_found", "Invitation not found")
		return nil, false
	case inv.AcceptedAt != nil:
		writeError(w, http.StatusGone, "invitation_used", "Invitation has already been used")
		return nil, false
	case !time.Now().Before(inv.ExpiresAt):
		writeError(w, http.StatusGone, "invitation_expired", "Invitation has expired")
		return nil, false
	}
	return inv, true
}
