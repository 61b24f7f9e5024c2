package api

import (
	"encoding/json"
	"net/http"

	"innoviahub/internal/metrics"
)

// BlockUserRequest is the request body for POST /api/admin/blocks.
type BlockUserRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// handleBlockUser bars a user from booking.
// POST /api/admin/blocks
func (s *HTTPServer) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("block_user")

	adminID, isAdmin := identity(r)
	if adminID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req BlockUserRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.access.Block(r.Context(), adminID, isAdmin, req.UserID, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUnblockUser lifts a block.
// DELETE /api/admin/blocks/{userID}
func (s *HTTPServer) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("unblock_user")

	_, isAdmin := identity(r)

	if err := s.access.Unblock(r.Context(), isAdmin, r.PathValue("userID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleListBlockedUsers returns all blocklist entries.
// GET /api/admin/blocks
func (s *HTTPServer) handleListBlockedUsers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_blocked_users")

	_, isAdmin := identity(r)

	blocked, err := s.access.List(r.Context(), isAdmin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_users": blocked})
}
