package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/Quorum-Labs/treasury_layer/internal/app"
	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

// Config tunes the HTTP layer. An empty JWTSecret disables token checks and
// takes the caller identity from the X-Member header instead, which is only
// acceptable for local development. A RateLimitPerSecond of zero disables
// rate limiting.
type Config struct {
	JWTSecret          string
	AuditPath          string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a mux exposing the treasury REST API.
func NewHandler(application *app.Application, cfg Config) (http.Handler, error) {
	sink, err := newFileAuditSink(cfg.AuditPath)
	if err != nil {
		return nil, err
	}
	h := &handler{app: application, audit: newAuditLog(0, sink)}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/wallets", h.wallets)
	mux.HandleFunc("/wallets/", h.walletResources)
	mux.HandleFunc("/proposals/", h.proposalResources)
	mux.HandleFunc("/audit", h.auditEntries)

	// The limiter sits inside the audit middleware so rejected requests
	// still leave an audit entry, and inside auth so it keys on the
	// resolved member.
	var inner http.Handler = mux
	if cfg.RateLimitPerSecond > 0 {
		inner = newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst).middleware(inner)
	}
	return authMiddleware(cfg.JWTSecret, h.audit.middleware(inner)), nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) wallets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name      string   `json:"name"`
			Members   []string `json:"members"`
			Threshold int      `json:"threshold"`
			Address   string   `json:"address"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		wlt, err := h.app.Wallets.Create(r.Context(), payload.Name, payload.Members, payload.Threshold, payload.Address)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, wlt)

	case http.MethodGet:
		member := r.URL.Query().Get("member")
		if member == "" {
			member = memberFrom(r)
		}
		list, err := h.app.Wallets.List(r.Context(), member)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) walletResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/wallets"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	walletID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		wlt, err := h.app.Wallets.Get(r.Context(), walletID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wlt)
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "proposals":
		h.walletProposals(w, r, walletID)
	case "pending-count":
		h.walletPendingCount(w, r, walletID)
	case "activity":
		h.walletActivity(w, r, walletID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) walletProposals(w http.ResponseWriter, r *http.Request, walletID string) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Payload     string `json:"payload"`
			Description string `json:"description"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := h.app.Proposals.Create(r.Context(), walletID, memberFrom(r), payload.Payload, payload.Description)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case http.MethodGet:
		var filter proposal.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := proposal.ParseStatus(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			filter = parsed
		}
		views, err := h.app.Proposals.List(r.Context(), walletID, filter)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) walletPendingCount(w http.ResponseWriter, r *http.Request, walletID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	count, err := h.app.Notifications.PendingCount(r.Context(), walletID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": count})
}

func (h *handler) walletActivity(w http.ResponseWriter, r *http.Request, walletID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}
	feed, err := h.app.Notifications.RecentActivity(r.Context(), walletID, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handler) proposalResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/proposals"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	proposalID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		view, err := h.app.Proposals.Get(r.Context(), proposalID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "signatures":
		h.proposalSignatures(w, r, proposalID)
	case "progress":
		h.proposalProgress(w, r, proposalID)
	case "sign":
		h.proposalSign(w, r, proposalID)
	case "cancel":
		h.proposalCancel(w, r, proposalID)
	case "reject":
		h.proposalReject(w, r, proposalID)
	case "execute":
		h.proposalExecute(w, r, proposalID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) proposalSignatures(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sigs, err := h.app.Proposals.Signatures(r.Context(), proposalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sigs)
}

func (h *handler) proposalProgress(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	progress, err := h.app.Proposals.GetProgress(r.Context(), proposalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *handler) proposalSign(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Signature string `json:"signature"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.app.Proposals.Sign(r.Context(), proposalID, memberFrom(r), payload.Signature)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) proposalCancel(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	view, err := h.app.Proposals.Cancel(r.Context(), proposalID, memberFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) proposalReject(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.app.Proposals.Reject(r.Context(), proposalID, memberFrom(r), payload.Reason)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) proposalExecute(w http.ResponseWriter, r *http.Request, proposalID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	view, err := h.app.Execution.Execute(r.Context(), proposalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// statusFor maps application error codes onto HTTP statuses.
func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeWalletNotFound, apperr.CodeProposalNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthorized:
		return http.StatusForbidden
	case apperr.CodeInvalidMembers, apperr.CodeInvalidThreshold, apperr.CodeInvalidSignature:
		return http.StatusBadRequest
	case apperr.CodeDuplicateSignature, apperr.CodeProposalClosed, apperr.CodeAlreadyExecuted, apperr.CodeThresholdNotMet:
		return http.StatusConflict
	case apperr.CodeExecutionFailed:
		return http.StatusBadGateway
	case apperr.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{
		"code":  string(apperr.CodeOf(err)),
		"error": err.Error(),
	}
	if e, ok := err.(*apperr.Error); ok && len(e.Metadata) > 0 {
		body["metadata"] = e.Metadata
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
