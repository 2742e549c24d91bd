package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/api/middleware"
	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/metrics"
	"github.com/ksw5434/realestate/internal/services"
)

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg      *config.Config
	accounts services.IAccountService
	access   services.IAccessService
	profiles services.IProfileService
	listings services.IListingService
	queries  services.IListingQueryService
	metrics  *metrics.MetricsManager
	logger   *zap.Logger
	methods  map[string]apiMethodFunc
}

// JsonApiServices groups the services the JSON API dispatches to.
type JsonApiServices struct {
	Accounts services.IAccountService
	Access   services.IAccessService
	Profiles services.IProfileService
	Listings services.IListingService
	Queries  services.IListingQueryService
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(cfg *config.Config, svc JsonApiServices, m *metrics.MetricsManager, logger *zap.Logger) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:      cfg,
		accounts: svc.Accounts,
		access:   svc.Access,
		profiles: svc.Profiles,
		listings: svc.Listings,
		queries:  svc.Queries,
		metrics:  m,
		logger:   logger,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":          h.ping,
		"signUp":        h.signUp,
		"signIn":        h.signIn,
		"signOut":       h.signOut,
		"getSession":    h.getSession,
		"getProfile":    h.getProfile,
		"updateProfile": h.updateProfile,
		"createListing": h.createListing,
		"updateListing": h.updateListing,
		"deleteListing": h.deleteListing,
		"getListing":    h.getListing,
		"listListings":  h.listListings,
	}
	return h
}

// MaxJsonApiBodyBytes caps a JSON-API request body. Files go through the upload endpoints.
const MaxJsonApiBodyBytes = 1 << 20

// HandleRequest is the main entry point for POST /v1/api. It always answers HTTP 200.
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxJsonApiBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendErrorResponse(c, "Request body too large")
			return
		}
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	start := time.Now()
	result, apiErr := handlerFunc(c, req.Arguments)
	h.metrics.APILatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if apiErr != nil {
		h.metrics.APIErrorsTotal.WithLabelValues(req.Method, apiErr.Kind).Inc()
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: message})
}

// ApiError is a failed method call as reported to the client.
type ApiError struct {
	Message string
	Kind    string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message, Kind: "request"}
}

// apiErrorFrom turns a service error into a client message. Store errors are
// logged and reported with the failed operation; unexpected errors without details.
func (h *JsonApiHandler) apiErrorFrom(method string, err error) *ApiError {
	kind := services.ErrorKind(err)
	var (
		valErr   *services.ValidationError
		assetErr *services.AssetError
		storeErr *services.StoreError
	)
	switch {
	case errors.As(err, &valErr):
		return &ApiError{Message: valErr.Error(), Kind: kind}
	case errors.Is(err, services.ErrUnauthenticated):
		return &ApiError{Message: "Authentication required", Kind: kind}
	case errors.Is(err, services.ErrForbidden):
		return &ApiError{Message: "Administrator privileges required", Kind: kind}
	case errors.Is(err, services.ErrInvalidCredentials):
		return &ApiError{Message: "Invalid email or password", Kind: kind}
	case errors.Is(err, services.ErrListingNotFound):
		return &ApiError{Message: "Listing not found", Kind: kind}
	case errors.As(err, &assetErr):
		return &ApiError{Message: assetErr.Error(), Kind: kind}
	case errors.As(err, &storeErr):
		h.logger.Error("JSON API method failed", zap.String("method", method), zap.Error(err))
		return &ApiError{Message: storeErr.Error(), Kind: kind}
	default:
		h.logger.Error("JSON API method failed", zap.String("method", method), zap.Error(err))
		return &ApiError{Message: "Internal error", Kind: kind}
	}
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

func (h *JsonApiHandler) signUp(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var input services.SignUpInput
	if apiErr := parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}
	session, err := h.accounts.SignUp(c.Request.Context(), input)
	if err != nil {
		return nil, h.apiErrorFrom("signUp", err)
	}
	h.setSessionCookie(c, session.Token)
	return session, nil
}

// SignInArgs defines the arguments for the signIn method.
type SignInArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) signIn(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var input SignInArgs
	if apiErr := parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}
	session, err := h.accounts.SignIn(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		return nil, h.apiErrorFrom("signIn", err)
	}
	h.setSessionCookie(c, session.Token)
	return session, nil
}

func (h *JsonApiHandler) signOut(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, "", -1, "/", "", h.cfg.SessionCookieSecure, true)
	return "ok", nil
}

// SessionInfo is the result of getSession.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Capability    string `json:"capability"`
}

// getSession reports the caller's capability. The admin flag is read from the profile, not the token.
func (h *JsonApiHandler) getSession(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	caller := middleware.CallerFromContext(c)
	capability, err := h.access.Capability(c.Request.Context(), caller)
	if err != nil {
		return nil, h.apiErrorFrom("getSession", err)
	}
	return SessionInfo{
		Authenticated: caller.Authenticated(),
		UserID:        caller.UserID,
		Email:         caller.Email,
		Capability:    capability.String(),
	}, nil
}

func (h *JsonApiHandler) getProfile(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	profile, err := h.profiles.GetOrCreate(c.Request.Context(), middleware.CallerFromContext(c))
	if err != nil {
		return nil, h.apiErrorFrom("getProfile", err)
	}
	return profile, nil
}

func (h *JsonApiHandler) updateProfile(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var update services.ProfileUpdate
	if apiErr := parseRequiredSingleArgFromArray(args, &update); apiErr != nil {
		return nil, apiErr
	}
	profile, err := h.profiles.UpdateOwnProfile(c.Request.Context(), middleware.CallerFromContext(c), update)
	if err != nil {
		return nil, h.apiErrorFrom("updateProfile", err)
	}
	return profile, nil
}

func (h *JsonApiHandler) createListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var form services.ListingForm
	if apiErr := parseRequiredSingleArgFromArray(args, &form); apiErr != nil {
		return nil, apiErr
	}
	res, err := h.listings.CreateListing(c.Request.Context(), middleware.CallerFromContext(c), form)
	if err != nil {
		return nil, h.apiErrorFrom("createListing", err)
	}
	return res, nil
}

// updateListing expects arguments [id, form].
func (h *JsonApiHandler) updateListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var (
		id   string
		form services.ListingForm
	)
	if apiErr := parseArgsFromArray(args, &id, &form); apiErr != nil {
		return nil, apiErr
	}
	if id == "" {
		return nil, NewApiError("Listing id is required")
	}
	res, err := h.listings.UpdateListing(c.Request.Context(), middleware.CallerFromContext(c), id, form)
	if err != nil {
		return nil, h.apiErrorFrom("updateListing", err)
	}
	return res, nil
}

func (h *JsonApiHandler) deleteListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var id string
	if apiErr := parseRequiredSingleArgFromArray(args, &id); apiErr != nil {
		return nil, apiErr
	}
	if id == "" {
		return nil, NewApiError("Listing id is required")
	}
	if err := h.listings.DeleteListing(c.Request.Context(), middleware.CallerFromContext(c), id); err != nil {
		return nil, h.apiErrorFrom("deleteListing", err)
	}
	return gin.H{"listing_id": id}, nil
}

func (h *JsonApiHandler) getListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var id string
	if apiErr := parseRequiredSingleArgFromArray(args, &id); apiErr != nil {
		return nil, apiErr
	}
	detail, err := h.queries.GetListing(c.Request.Context(), id)
	if err != nil {
		return nil, h.apiErrorFrom("getListing", err)
	}
	return detail, nil
}

// listListings returns the full catalog, newest first. It takes no arguments.
func (h *JsonApiHandler) listListings(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	summaries, err := h.queries.ListListings(c.Request.Context(), cache.ViewAllListings)
	if err != nil {
		return nil, h.apiErrorFrom("listListings", err)
	}
	return summaries, nil
}

func (h *JsonApiHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, token, int(h.cfg.JwtTTL.Seconds()), "/", "", h.cfg.SessionCookieSecure, true)
}

// --- Argument helpers ---

// parseRequiredSingleArgFromArray decodes the first element of an 'arguments' array into targetVarPtr.
func parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	return parseArgsFromArray(rawArgPayload, targetVarPtr)
}

// parseArgsFromArray decodes the leading elements of an 'arguments' array into targets, in order.
func parseArgsFromArray(rawArgPayload json.RawMessage, targets ...interface{}) *ApiError {
	if rawArgPayload == nil {
		return NewApiError(fmt.Sprintf("Missing 'arguments' field; expected a JSON array with %d argument(s).", len(targets)))
	}

	var argArray []json.RawMessage
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) < len(targets) {
		return NewApiError(fmt.Sprintf("Invalid 'arguments': expected %d argument(s), got %d.", len(targets), len(argArray)))
	}

	for i, target := range targets {
		if err := json.Unmarshal(argArray[i], target); err != nil {
			return NewApiError(fmt.Sprintf("Invalid format for argument %d: unexpected structure.", i+1))
		}
	}
	return nil
}
