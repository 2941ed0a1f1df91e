package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/polybridge/internal/circuitbreaker"
	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/internal/tracker"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

// ExecutionQuerier is the read side of the execution engine.
type ExecutionQuerier interface {
	GetIntent(intentID string) (*types.TradeIntent, bool)
	GetExecutionStatus(executionID string) (*types.ExecutionRun, bool)
	GetStatusMessage(executionID string) (string, bool)
	GetEstimatedTimeToCompletion(executionID string) (estimator.TimeEstimate, bool)
	GetActiveExecutions() []*types.ExecutionRun
}

// SubscriptionLister lists active order-tracking subscriptions.
type SubscriptionLister interface {
	ActiveSubscriptions() []tracker.SubscriptionInfo
}

// BreakerStatus reports the circuit breaker state.
type BreakerStatus interface {
	GetStatus() circuitbreaker.Status
}

// APIHandler serves the read-only query endpoints.
type APIHandler struct {
	executions    ExecutionQuerier
	subscriptions SubscriptionLister
	breaker       BreakerStatus
	logger        *zap.Logger
}

// NewAPIHandler creates an API handler. Nil collaborators disable their routes.
func NewAPIHandler(executions ExecutionQuerier, subscriptions SubscriptionLister, breaker BreakerStatus, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		executions:    executions,
		subscriptions: subscriptions,
		breaker:       breaker,
		logger:        logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EstimateResponse is the dry-run fee and time projection for an amount.
type EstimateResponse struct {
	Amount        string                 `json:"amount"`
	Cost          types.CostEstimate     `json:"cost"`
	NetAmount     string                 `json:"netAmount"`
	EstimatedTime estimator.TimeEstimate `json:"estimatedTime"`
}

// ExecutionResponse is one run plus its human-readable status.
type ExecutionResponse struct {
	Run           *types.ExecutionRun    `json:"run"`
	Message       string                 `json:"message"`
	EstimatedTime estimator.TimeEstimate `json:"estimatedTime"`
}

// Routes mounts the API on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/estimate", h.HandleEstimate)
	if h.executions != nil {
		r.Get("/intents/{id}", h.HandleIntent)
		r.Get("/executions", h.HandleActiveExecutions)
		r.Get("/executions/{id}", h.HandleExecution)
	}
	if h.subscriptions != nil {
		r.Get("/subscriptions", h.HandleSubscriptions)
	}
	if h.breaker != nil {
		r.Get("/circuit-breaker", h.HandleCircuitBreaker)
	}
}

// HandleEstimate handles GET /api/estimate?amount=<usd>.
func (h *APIHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		h.writeError(w, "missing required query parameter: amount", http.StatusBadRequest)
		return
	}

	amount, err := estimator.ParseUSD(raw)
	if err != nil || amount == 0 {
		h.writeError(w, "amount must be a positive dollar value", http.StatusBadRequest)
		return
	}

	cost := estimator.EstimateCost(amount)
	h.writeJSON(w, http.StatusOK, EstimateResponse{
		Amount:        estimator.FormatUSD(amount),
		Cost:          cost,
		NetAmount:     estimator.FormatSignedUSD(cost.NetAmount),
		EstimatedTime: estimator.EstimateTimeToCompletion(types.PhasePending),
	})
}

// HandleIntent handles GET /api/intents/{id}.
func (h *APIHandler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	intent, ok := h.executions.GetIntent(id)
	if !ok {
		h.writeError(w, "intent not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, intent)
}

// HandleActiveExecutions handles GET /api/executions.
func (h *APIHandler) HandleActiveExecutions(w http.ResponseWriter, _ *http.Request) {
	runs := h.executions.GetActiveExecutions()
	if runs == nil {
		runs = []*types.ExecutionRun{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// HandleExecution handles GET /api/executions/{id}.
func (h *APIHandler) HandleExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := h.executions.GetExecutionStatus(id)
	if !ok {
		h.writeError(w, "execution not found", http.StatusNotFound)
		return
	}

	message, _ := h.executions.GetStatusMessage(id)
	eta, _ := h.executions.GetEstimatedTimeToCompletion(id)
	h.writeJSON(w, http.StatusOK, ExecutionResponse{Run: run, Message: message, EstimatedTime: eta})
}

// HandleSubscriptions handles GET /api/subscriptions.
func (h *APIHandler) HandleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := h.subscriptions.ActiveSubscriptions()
	if subs == nil {
		subs = []tracker.SubscriptionInfo{}
	}
	h.writeJSON(w, http.StatusOK, subs)
}

// HandleCircuitBreaker handles GET /api/circuit-breaker.
func (h *APIHandler) HandleCircuitBreaker(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.breaker.GetStatus())
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
