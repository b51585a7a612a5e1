package handlers

import (
	"errors"
	"net/http"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK   = "ok"
	statusSent = "sent"

	errNotConnected    = "appliance not connected"
	errGetConfig       = "failed to load config"
	errGetStatus       = "failed to load status"
	errCommand         = "failed to execute command"
	errRawCommand      = "failed to send raw command"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// applianceError maps appliance and command errors onto HTTP responses.
func (h *Handler) applianceError(c *gin.Context, fallback, logKey string, err error, kv ...interface{}) {
	switch {
	case errors.Is(err, appliance.ErrNotConnected):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errNotConnected, logKey, err, kv...)
	case errors.Is(err, service.ErrServiceUnavailable),
		errors.Is(err, service.ErrInvalidCommand),
		errors.Is(err, service.ErrInvalidValue),
		errors.Is(err, service.ErrEmptyPayload):
		if h.log != nil {
			h.log.Infow(logKey, append([]interface{}{"err", err}, kv...)...)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, fallback, logKey, err, kv...)
	}
}

// CommandRequest is an exported model for Swagger docs of the command payload.
type CommandRequest struct {
	// Service name, or "system" for system-level fields
	Service string `json:"service" example:"gasHeating"`
	// Field name within the service
	Field string `json:"field" example:"setTemp"`
	// Semantic value, e.g. "on", "heating" or "22"
	Value string `json:"value" example:"22"`
}

// CommandResponse reports whether the appliance confirmed the change.
type CommandResponse struct {
	Service   string `json:"service"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Confirmed bool   `json:"confirmed"`
}

type rawRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// StatusResponse is the latest raw appliance state.
type StatusResponse struct {
	State      string              `json:"state"`
	Sequence   int                 `json:"sequence"`
	ObservedAt time.Time           `json:"observed_at"`
	Tree       appliance.StateTree `json:"tree"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.services != nil && h.services.Appliance != nil {
		resp["appliance"] = h.services.State().String()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Get appliance configuration
// @Description  System fields plus one entry per installed service, decoded through the field schema.
// @Tags         appliance
// @Produce      json
// @Success      200  {object}  map[string]map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/appliance/config [get]
// @Security     BearerAuth
func (h *Handler) getConfig(c *gin.Context) {
	cfg, err := h.services.Config()
	if err != nil {
		h.applianceError(c, errGetConfig, "appliance_get_config_failed", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// @Summary      Get raw appliance status
// @Tags         appliance
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/appliance/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	snap, err := h.services.Status()
	if err != nil {
		h.applianceError(c, errGetStatus, "appliance_get_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		State:      h.services.State().String(),
		Sequence:   snap.Sequence,
		ObservedAt: snap.ObservedAt,
		Tree:       snap.Tree,
	})
}

// @Summary      Set a field
// @Description  Validates, sends and waits for the appliance to confirm. An unconfirmed command returns 200 with confirmed=false.
// @Tags         appliance
// @Accept       json
// @Produce      json
// @Param        body  body   CommandRequest  true  "Command payload"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/appliance/command [post]
// @Security     BearerAuth
func (h *Handler) postCommand(c *gin.Context) {
	var req service.CommandRequest
	if !h.bindJSON(c, &req, "appliance_command_bad_body") {
		return
	}
	ok, err := h.services.Command(c.Request.Context(), req)
	if err != nil {
		h.applianceError(c, errCommand, "appliance_command_failed", err, "command", req.String())
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Service: req.Service, Field: req.Field, Value: req.Value, Confirmed: ok})
}

// @Summary      Send a raw payload
// @Description  The payload is framed and sent verbatim, without validation or confirmation.
// @Tags         appliance
// @Accept       json
// @Produce      json
// @Param        body  body   rawRequest  true  "Raw JSON payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/appliance/raw [post]
// @Security     BearerAuth
func (h *Handler) postRaw(c *gin.Context) {
	var req rawRequest
	if !h.bindJSON(c, &req, "appliance_raw_bad_body") {
		return
	}
	if err := h.services.SendRaw(c.Request.Context(), req.Payload); err != nil {
		h.applianceError(c, errRawCommand, "appliance_raw_command_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent})
}
