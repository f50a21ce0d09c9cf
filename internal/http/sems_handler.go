package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goodwe-gateway/internal/sems"
	"goodwe-gateway/internal/service"
)

// SEMSHandler relaya las llamadas al portal SEMS para usuarios autenticados.
type SEMSHandler struct {
	logger *zap.Logger
	broker *service.UpstreamBroker
}

func NewSEMSHandler(logger *zap.Logger, broker *service.UpstreamBroker) *SEMSHandler {
	registerValidators()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SEMSHandler{logger: logger, broker: broker}
}

// Login maneja POST /api/goodwe/sems-login.
func (h *SEMSHandler) Login(c *gin.Context) {
	var req struct {
		Account string `json:"account" binding:"required,notblank"`
		Pwd     string `json:"pwd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid sems login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing required parameters"})
		return
	}

	token, err := h.broker.Authenticate(c.Request.Context(), req.Account, req.Pwd)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"semsToken": token})
		return
	}
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing required parameters"})
		return
	}

	semsErr, ok := sems.AsError(err)
	if !ok {
		h.logger.Error("sems login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "error while logging in to GoodWe"})
		return
	}
	switch semsErr.Kind {
	case sems.KindUnreachable:
		h.logger.Warn("sems unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "could not connect to the GoodWe API"})
	case sems.KindRejected, sems.KindMalformedResponse:
		h.logger.Info("sems login rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"message": "GoodWe login failed",
			"details": upstreamDetails(semsErr.Body),
		})
	default:
		h.logger.Error("sems login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "error while logging in to GoodWe"})
	}
}

// Data maneja POST /api/goodwe/data y devuelve la respuesta del portal sin tocar.
func (h *SEMSHandler) Data(c *gin.Context) {
	var req struct {
		SEMSToken string `json:"semsToken"`
		InvID     string `json:"invId"`
		Column    string `json:"column"`
		Date      string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid sems data request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing required parameters"})
		return
	}

	claims, _ := GetAuthClaims(c)
	payload, err := h.broker.FetchData(c.Request.Context(), claims.UserID, service.FetchDataInput{
		Token:    req.SEMSToken,
		DeviceID: req.InvID,
		Column:   req.Column,
		Date:     req.Date,
	})
	if err != nil {
		h.relayError(c, "sems data", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// StationStatus maneja GET /api/goodwe/powerstation/:id/status.
func (h *SEMSHandler) StationStatus(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	payload, err := h.broker.FetchStationStatus(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		h.relayError(c, "sems station status", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *SEMSHandler) relayError(c *gin.Context, op string, err error) {
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing required parameters"})
		return
	}
	semsErr, ok := sems.AsError(err)
	if ok && semsErr.Kind == sems.KindRejected && semsErr.Status != 0 {
		h.logger.Info(op+" rejected", zap.Int("status", semsErr.Status))
		c.JSON(semsErr.Status, gin.H{
			"message": "GoodWe API rejected the request",
			"details": upstreamDetails(semsErr.Body),
		})
		return
	}
	if ok && semsErr.Kind == sems.KindUnreachable {
		h.logger.Warn(op+" unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "could not connect to the GoodWe API"})
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error while processing the request"})
}

// upstreamDetails devuelve el cuerpo del portal como JSON si lo es, o como texto.
func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
