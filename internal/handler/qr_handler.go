package handler

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/dto"
	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/service"
	"github.com/noah-isme/edupoint-api/pkg/deeplink"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type qrService interface {
	Generate(ctx context.Context, actor *models.JWTClaims, studentID string, action deeplink.Action) (*service.QRCode, error)
	Resolve(ctx context.Context, token string) (*service.ResolvedLink, error)
	Redeem(ctx context.Context, token, rewardID string) (*models.Redemption, error)
	AddPoints(ctx context.Context, actor *models.JWTClaims, token string, req models.RecordActivityRequest) (*models.Activity, error)
}

// QRHandler issues and consumes student deep-link codes.
type QRHandler struct {
	qr qrService
}

// NewQRHandler constructs QRHandler.
func NewQRHandler(qr qrService) *QRHandler {
	return &QRHandler{qr: qr}
}

// Generate godoc
// @Summary Student QR code
// @Description Signed deep link rendered as PNG. Use format=json for the link and a base64 image.
// @Tags QR
// @Produce png
// @Produce json
// @Param id path string true "Student ID"
// @Param action query string false "addpoints or redeem" default(redeem)
// @Param format query string false "png or json" default(png)
// @Success 200 {file} binary
// @Router /students/{id}/qr [get]
func (h *QRHandler) Generate(c *gin.Context) {
	action := deeplink.Action(c.DefaultQuery("action", string(deeplink.ActionRedeem)))
	code, err := h.qr.Generate(c.Request.Context(), claimsFromContext(c), c.Param("id"), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "json") {
		response.OK(c, gin.H{
			"action":     code.Action,
			"student_id": code.StudentID,
			"url":        code.URL,
			"expires_at": code.ExpiresAt,
			"png_base64": base64.StdEncoding.EncodeToString(code.PNG),
		})
		return
	}
	response.Attachment(c, "image/png", "qr-"+string(code.Action)+"-"+code.StudentID+".png", code.PNG)
}

// Resolve godoc
// @Summary Resolve a scanned link
// @Tags QR
// @Accept json
// @Produce json
// @Param payload body dto.QRTokenRequest true "Token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /qr/resolve [post]
func (h *QRHandler) Resolve(c *gin.Context) {
	var req dto.QRTokenRequest
	if !bindJSON(c, &req, "token required") {
		return
	}
	link, err := h.qr.Resolve(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Redeem godoc
// @Summary Request a reward from a redeem link
// @Tags QR
// @Accept json
// @Produce json
// @Param payload body dto.QRRedeemRequest true "Token and reward"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /qr/redeem [post]
func (h *QRHandler) Redeem(c *gin.Context) {
	var req dto.QRRedeemRequest
	if !bindJSON(c, &req, "token and reward_id required") {
		return
	}
	redemption, err := h.qr.Redeem(c.Request.Context(), req.Token, req.RewardID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, redemption)
}

// AddPoints godoc
// @Summary Credit points from an addpoints link
// @Tags QR
// @Accept json
// @Produce json
// @Param payload body dto.QRAddPointsRequest true "Token and activity"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /qr/addpoints [post]
func (h *QRHandler) AddPoints(c *gin.Context) {
	var req dto.QRAddPointsRequest
	if !bindJSON(c, &req, "invalid add points payload") {
		return
	}
	activity, err := h.qr.AddPoints(c.Request.Context(), claimsFromContext(c), req.Token, req.Activity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}
