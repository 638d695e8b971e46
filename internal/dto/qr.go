package dto

import "github.com/noah-isme/edupoint-api/internal/models"

// QRTokenRequest carries a scanned deep-link token.
type QRTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// QRRedeemRequest asks for a reward for the student named by the token.
type QRRedeemRequest struct {
	Token    string `json:"token" binding:"required"`
	RewardID string `json:"reward_id" binding:"required"`
}

// QRAddPointsRequest records an activity for the student named by the token.
type QRAddPointsRequest struct {
	Token     string                  `json:"token" binding:"required"`
	TeacherID string                  `json:"teacher_id"`
	Category  models.ActivityCategory `json:"category"`
	Reason    string                  `json:"reason"`
	Points    int64                   `json:"points"`
}

// Activity converts the payload into the recorder request. The student comes from the token.
func (r QRAddPointsRequest) Activity() models.RecordActivityRequest {
	return models.RecordActivityRequest{
		TeacherID: r.TeacherID,
		Category:  r.Category,
		Reason:    r.Reason,
		Points:    r.Points,
	}
}
