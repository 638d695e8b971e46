package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/deeplink"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
	"github.com/noah-isme/edupoint-api/pkg/qr"
)

type linkSigner interface {
	Sign(action deeplink.Action, studentID string) (string, time.Time, error)
	URL(action deeplink.Action, studentID, token string) string
	Parse(token string) (deeplink.Link, error)
}

type qrStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// QRCode is a rendered student deep link.
type QRCode struct {
	Action    deeplink.Action
	StudentID string
	URL       string
	Token     string
	ExpiresAt time.Time
	PNG       []byte
}

// ResolvedLink is what a scanner learns from a token before acting on it.
type ResolvedLink struct {
	Action      deeplink.Action `json:"action"`
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	ClassName   string          `json:"class_name"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// QRService issues signed student deep links and dispatches scanned ones
// to the activity recorder or the redemption state machine.
type QRService struct {
	signer      linkSigner
	students    qrStudentStore
	access      *AccessService
	activities  *ActivityService
	redemptions *RedemptionService
	imageSize   int
	logger      *zap.Logger
}

// NewQRService constructs a QRService.
func NewQRService(signer linkSigner, students qrStudentStore, access *AccessService, activities *ActivityService, redemptions *RedemptionService, imageSize int, logger *zap.Logger) *QRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRService{
		signer:      signer,
		students:    students,
		access:      access,
		activities:  activities,
		redemptions: redemptions,
		imageSize:   imageSize,
		logger:      logger,
	}
}

// Generate signs a link for the student and renders it as a PNG.
func (s *QRService) Generate(ctx context.Context, actor *models.JWTClaims, studentID string, action deeplink.Action) (*QRCode, error) {
	if err := s.access.Require(actor, CapGenerateQR); err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be addpoints or redeem")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	token, expiresAt, err := s.signer.Sign(action, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign link")
	}
	link := s.signer.URL(action, studentID, token)
	png, err := qr.PNG(link, s.imageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}
	return &QRCode{Action: action, StudentID: studentID, URL: link, Token: token, ExpiresAt: expiresAt, PNG: png}, nil
}

// Resolve verifies a token and names the student it points at.
func (s *QRService) Resolve(ctx context.Context, token string) (*ResolvedLink, error) {
	link, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, link.StudentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	return &ResolvedLink{
		Action:      link.Action,
		StudentID:   student.ID,
		StudentName: student.FullName,
		ClassName:   student.ClassName,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

// Redeem files a pending redemption for the student in a redeem link.
func (s *QRService) Redeem(ctx context.Context, token, rewardID string) (*models.Redemption, error) {
	link, err := s.expect(token, deeplink.ActionRedeem)
	if err != nil {
		return nil, err
	}
	return s.redemptions.RequestViaLink(ctx, link.StudentID, rewardID)
}

// AddPoints records an activity for the student in an addpoints link.
// The teacher is always the authenticated actor, never the link.
func (s *QRService) AddPoints(ctx context.Context, actor *models.JWTClaims, token string, req models.RecordActivityRequest) (*models.Activity, error) {
	if err := s.access.Require(actor, CapRecordActivity); err != nil {
		return nil, err
	}
	link, err := s.expect(token, deeplink.ActionAddPoints)
	if err != nil {
		return nil, err
	}
	req.StudentID = link.StudentID
	if actor.Role == models.RoleTeacher {
		req.TeacherID = actor.TeacherID
	}
	return s.activities.RecordActivity(ctx, actor, req)
}

func (s *QRService) expect(token string, action deeplink.Action) (deeplink.Link, error) {
	link, err := s.parse(token)
	if err != nil {
		return deeplink.Link{}, err
	}
	if link.Action != action {
		return deeplink.Link{}, appErrors.Clone(appErrors.ErrValidation, "link is for "+string(link.Action)+", not "+string(action))
	}
	return link, nil
}

func (s *QRService) parse(token string) (deeplink.Link, error) {
	link, err := s.signer.Parse(token)
	switch {
	case err == nil:
		return link, nil
	case errors.Is(err, deeplink.ErrExpired):
		return deeplink.Link{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "link expired")
	case errors.Is(err, deeplink.ErrSignature):
		s.logger.Warn("rejected forged deep link")
		return deeplink.Link{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid link signature")
	default:
		return deeplink.Link{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed link")
	}
}
