package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/gorm"
)

// ErrUserNotFound rejects exports for unknown users.
var ErrUserNotFound = errors.New("user not found")

// UserExport is a data-portability bundle of everything Tier 1 still holds
// for one user. Message and summary contents are decrypted before export.
type UserExport struct {
	UserID      uuid.UUID              `json:"user_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Chats       []ExportChat           `json:"chats"`
	Bloodwork   []ExportBloodwork      `json:"bloodwork"`
	Activities  []ExportActivity       `json:"activities"`
	Consents    []models.ConsentRecord `json:"consents"`
}

type ExportChat struct {
	ChatID   uuid.UUID       `json:"chat_id"`
	Language string          `json:"language"`
	Messages []ExportMessage `json:"messages"`
}

type ExportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ExportBloodwork struct {
	Markers     []models.BloodMarker `json:"markers"`
	Summary     string               `json:"summary"`
	CyclePhase  string               `json:"cycle_phase,omitempty"`
	CollectedAt time.Time            `json:"collected_at"`
}

type ExportActivity struct {
	Type      string    `json:"type"`
	Rating    *int      `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportUserData assembles the portability bundle for one user.
func (s *Service) ExportUserData(userID uuid.UUID, actorID string) (*UserExport, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	export := &UserExport{UserID: userID, GeneratedAt: time.Now().UTC()}

	var chats []models.Chat
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	for _, chat := range chats {
		var messages []models.ChatMessage
		if err := s.db.Where("chat_id = ?", chat.ID).Order("created_at ASC").Find(&messages).Error; err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		ec := ExportChat{ChatID: chat.ID, Language: chat.Language}
		for _, m := range messages {
			ec.Messages = append(ec.Messages, ExportMessage{
				Role:      m.Role,
				Content:   s.messageText(m),
				CreatedAt: m.CreatedAt,
			})
		}
		export.Chats = append(export.Chats, ec)
	}

	var reports []models.BloodworkReport
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("load bloodwork: %w", err)
	}
	for _, report := range reports {
		var markers []models.BloodMarker
		if len(report.Markers) > 0 {
			if err := json.Unmarshal(report.Markers, &markers); err != nil {
				slog.Warn("skipping malformed markers in export", "report_id", report.ID, "error", err)
			}
		}
		export.Bloodwork = append(export.Bloodwork, ExportBloodwork{
			Markers:     markers,
			Summary:     s.summaryText(report),
			CyclePhase:  report.CyclePhase,
			CollectedAt: report.CollectedAt,
		})
	}

	var activities []models.UserActivity
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	for _, a := range activities {
		export.Activities = append(export.Activities, ExportActivity{
			Type:      a.Type,
			Rating:    a.Rating,
			Comment:   a.Comment,
			CreatedAt: a.CreatedAt,
		})
	}

	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&export.Consents).Error; err != nil {
		return nil, fmt.Errorf("load consents: %w", err)
	}

	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionExportRequested,
		Tier:      "tier1",
		ActorType: "user",
		ActorID:   actorID,
		TargetID:  userID.String(),
		Details:   map[string]any{"chats": len(export.Chats), "bloodwork": len(export.Bloodwork)},
	}); err != nil {
		slog.Error("failed to audit export", "job", "export", "error", err)
	}

	return export, nil
}
