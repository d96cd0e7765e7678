package services

import (
	"fmt"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/models"
)

// NotificationService records reviewer-facing notifications in the database
// and optionally pushes them to external destinations via shoutrrr.
type NotificationService struct {
	DB         *gorm.DB
	NotifyURLs []string
}

func NewNotificationService(db *gorm.DB, notifyURLs []string) *NotificationService {
	return &NotificationService{DB: db, NotifyURLs: notifyURLs}
}

// Create stores an internal notification.
func (s *NotificationService) Create(nType models.NotificationType, title, message string) (*models.Notification, error) {
	notification := &models.Notification{
		Type:    nType,
		Title:   title,
		Message: message,
		Read:    false,
	}
	result := s.DB.Create(notification)
	return notification, result.Error
}

// List returns notifications, newest first.
func (s *NotificationService) List(unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	query := s.DB.Order("created_at desc")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	result := query.Find(&notifications)
	return notifications, result.Error
}

func (s *NotificationService) MarkAsRead(id string) error {
	return s.DB.Model(&models.Notification{}).Where("id = ?", id).Update("read", true).Error
}

func (s *NotificationService) MarkAllAsRead() error {
	return s.DB.Model(&models.Notification{}).Where("read = ?", false).Update("read", true).Error
}

// Notify stores an internal notification and fans it out to every configured
// shoutrrr URL. External send failures are logged, never propagated: a dead
// webhook must not affect the serving path or the evolution cycle.
func (s *NotificationService) Notify(nType models.NotificationType, title, message string) {
	if _, err := s.Create(nType, title, message); err != nil {
		logger.Log().WithError(err).Warn("failed to store notification")
	}

	for _, url := range s.NotifyURLs {
		msg := fmt.Sprintf("%s\n%s", title, message)
		if err := shoutrrr.Send(url, msg); err != nil {
			logger.Log().WithError(err).Warn("failed to send external notification")
		}
	}
}
