package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTaskAssigned   = "task_assigned"
	NotificationDocumentReview = "document_review"
)

// Notify creates an unread in-app notification inside the caller's transaction
func Notify(tx *gorm.DB, userID, notificationType, title, message string, metadata map[string]any) (*models.Notification, error) {
	n := models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Title:   title,
		Message: message,
	}
	if len(metadata) > 0 {
		meta, err := models.NewJSON(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode notification metadata: %w", err)
		}
		n.Metadata = meta
	}

	if err := tx.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

// ListNotifications returns the user's notifications, newest first
func (e *Engine) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := e.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var list []models.Notification
	if err := query.Order("created_at desc").Order("id desc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkNotificationRead marks one of the user's notifications read
func (e *Engine) MarkNotificationRead(ctx context.Context, id uint64, userID string) (*models.Notification, error) {
	var n models.Notification
	err := quiet(e.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("notification %d", id)
		}
		return nil, fmt.Errorf("load notification: %w", err)
	}

	if !n.IsRead {
		if err := e.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("mark notification read: %w", err)
		}
		n.IsRead = true
	}
	return &n, nil
}

// MarkAllNotificationsRead marks every unread notification of the user read
func (e *Engine) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res := e.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
