package notify

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/app/models"
	"github.com/craftmatch/CraftMatch/internal/pkg/cache"
)

// Dispatcher delivers case lifecycle notifications. Dispatch is
// fire-and-forget: delivery failures are logged and never bubble into the
// core transitions that triggered them.
type Dispatcher interface {
	Dispatch(userID uint, notificationType, content string, caseID uint)
}

// Event is the pub/sub payload published for connected clients.
type Event struct {
	UserID  uint   `json:"user_id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	CaseID  uint   `json:"case_id"`
}

// dispatcher stores a notification row and publishes the event to the
// user's redis channel for live delivery.
type dispatcher struct {
	db *gorm.DB
}

// NewDispatcher creates the default dispatcher over the given DB handle.
func NewDispatcher(db *gorm.DB) Dispatcher {
	return &dispatcher{db: db}
}

func (d *dispatcher) Dispatch(userID uint, notificationType, content string, caseID uint) {
	if userID == 0 {
		return
	}

	if err := models.CreateNotification(d.db, userID, notificationType, content, caseID); err != nil {
		log.Errorf("[Notify] failed to store %s notification for user %d: %v", notificationType, userID, err)
	}

	event := Event{UserID: userID, Type: notificationType, Content: content, CaseID: caseID}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Notify] failed to encode %s event for user %d: %v", notificationType, userID, err)
		return
	}
	if err := cache.Publish(channelFor(userID), payload); err != nil {
		log.Warnf("[Notify] failed to publish %s event for user %d: %v", notificationType, userID, err)
	}
}

func channelFor(userID uint) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// Noop drops all notifications; used by tests and tooling.
type Noop struct{}

func (Noop) Dispatch(userID uint, notificationType, content string, caseID uint) {}
