package worker

import (
	"github.com/spec-kit/task-management/internal/service"
)

// StartNotificationWorker registers task event handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
