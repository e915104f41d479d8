package gateway

import (
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
)

// AppsMsg is sent when the app list has been fetched
type AppsMsg struct {
	Apps  []models.App
	Error error
	Age   time.Duration // age of the last good list when Error is set
}

// DeploymentsMsg is sent when the deployments of an app have been fetched
type DeploymentsMsg struct {
	AppID       string
	Deployments []models.Deployment
	Error       error
}
