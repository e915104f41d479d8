package gateway

import (
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
)

// IsActive reports whether a deployment is still in progress
func IsActive(status models.DeploymentStatus) bool {
	switch status {
	case models.DeploymentPending,
		models.DeploymentCloning,
		models.DeploymentBuilding,
		models.DeploymentStarting,
		models.DeploymentDeploying:
		return true
	default:
		return false
	}
}

// RefreshInterval returns active while any deployment is in progress and
// base otherwise
func RefreshInterval(deployments []models.Deployment, base, active time.Duration) time.Duration {
	for _, d := range deployments {
		if IsActive(d.Status) {
			return active
		}
	}
	return base
}

// LatestActive returns the newest in-progress deployment, if any. Deployments
// are listed newest first.
func LatestActive(deployments []models.Deployment) (models.Deployment, bool) {
	for _, d := range deployments {
		if IsActive(d.Status) {
			return d, true
		}
	}
	return models.Deployment{}, false
}
