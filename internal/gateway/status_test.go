package gateway

import (
	"testing"
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestIsActive(t *testing.T) {
	t.Run("Should treat in-progress statuses as active", func(t *testing.T) {
		for _, s := range []models.DeploymentStatus{"pending", "cloning", "building", "starting", "deploying"} {
			assert.True(t, IsActive(s), s)
		}
		for _, s := range []models.DeploymentStatus{"running", "failed", "stopped", "replaced", ""} {
			assert.False(t, IsActive(s), s)
		}
	})
}

func TestRefreshInterval(t *testing.T) {
	base, active := 5*time.Second, 2*time.Second

	t.Run("Should poll faster while a deployment is active", func(t *testing.T) {
		deps := []models.Deployment{{Status: models.DeploymentRunning}, {Status: models.DeploymentBuilding}}
		assert.Equal(t, active, RefreshInterval(deps, base, active))
	})

	t.Run("Should use the base interval otherwise", func(t *testing.T) {
		deps := []models.Deployment{{Status: models.DeploymentRunning}, {Status: models.DeploymentFailed}}
		assert.Equal(t, base, RefreshInterval(deps, base, active))
		assert.Equal(t, base, RefreshInterval(nil, base, active))
	})

	t.Run("Should pick the newest active deployment", func(t *testing.T) {
		deps := []models.Deployment{{ID: "d3", Status: models.DeploymentRunning}, {ID: "d2", Status: models.DeploymentCloning}, {ID: "d1", Status: models.DeploymentPending}}
		d, ok := LatestActive(deps)
		assert.True(t, ok)
		assert.Equal(t, "d2", d.ID)
	})
}
