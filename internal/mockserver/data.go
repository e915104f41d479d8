package mockserver

import (
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
)

var runtimeLines = []struct {
	stream  string
	message string
}{
	{"stdout", "Server listening on :3000"},
	{"stdout", "GET /healthz 200 1ms"},
	{"stdout", "GET / 200 14ms"},
	{"stdout", "GET /api/items 200 32ms"},
	{"stdout", "POST /api/items 201 48ms"},
	{"stderr", "warn: slow query took 812ms"},
	{"stdout", "cache hit ratio 0.93"},
	{"stderr", "error: upstream timeout (retrying...)"},
	{"stdout", "upstream connection restored"},
	{"stdout", "worker 2 processed 120 jobs"},
}

var demoBuildSteps = []string{
	"Cloning repository",
	"Checked out main at 3f2c1ab",
	"Step 1/6 : FROM node:20-alpine",
	"Step 2/6 : WORKDIR /app",
	"Step 3/6 : COPY package*.json ./",
	"Step 4/6 : RUN npm ci",
	"WARN deprecated package found: left-pad",
	"Step 5/6 : COPY . .",
	"Step 6/6 : CMD [\"npm\", \"start\"]",
	"Image built",
	"Starting container",
	"Health check passed",
}

// DemoApps returns the apps served by the mock backend
func DemoApps() []models.App {
	created := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return []models.App{
		{ID: "app-web", Name: "web", GitURL: "https://github.com/acme/web", Branch: "main", Domain: "web.acme.test", Status: models.AppRunning, Environment: "production", TeamID: "team-acme", CreatedAt: created},
		{ID: "app-api", Name: "api", GitURL: "https://github.com/acme/api", Branch: "main", Domain: "api.acme.test", Status: models.AppBuilding, Environment: "production", TeamID: "team-acme", CreatedAt: created},
		{ID: "app-worker", Name: "worker", GitURL: "https://github.com/acme/worker", Branch: "develop", Status: models.AppStopped, Environment: "staging", TeamID: "team-acme", CreatedAt: created},
		{ID: "app-blog", Name: "blog", GitURL: "https://github.com/solo/blog", Branch: "main", Domain: "blog.solo.test", Status: models.AppRunning, Environment: "production", TeamID: "team-solo", CreatedAt: created},
	}
}

// DemoDeployments returns deployments keyed by app id, newest first
func DemoDeployments() map[string][]models.Deployment {
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Minute)
	return map[string][]models.Deployment{
		"app-web": {
			{ID: "dep-web-2", AppID: "app-web", Status: models.DeploymentRunning, CommitSHA: "3f2c1ab", CommitMsg: "Add pricing page", ContainerID: "rivetr-app-web", StartedAt: started, FinishedAt: &finished},
			{ID: "dep-web-1", AppID: "app-web", Status: models.DeploymentReplaced, CommitSHA: "9a8b7c6", CommitMsg: "Initial commit", StartedAt: started.Add(-24 * time.Hour)},
		},
		"app-api": {
			{ID: "dep-api-3", AppID: "app-api", Status: models.DeploymentBuilding, CommitSHA: "c0ffee1", CommitMsg: "Bump dependencies", StartedAt: started},
			{ID: "dep-api-2", AppID: "app-api", Status: models.DeploymentFailed, CommitSHA: "deadbee", CommitMsg: "Broken migration", ErrorMessage: "health check failed", StartedAt: started.Add(-time.Hour)},
		},
		"app-worker": {},
	}
}
