package models

import (
	"os"
	"time"
)

// TransportKind selects how a receive-only log stream is opened
type TransportKind string

const (
	TransportSSE       TransportKind = "sse"       // chunked HTTP with data: lines
	TransportWebSocket TransportKind = "websocket" // one JSON payload per message
)

// ServerProfile represents a configured Rivetr server
type ServerProfile struct {
	Name     string   `yaml:"name" json:"name"`
	URL      string   `yaml:"url" json:"url"`                                 // Base URL, e.g. https://rivetr.example.com
	Token    string   `yaml:"token,omitempty" json:"token,omitempty"`         // Bearer token (prefer token_env)
	TokenEnv string   `yaml:"token_env,omitempty" json:"token_env,omitempty"` // Environment variable holding the token
	Team     string   `yaml:"team,omitempty" json:"team,omitempty"`           // Default team id
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// AppStatus is the coarse runtime status of an application
type AppStatus string

const (
	AppRunning  AppStatus = "running"
	AppStopped  AppStatus = "stopped"
	AppFailed   AppStatus = "failed"
	AppBuilding AppStatus = "building"
	AppUnknown  AppStatus = ""
)

// App mirrors the backend application DTO
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	GitURL      string    `json:"git_url,omitempty"`
	Branch      string    `json:"branch,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Status      AppStatus `json:"status,omitempty"`
	Environment string    `json:"environment,omitempty"`
	TeamID      string    `json:"team_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeploymentStatus is the lifecycle status of a deployment
type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentCloning   DeploymentStatus = "cloning"
	DeploymentBuilding  DeploymentStatus = "building"
	DeploymentStarting  DeploymentStatus = "starting"
	DeploymentDeploying DeploymentStatus = "deploying"
	DeploymentRunning   DeploymentStatus = "running"
	DeploymentFailed    DeploymentStatus = "failed"
	DeploymentStopped   DeploymentStatus = "stopped"
	DeploymentReplaced  DeploymentStatus = "replaced"
)

// Deployment mirrors the backend deployment DTO
type Deployment struct {
	ID           string           `json:"id"`
	AppID        string           `json:"app_id"`
	Status       DeploymentStatus `json:"status"`
	CommitSHA    string           `json:"commit_sha,omitempty"`
	CommitMsg    string           `json:"commit_message,omitempty"`
	ContainerID  string           `json:"container_id,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// ResolvedToken returns the token, reading TokenEnv when Token is empty
func (p ServerProfile) ResolvedToken() string {
	if p.Token != "" {
		return p.Token
	}
	if p.TokenEnv != "" {
		return os.Getenv(p.TokenEnv)
	}
	return ""
}
