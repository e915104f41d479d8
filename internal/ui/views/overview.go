package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/ui/styles"
)

const maxDeployments = 8

// OverviewView displays the overview tab content
type OverviewView struct {
	width  int
	height int

	app         *models.App
	deployments []models.Deployment
	err         error
}

// NewOverviewView creates a new overview view
func NewOverviewView() *OverviewView {
	return &OverviewView{}
}

// SetSize sets the view dimensions
func (v *OverviewView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// SetData updates the view data
func (v *OverviewView) SetData(app *models.App, deployments []models.Deployment, err error) {
	v.app = app
	v.deployments = deployments
	v.err = err
}

// View renders the overview
func (v *OverviewView) View() string {
	if v.app == nil {
		return styles.Muted.Render("Select an app")
	}

	app := v.app
	lines := []string{
		styles.HelpSection.Render("Application"),
		label("Name", app.Name),
		label("Status", AppStatus(app.Status)),
		label("Branch", app.Branch),
	}
	if app.Domain != "" {
		lines = append(lines, label("Domain", app.Domain))
	}
	if app.GitURL != "" {
		lines = append(lines, label("Repo", truncate(app.GitURL, v.width-12)))
	}
	if app.Environment != "" {
		lines = append(lines, label("Env", app.Environment))
	}
	lines = append(lines, "", styles.HelpSection.Render("Deployments"))

	switch {
	case v.err != nil:
		lines = append(lines, styles.LogError.Render("  "+v.err.Error()))
	case len(v.deployments) == 0:
		lines = append(lines, styles.Muted.Render("  No deployments yet"))
	default:
		for i, d := range v.deployments {
			if i == maxDeployments {
				lines = append(lines, styles.Muted.Render(fmt.Sprintf("  ... %d more", len(v.deployments)-maxDeployments)))
				break
			}
			lines = append(lines, deploymentLine(d, v.width))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func label(k, val string) string {
	if val == "" {
		val = styles.Muted.Render("-")
	}
	return "  " + styles.LabelKey.Render(fmt.Sprintf("%-8s", k)) + val
}

func deploymentLine(d models.Deployment, width int) string {
	sha := d.CommitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	line := fmt.Sprintf("  %s %s %s", DeploymentStatus(d.Status), styles.Muted.Render(sha), truncate(d.CommitMsg, width-30))
	if d.ErrorMessage != "" {
		line += " " + styles.LogError.Render(d.ErrorMessage)
	}
	return line
}

// AppStatus renders an app status with its color
func AppStatus(s models.AppStatus) string {
	switch s {
	case models.AppRunning:
		return styles.StatusOK.Render(string(s))
	case models.AppFailed:
		return styles.StatusDown.Render(string(s))
	case models.AppBuilding:
		return styles.StatusDegraded.Render(string(s))
	case models.AppUnknown:
		return styles.Muted.Render("unknown")
	default:
		return styles.Muted.Render(string(s))
	}
}

// DeploymentStatus renders a fixed-width deployment status
func DeploymentStatus(s models.DeploymentStatus) string {
	text := fmt.Sprintf("%-9s", s)
	switch s {
	case models.DeploymentRunning:
		return styles.StatusOK.Render(text)
	case models.DeploymentFailed:
		return styles.StatusDown.Render(text)
	case models.DeploymentPending, models.DeploymentCloning, models.DeploymentBuilding,
		models.DeploymentStarting, models.DeploymentDeploying:
		return styles.StatusDegraded.Render(text)
	default:
		return styles.Muted.Render(text)
	}
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// ShortError trims multi-line errors to their first line
func ShortError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
