package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// TaskAssignedData fills the task assignment template
type TaskAssignedData struct {
	UserName    string
	ProjectName string
	TaskLabel   string
	Category    string
	Description string
	DueDate     string
	ProjectURL  string
}

// ReviewData fills the document review template
type ReviewData struct {
	UserName    string
	ProjectName string
	FileName    string
	Version     int
	OldStatus   string
	NewStatus   string
	Comments    string
	ProjectURL  string
}

var (
	taskAssignedTmpl = template.Must(template.New("task").Parse(taskAssignedTemplate))
	reviewTmpl       = template.Must(template.New("review").Parse(reviewTemplate))
)

// TaskAssigned renders the message sent to a stakeholder for a new task
func TaskAssigned(to string, data TaskAssignedData) (Message, error) {
	html, err := render(taskAssignedTmpl, data)
	if err != nil {
		return Message{}, fmt.Errorf("render task template: %w", err)
	}

	text := fmt.Sprintf("You have a new task on %s: %s.\n\n%s\n", data.ProjectName, data.TaskLabel, data.Description)
	if data.DueDate != "" {
		text += "Due: " + data.DueDate + "\n"
	}
	if data.ProjectURL != "" {
		text += "\n" + data.ProjectURL + "\n"
	}

	return Message{
		To:       []string{to},
		Subject:  fmt.Sprintf("New task on %s: %s", data.ProjectName, data.TaskLabel),
		TextBody: text,
		HTMLBody: html,
	}, nil
}

// DocumentReviewed renders the message sent to an uploader on a status change
func DocumentReviewed(to string, data ReviewData) (Message, error) {
	html, err := render(reviewTmpl, data)
	if err != nil {
		return Message{}, fmt.Errorf("render review template: %w", err)
	}

	text := fmt.Sprintf("%s v%d on %s is now %s (was %s).\n", data.FileName, data.Version, data.ProjectName, data.NewStatus, data.OldStatus)
	if data.Comments != "" {
		text += "\n" + data.Comments + "\n"
	}

	return Message{
		To:       []string{to},
		Subject:  fmt.Sprintf("%s %s", data.FileName, data.NewStatus),
		TextBody: text,
		HTMLBody: html,
	}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const taskAssignedTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hello{{if .UserName}} {{.UserName}}{{end}},</p>
  <p>You have been assigned a task on <strong>{{.ProjectName}}</strong>.</p>
  <table>
    <tr><td>Task</td><td>{{.TaskLabel}}</td></tr>
    {{if .Category}}<tr><td>Category</td><td>{{.Category}}</td></tr>{{end}}
    {{if .DueDate}}<tr><td>Due</td><td>{{.DueDate}}</td></tr>{{end}}
  </table>
  <p>{{.Description}}</p>
  {{if .ProjectURL}}<p><a href="{{.ProjectURL}}">Open the project</a></p>{{end}}
</body>
</html>`

const reviewTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hello{{if .UserName}} {{.UserName}}{{end}},</p>
  <p><strong>{{.FileName}}</strong> version {{.Version}} on <strong>{{.ProjectName}}</strong>
  moved from {{.OldStatus}} to <strong>{{.NewStatus}}</strong>.</p>
  {{if .Comments}}<pre>{{.Comments}}</pre>{{end}}
  {{if .ProjectURL}}<p><a href="{{.ProjectURL}}">Open the project</a></p>{{end}}
</body>
</html>`
