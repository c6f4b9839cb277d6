package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var reminderHTML = template.Must(template.New("reminder").Parse(`<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>Daily Moving Jobs Report</h2>
    <p>You have <strong>{{.Count}} jobs</strong> scheduled for today.</p>
    <p>Please fill out the revenue report:</p>
    <p style="margin: 20px 0;">
      <a href="{{.Link}}" style="background: #27ae60; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">Open Report Form</a>
    </p>
    <p style="color: #666; font-size: 12px;">Link: <a href="{{.Link}}">{{.Link}}</a></p>
  </body>
</html>
`))

// Subject is the reminder subject line for count jobs.
func Subject(count int) string {
	return fmt.Sprintf("ACTION REQUIRED: Daily Job Report - %d Jobs", count)
}

func reminderBodies(count int, link string) (string, string, error) {
	var html bytes.Buffer
	if err := reminderHTML.Execute(&html, struct {
		Count int
		Link  string
	}{count, link}); err != nil {
		return "", "", fmt.Errorf("render reminder: %w", err)
	}
	text := fmt.Sprintf("Daily Job Report - %d Jobs\n\nPlease fill out the report: %s\n", count, link)
	return text, html.String(), nil
}
