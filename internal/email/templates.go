package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type orderNotificationEmailData struct {
	baseEmailData
	RecipientName string
	OrderTitle    string
	Body          string
}

func renderOrderNotification(m OrderMessage) (string, error) {
	data := orderNotificationEmailData{
		baseEmailData: baseEmailData{
			Title:   m.Subject,
			Heading: m.Heading,
		},
		RecipientName: m.RecipientName,
		OrderTitle:    m.OrderTitle,
		Body:          m.Body,
	}
	if m.OrderURL != "" {
		data.CTALabel = "Open order"
		data.CTAURL = m.OrderURL
	}
	return renderEmailTemplate("order_notification.html", data)
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
