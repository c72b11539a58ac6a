package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

var (
	deliveryHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/purchase_delivery.html"))
	deliveryText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/purchase_delivery.txt"))
)

// Rendered holds both bodies of a multipart email.
type Rendered struct {
	HTML string
	Text string
}

func RenderDelivery(msg DeliveryMessage) (Rendered, error) {
	var html, text bytes.Buffer
	if err := deliveryHTML.Execute(&html, msg); err != nil {
		return Rendered{}, fmt.Errorf("failed to render html template: %w", err)
	}
	if err := deliveryText.Execute(&text, msg); err != nil {
		return Rendered{}, fmt.Errorf("failed to render text template: %w", err)
	}
	return Rendered{HTML: html.String(), Text: text.String()}, nil
}
