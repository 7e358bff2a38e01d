package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/pkg/mailer"
)

// DownloadLink is one purchasable the buyer can fetch from their receipt.
type DownloadLink struct {
	ProductName  string
	URL          string
	ExpiresAt    time.Time
	MaxDownloads int
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for your purchase. Order <strong>{{.OrderNumber}}</strong> ({{.Total}} {{.Currency}}) is paid.</p>
{{if .Links}}<p>Your downloads:</p>
<ul>
{{range .Links}}<li><a href="{{.URL}}">{{.ProductName}}</a> &mdash; up to {{.MaxDownloads}} downloads, available until {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}</li>
{{end}}</ul>
<p>Keep this email: the links above are your access to the files.</p>{{end}}
<p>{{.StoreName}}</p>`))

var failureTemplate = template.Must(template.New("failure").Parse(`<p>Hi {{.Name}},</p>
<p>We could not complete the payment for order <strong>{{.OrderNumber}}</strong>{{if .Reason}} ({{.Reason}}){{end}}.</p>
<p>No charge was made. You can retry the purchase at any time.</p>
<p>{{.StoreName}}</p>`))

func buildOrderPaidEmail(storeName string, event orders.PaidEvent, links []DownloadLink) (mailer.Message, error) {
	data := struct {
		Name        string
		OrderNumber string
		Total       string
		Currency    string
		Links       []DownloadLink
		StoreName   string
	}{
		Name:        recipientName(event.CustomerName),
		OrderNumber: event.OrderNumber,
		Total:       event.Total.StringFixed(2),
		Currency:    event.Currency,
		Links:       links,
		StoreName:   storeName,
	}

	var html bytes.Buffer
	if err := receiptTemplate.Execute(&html, data); err != nil {
		return mailer.Message{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThanks for your purchase. Order %s (%s %s) is paid.\n",
		data.Name, data.OrderNumber, data.Total, data.Currency)
	if len(links) > 0 {
		text.WriteString("\nYour downloads:\n")
		for _, link := range links {
			fmt.Fprintf(&text, "- %s: %s (up to %d downloads, until %s)\n",
				link.ProductName, link.URL, link.MaxDownloads, link.ExpiresAt.Format("Jan 2, 2006 15:04 MST"))
		}
	}
	fmt.Fprintf(&text, "\n%s\n", storeName)

	return mailer.Message{
		ToEmail:  event.CustomerEmail,
		ToName:   recipientName(event.CustomerName),
		Subject:  fmt.Sprintf("Your order %s is confirmed", event.OrderNumber),
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}

func buildOrderFailedEmail(storeName string, event orders.FailedEvent) (mailer.Message, error) {
	data := struct {
		Name        string
		OrderNumber string
		Reason      string
		StoreName   string
	}{
		Name:        "there",
		OrderNumber: event.OrderNumber,
		Reason:      event.Reason,
		StoreName:   storeName,
	}

	var html bytes.Buffer
	if err := failureTemplate.Execute(&html, data); err != nil {
		return mailer.Message{}, err
	}

	text := fmt.Sprintf("Hi there,\n\nWe could not complete the payment for order %s", event.OrderNumber)
	if event.Reason != "" {
		text += fmt.Sprintf(" (%s)", event.Reason)
	}
	text += fmt.Sprintf(".\nNo charge was made. You can retry the purchase at any time.\n\n%s\n", storeName)

	return mailer.Message{
		ToEmail:  event.CustomerEmail,
		Subject:  fmt.Sprintf("Payment for order %s failed", event.OrderNumber),
		HTMLBody: html.String(),
		TextBody: text,
	}, nil
}

func recipientName(name *string) string {
	if name != nil && strings.TrimSpace(*name) != "" {
		return strings.TrimSpace(*name)
	}
	return "there"
}
