package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// EmailNotifier шлет письма через HTTP API почтового сервиса.
// Без API-ключа отправка выключена - уведомления просто пропускаются.
type EmailNotifier struct {
	client *resty.Client
	apiURL string
	apiKey string
	from   string
}

func NewEmailNotifier(apiURL, apiKey, from string) *EmailNotifier {
	return &EmailNotifier{
		client: resty.New(),
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
	}
}

type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, html string) error {
	if n.apiKey == "" {
		return nil
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetAuthToken(n.apiKey).
		SetBody(emailPayload{From: n.from, To: to, Subject: subject, HTML: html}).
		Post(n.apiURL)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("email API status: %d", resp.StatusCode())
	}
	return nil
}

func (n *EmailNotifier) SendOrderConfirmation(ctx context.Context, email, orderNumber string, total decimal.Decimal) error {
	subject := fmt.Sprintf("Order #%s confirmed", orderNumber)
	html := fmt.Sprintf("<h2>Order confirmed</h2><p>Thank you for your order!</p>"+
		"<p><strong>Order #%s</strong></p><p>Total: $%s</p>", orderNumber, total.StringFixed(2))
	return n.send(ctx, email, subject, html)
}

func (n *EmailNotifier) SendOrderStatusUpdate(ctx context.Context, email, orderNumber, status, trackingNumber, imei string) error {
	subject := fmt.Sprintf("Order #%s: %s", orderNumber, status)
	body := fmt.Sprintf("<p>Your order <strong>#%s</strong> status: <strong>%s</strong></p>", orderNumber, status)
	if trackingNumber != "" {
		body += fmt.Sprintf("<p>Tracking: %s</p>", trackingNumber)
	}
	if imei != "" {
		body += fmt.Sprintf("<p>IMEI: %s</p>", imei)
	}
	return n.send(ctx, email, subject, "<h2>Order status update</h2>"+body)
}
