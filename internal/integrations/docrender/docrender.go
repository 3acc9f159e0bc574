package docrender

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/utils/money"
	"github.com/beevik/etree"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by Render when no renderer URL is set
var ErrNotConfigured = errors.New("document renderer is not configured")

// EncodeReceipt builds the XML document the renderer consumes
func EncodeReceipt(r *models.Receipt) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Receipt")
	root.CreateAttr("number", r.ReceiptNumber)
	root.CreateElement("StudentName").SetText(r.StudentName)
	root.CreateElement("PaymentDate").SetText(r.PaymentDate)
	root.CreateElement("PaymentType").SetText(r.PaymentType)
	root.CreateElement("PaymentMethod").SetText(r.PaymentMethod)

	amounts := root.CreateElement("Amounts")
	amounts.CreateAttr("currency", "INR")
	amounts.CreateElement("TotalFees").SetText(money.Format(r.TotalFees))
	amounts.CreateElement("PreviouslyPaid").SetText(money.Format(r.TotalPreviousPaid))
	current := amounts.CreateElement("CurrentPayment")
	current.SetText(money.Format(r.CurrentPaymentAmount))
	current.CreateAttr("words", r.AmountInWords)
	amounts.CreateElement("TotalPaid").SetText(money.Format(r.TotalPaidAfter))
	amounts.CreateElement("Balance").SetText(money.Format(r.BalanceAmount))

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt %s: %w", r.ReceiptNumber, err)
	}
	return out, nil
}

// Client posts receipt XML to the external document renderer
type Client struct {
	url    string
	client *resty.Client
	log    *logrus.Logger
}

// NewClient initializes a renderer client for RENDERER_URL
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.RendererURL,
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond),
		log: log,
	}
}

// Render returns the rendered document (typically PDF) for a receipt
func (c *Client) Render(ctx context.Context, r *models.Receipt) ([]byte, error) {
	if c.url == "" {
		return nil, ErrNotConfigured
	}
	body, err := EncodeReceipt(r)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/xml; charset=utf-8").
		SetHeader("Accept", "application/pdf").
		SetBody(body).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("renderer returned status %d", resp.StatusCode())
	}

	c.log.Debugf("Rendered receipt %s (%d bytes)", r.ReceiptNumber, len(resp.Body()))
	return resp.Body(), nil
}
