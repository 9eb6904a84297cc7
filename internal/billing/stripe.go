package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	MetadataUserID    = "user_id"
	MetadataPackageID = "package_id"
)

type Billing struct {
	sc            *stripe.Client
	appURL        string
	webhookSecret string
}

func NewBilling(secretKey, webhookSecret, appURL string) *Billing {
	return &Billing{
		sc:            stripe.NewClient(secretKey),
		appURL:        strings.TrimRight(appURL, "/"),
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession opens a hosted checkout for a credit package. The
// user and package ids travel in the session metadata so the webhook can
// credit the right account without any extra lookup.
func (b *Billing) CreateCheckoutSession(ctx context.Context, userID string, pkg *CreditPackage) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(b.appURL + "/dashboard?purchase=success"),
		CancelURL:           stripe.String(b.appURL + "/pricing?purchase=canceled"),
		Metadata: map[string]string{
			MetadataUserID:    userID,
			MetadataPackageID: pkg.ID,
		},
	}

	item := &stripe.CheckoutSessionCreateLineItemParams{
		Quantity: stripe.Int64(1),
	}
	if pkg.StripePriceID != "" {
		item.Price = stripe.String(pkg.StripePriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionCreateLineItemPriceDataParams{
			Currency: stripe.String(string(stripe.CurrencyUSD)),
			ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
				Name:        stripe.String(fmt.Sprintf("Magic Room %s", pkg.DisplayName)),
				Description: stripe.String(fmt.Sprintf("%d room generation credits", pkg.Credits)),
			},
			UnitAmount: stripe.Int64(pkg.PriceCents),
		}
	}
	params.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{item}

	return b.sc.V1CheckoutSessions.Create(ctx, params)
}

func (b *Billing) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, b.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
