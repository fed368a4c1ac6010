package notifications

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/store"

	"github.com/9ssi7/exponent"
)

// SendNewOrderNotification tells every seller with a line in the order that
// they have something to ship. Delivery is best effort; callers log, they do
// not fail the order.
func SendNewOrderNotification(ctx context.Context, push PushSender, storage store.Storage, sellerIDs []int64, orderNumber string) error {
	tokensByUser, err := storage.PushTokens.GetTokensByUserIDs(ctx, sellerIDs)
	if err != nil {
		return err
	}

	msgs := []*exponent.Message{}
	for _, tokens := range tokensByUser {
		for _, t := range tokens {
			token := exponent.Token(t)
			msgs = append(msgs, &exponent.Message{
				To:    []*exponent.Token{&token},
				Title: "New Order",
				Body:  fmt.Sprintf("Order %s contains one of your products", orderNumber),
				Data: map[string]string{
					"type":        "order",
					"orderNumber": orderNumber,
					"screen":      "seller-orders-screen",
				},
			})
		}
	}
	if len(msgs) == 0 {
		return errors.New("no push tokens")
	}

	_, err = push.Publish(ctx, msgs)
	return err
}
