package services

import (
	"context"
	"fmt"

	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// MealPeriodNotifier is told when a meal period opens
type MealPeriodNotifier interface {
	NotifyMealPeriodOpened(ctx context.Context, period models.MealPeriod) error
}

// apnsPusher is the part of apns2.Client the notifier uses
type apnsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// PushNotifier sends APNs alerts to every registered device
type PushNotifier struct {
	client   apnsPusher
	userRepo repository.UserStore
	topic    string
}

// NewPushNotifier creates an APNs client using token based auth
func NewPushNotifier(cfg config.APNsConfig, userRepo repository.UserStore) (*PushNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &PushNotifier{client: client, userRepo: userRepo, topic: cfg.Topic}, nil
}

// NotifyMealPeriodOpened tells every device that spinning is open
func (n *PushNotifier) NotifyMealPeriodOpened(ctx context.Context, period models.MealPeriod) error {
	tokens, err := n.userRepo.ListPushTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list push tokens: %w", err)
	}

	p := payload.NewPayload().
		AlertTitle(fmt.Sprintf("%s %s時段開始了", period.Icon, period.Name)).
		AlertBody("快來轉轉樂抽優惠券！").
		Sound("default")

	sent := 0
	for _, deviceToken := range tokens {
		res, err := n.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       n.topic,
			Payload:     p,
		})
		if err != nil {
			log.Error().Err(err).Str("meal_period", period.Key).Msg("Failed to send push notification")
			continue
		}
		if !res.Sent() {
			log.Warn().
				Int("status", res.StatusCode).
				Str("reason", res.Reason).
				Msg("Push notification rejected")
			continue
		}
		sent++
	}

	log.Info().
		Str("meal_period", period.Key).
		Int("devices", len(tokens)).
		Int("sent", sent).
		Msg("Meal period push sent")

	return nil
}
