package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"caotun-spin-backend/internal/client"
	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/offline"

	"github.com/rs/zerolog/log"
)

// RunClient plays one session against a running server as a single device
func RunClient() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load client configuration")
	}
	setupLogger(cfg.LogLevel)

	if err := runClient(ctx, cfg, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Client session failed")
	}
}

func runClient(ctx context.Context, cfg *config.ClientConfig, out io.Writer) error {
	store := client.NewFileStore(cfg.StateFile)
	device := models.DeviceInfo{
		UserAgent:        cfg.UserAgent,
		ScreenResolution: cfg.ScreenResolution,
		Timezone:         cfg.Timezone,
	}

	bootstrap, err := client.New(cfg.Server, store, device)
	if err != nil {
		return err
	}
	version := cfg.CacheVersion
	if manifest, err := bootstrap.Manifest(ctx); err != nil {
		log.Warn().Err(err).Str("version", version).Msg("Offline manifest unavailable, using configured cache version")
	} else {
		version = manifest.Version
	}

	worker := offline.NewWorker(nil, offline.NewMemoryStorage(), version)
	if err := worker.Install(ctx, cfg.Server); err != nil {
		log.Warn().Err(err).Msg("App shell unavailable, offline cache disabled")
	}
	defer worker.Flush()

	c, err := client.New(cfg.Server, store, device, client.WithOfflineWorker(worker))
	if err != nil {
		return err
	}

	phone, email := cfg.Phone, cfg.Email
	if phone == "" && email == "" {
		prefill, err := c.Prefill()
		if err != nil {
			return fmt.Errorf("failed to read remembered contact: %w", err)
		}
		phone, email = prefill.Phone, prefill.Email
	}

	login, err := c.Login(ctx, phone, email)
	if err != nil {
		var validationErr *client.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("login rejected: %s", validationErr.Message)
		}
		return fmt.Errorf("login failed: %w", err)
	}
	log.Info().Str("user_id", login.User.ID).Msg("Logged in")

	if cfg.CheckIn {
		result, err := c.CheckIn(ctx)
		switch {
		case isConflict(err):
			fmt.Fprintln(out, "今天已經簽到過了")
		case err != nil:
			return fmt.Errorf("check-in failed: %w", err)
		default:
			fmt.Fprintf(out, "✅ 連續簽到 %d 天\n", result.CheckIn.StreakDays)
			if result.Reward != nil {
				fmt.Fprintf(out, "🎁 %s｜%s（%s）\n", result.Reward.Title, result.Reward.RestaurantName, result.Reward.Code)
			}
		}
	}

	status, err := c.MealPeriod(ctx)
	if err != nil {
		return fmt.Errorf("failed to get meal period: %w", err)
	}
	fmt.Fprintf(out, "%s %s %s\n", status.Period.Icon, status.Period.Name, status.Date)

	if cfg.Spin && status.Active {
		result, err := c.Spin(ctx)
		switch {
		case isConflict(err):
			fmt.Fprintln(out, "這個時段已經轉過了")
		case err != nil:
			return fmt.Errorf("spin failed: %w", err)
		default:
			fmt.Fprintf(out, "🎉 %s｜%s（%s）\n", result.Coupon.Title, result.Coupon.RestaurantName, result.Coupon.Code)
		}
	}

	coupons, err := c.Coupons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list coupons: %w", err)
	}
	fmt.Fprintf(out, "🎫 優惠券 %d 張\n", len(coupons))
	for _, coupon := range coupons {
		state := "可使用"
		switch {
		case coupon.RedeemedAt != nil:
			state = "已使用"
		case coupon.Expired:
			state = "已過期"
		}
		fmt.Fprintf(out, "  %s %s｜%s [%s]\n", coupon.Code, coupon.Title, coupon.RestaurantName, state)
	}
	return nil
}

func isConflict(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
