// Package client is the Go client of the spin API. It carries the rules that run on the
// player's device: contact validation, device identity, login prefill and the offline policy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"caotun-spin-backend/internal/models"
	"caotun-spin-backend/internal/offline"
	"caotun-spin-backend/internal/services"
)

// Messages shown to the player for local validation failures
const (
	MsgContactRequired = "請輸入手機號碼或電子郵件"
	MsgContactConflict = "請擇一填寫手機號碼或電子郵件"
	MsgInvalidPhone    = "請輸入正確的手機號碼（09 開頭共 10 碼）"
	MsgInvalidEmail    = "請輸入正確的電子郵件格式"
)

// ValidationError is a local, user-facing rejection. Requests failing validation are never sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Clipboard receives the share fallback text
type Clipboard interface {
	WriteText(text string) error
}

// Prefill is the contact remembered from the last successful login
type Prefill struct {
	Phone string
	Email string
}

// Client talks to the spin API on behalf of one device
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      Store
	device     models.DeviceInfo
	token      string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithOfflineWorker routes every request through the offline cache policy
func WithOfflineWorker(w *offline.Worker) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Transport = w
		c.httpClient = &hc
	}
}

// New creates a client for the API at baseURL
func New(baseURL string, store Store, device models.DeviceInfo, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
		device:     device,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the session token of the last login
func (c *Client) Token() string {
	return c.token
}

// SetToken restores a session token
func (c *Client) SetToken(token string) {
	c.token = token
}

// EnsureDeviceID returns the stored device id, deriving and storing one on first use
func (c *Client) EnsureDeviceID() (string, error) {
	id, ok, err := c.store.Get(KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = services.NewDeviceIdentity(c.device).DeviceID
	if err := c.store.Set(KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to store device id: %w", err)
	}
	return id, nil
}

// Identity returns the device identity sent with logins
func (c *Client) Identity() (models.DeviceIdentity, error) {
	id, err := c.EnsureDeviceID()
	if err != nil {
		return models.DeviceIdentity{}, err
	}
	return models.DeviceIdentity{DeviceID: id, DeviceInfo: c.device}, nil
}

// Prefill returns the remembered contact for the login form
func (c *Client) Prefill() (Prefill, error) {
	phone, _, err := c.store.Get(KeyLoginPhone)
	if err != nil {
		return Prefill{}, err
	}
	email, _, err := c.store.Get(KeyLoginEmail)
	if err != nil {
		return Prefill{}, err
	}
	return Prefill{Phone: phone, Email: email}, nil
}

// ValidateContact requires exactly one well-formed contact
func ValidateContact(phone, email string) error {
	switch {
	case phone == "" && email == "":
		return &ValidationError{Message: MsgContactRequired}
	case phone != "" && email != "":
		return &ValidationError{Message: MsgContactConflict}
	case phone != "" && !services.ValidatePhone(phone):
		return &ValidationError{Message: MsgInvalidPhone}
	case email != "" && !services.ValidateEmail(email):
		return &ValidationError{Message: MsgInvalidEmail}
	}
	return nil
}

// Login validates the contact locally, then signs in with the device identity
func (c *Client) Login(ctx context.Context, phone, email string) (*models.LoginResponse, error) {
	phone = strings.TrimSpace(phone)
	email = strings.TrimSpace(email)
	if err := ValidateContact(phone, email); err != nil {
		return nil, err
	}

	identity, err := c.Identity()
	if err != nil {
		return nil, err
	}

	req := models.LoginRequest{
		Phone:      phone,
		Email:      email,
		DeviceID:   identity.DeviceID,
		DeviceInfo: identity.DeviceInfo,
	}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token

	if err := c.rememberContact(phone, email); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) rememberContact(phone, email string) error {
	if phone != "" {
		if err := c.store.Set(KeyLoginPhone, phone); err != nil {
			return fmt.Errorf("failed to store phone: %w", err)
		}
		return c.store.Clear(KeyLoginEmail)
	}
	if err := c.store.Set(KeyLoginEmail, email); err != nil {
		return fmt.Errorf("failed to store email: %w", err)
	}
	return c.store.Clear(KeyLoginPhone)
}

// MealPeriod returns the server's current meal period
func (c *Client) MealPeriod(ctx context.Context) (*services.MealPeriodStatus, error) {
	var status services.MealPeriodStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/meal-period", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Manifest returns the server's offline cache manifest
func (c *Client) Manifest(ctx context.Context) (*offline.Manifest, error) {
	var m offline.Manifest
	if err := c.do(ctx, http.MethodGet, "/api/v1/offline/manifest", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Coupons returns the visible wallet
func (c *Client) Coupons(ctx context.Context) ([]services.CouponView, error) {
	var resp struct {
		Coupons []services.CouponView `json:"coupons"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/coupons", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Coupons, nil
}

// Spin spins the wheel for the current meal period
func (c *Client) Spin(ctx context.Context) (*services.SpinResult, error) {
	var result services.SpinResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/spins", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckIn records today's check-in
func (c *Client) CheckIn(ctx context.Context) (*services.CheckInResult, error) {
	var result services.CheckInResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/check-ins", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ShareCoupon tries the native share sheet and copies the text to the clipboard when
// sharing is unsupported or fails. A cancelled share is final.
func (c *Client) ShareCoupon(ctx context.Context, couponID string, sharer services.NativeSharer, clipboard Clipboard) (services.ShareOutcome, error) {
	var payload services.SharePayload
	path := "/api/v1/coupons/" + url.PathEscape(couponID) + "/share"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return services.ShareFailed, err
	}

	outcome, shareErr := services.ShareNative(ctx, sharer, payload.Native)
	if !outcome.NeedsFallback() {
		return outcome, nil
	}

	if clipboard == nil {
		return outcome, shareErr
	}
	if err := clipboard.WriteText(payload.ClipboardText); err != nil {
		return outcome, errors.Join(shareErr, fmt.Errorf("failed to copy share text: %w", err))
	}
	return outcome, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	// Read to EOF so the offline worker sees the complete body.
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
