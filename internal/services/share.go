package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"caotun-spin-backend/internal/models"
)

const (
	shareHeadline = "🎉 我在「草屯美食轉轉樂」抽到優惠券了！"
	shareFooter   = "快來一起轉轉盤，抽取專屬優惠券吧！"

	// NativeShareTitle is the title passed to the native share surface
	NativeShareTitle = "草屯美食轉轉樂 - 我的優惠券"

	lineShareBase     = "https://social-plugins.line.me/lineit/share"
	facebookShareBase = "https://www.facebook.com/sharer/sharer.php"
)

// GenerateShareText renders the share message. The description line is left out when empty.
func GenerateShareText(data models.ShareCouponData) string {
	var b strings.Builder
	b.WriteString(shareHeadline + "\n\n")
	b.WriteString("🎫 " + data.CouponTitle + "\n")
	b.WriteString("🏪 " + data.RestaurantName + "\n")
	if data.Description != "" {
		b.WriteString("📝 " + data.Description + "\n")
	}
	b.WriteString("📍 " + data.RestaurantAddress + "\n")
	b.WriteString("⏰ 有效期限：" + data.ExpiryDate + "\n\n")
	b.WriteString(shareFooter)
	return b.String()
}

// LineShareURL builds the LINE share link
func LineShareURL(pageURL, text string) string {
	return lineShareBase + "?url=" + encodeURIComponent(pageURL) + "&text=" + encodeURIComponent(text)
}

// FacebookShareURL builds the Facebook sharer link
func FacebookShareURL(pageURL, text string) string {
	return facebookShareBase + "?u=" + encodeURIComponent(pageURL) + "&quote=" + encodeURIComponent(text)
}

// ClipboardText is the fallback copied when native sharing is not possible
func ClipboardText(text, originURL string) string {
	return text + "\n\n" + originURL
}

// uriComponentReplacer undoes the differences between url.QueryEscape and encodeURIComponent
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

// NativeSharePayload is handed to the platform share sheet
type NativeSharePayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// SharePayload bundles every share target for one coupon
type SharePayload struct {
	Text          string             `json:"text"`
	LineURL       string             `json:"line_url"`
	FacebookURL   string             `json:"facebook_url"`
	Native        NativeSharePayload `json:"native"`
	ClipboardText string             `json:"clipboard_text"`
}

// BuildSharePayload composes the share text and all target links
func BuildSharePayload(data models.ShareCouponData, pageURL string) SharePayload {
	text := GenerateShareText(data)
	return SharePayload{
		Text:          text,
		LineURL:       LineShareURL(pageURL, text),
		FacebookURL:   FacebookShareURL(pageURL, text),
		Native:        NativeSharePayload{Title: NativeShareTitle, Text: text, URL: pageURL},
		ClipboardText: ClipboardText(text, pageURL),
	}
}

// ShareOutcome classifies a native share attempt
type ShareOutcome string

const (
	ShareSuccess     ShareOutcome = "success"
	ShareCancelled   ShareOutcome = "cancelled"
	ShareUnsupported ShareOutcome = "unsupported"
	ShareFailed      ShareOutcome = "error"
)

// ErrShareAborted is returned by a NativeSharer when the user dismisses the share sheet
var ErrShareAborted = errors.New("share aborted")

// NativeSharer opens a platform share surface
type NativeSharer interface {
	Share(ctx context.Context, payload NativeSharePayload) error
}

// NeedsFallback reports whether the caller should offer clipboard or manual sharing.
// Cancelled is terminal and never falls back or retries.
func (o ShareOutcome) NeedsFallback() bool {
	return o == ShareUnsupported || o == ShareFailed
}

// ShareNative attempts a native share. A nil sharer means the feature is absent.
func ShareNative(ctx context.Context, sharer NativeSharer, payload NativeSharePayload) (ShareOutcome, error) {
	if sharer == nil {
		return ShareUnsupported, nil
	}

	err := sharer.Share(ctx, payload)
	switch {
	case err == nil:
		return ShareSuccess, nil
	case errors.Is(err, ErrShareAborted), errors.Is(err, context.Canceled):
		return ShareCancelled, nil
	default:
		return ShareFailed, err
	}
}
