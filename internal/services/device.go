package services

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"caotun-spin-backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^09\d{8}$`)
	// Whitespace follows the Unicode definition, including \v and the BOM.
	emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)
)

// Fingerprint returns the SHA-256 hex digest of "userAgent|screenResolution|timezone"
func Fingerprint(info models.DeviceInfo) string {
	raw := strings.Join([]string{info.UserAgent, info.ScreenResolution, info.Timezone}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewDeviceIdentity derives the identity a device presents at login
func NewDeviceIdentity(info models.DeviceInfo) models.DeviceIdentity {
	return models.DeviceIdentity{DeviceID: Fingerprint(info), DeviceInfo: info}
}

// ValidatePhone accepts Taiwan mobile numbers: 09 followed by eight digits
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateEmail accepts the loose local@domain.tld shape
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NewValidator returns a validator with the twphone and looseemail tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("twphone", func(fl validator.FieldLevel) bool {
		return ValidatePhone(fl.Field().String())
	})
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String())
	})
	return v
}
