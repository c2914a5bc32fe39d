package db

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
)

// DefaultSequences returns the baseline numbering sequences.
func DefaultSequences(b config.BillingConfig) []models.NumberSequence {
	return []models.NumberSequence{
		{Kind: string(numbering.KindQuote), Prefix: b.QuotePrefix, Padding: 4, Counter: 1, YearResetEnabled: b.YearReset},
		{Kind: string(numbering.KindInvoice), Prefix: b.InvoicePrefix, Padding: 4, Counter: 1, YearResetEnabled: b.YearReset},
		{Kind: string(numbering.KindCustomer), Prefix: b.CustomerPrefix, Padding: 6, Counter: 1},
	}
}

// Seed inserts missing baseline rows. Existing rows are never modified, so
// running it on every start is safe.
func Seed(conn *gorm.DB, cfg *config.Config) error {
	for _, seq := range DefaultSequences(cfg.Billing) {
		var existing models.NumberSequence
		err := conn.Where("kind = ?", seq.Kind).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := conn.Create(&seq).Error; err != nil {
				return fmt.Errorf("seed sequence %s: %w", seq.Kind, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("seed sequence %s: %w", seq.Kind, err)
		}
	}

	if cfg.App.AdminEmail == "" || cfg.App.AdminPassword == "" {
		log.Debug().Msg("admin credentials not configured, skipping admin seed")
		return nil
	}
	var admin models.User
	err := conn.Where("email = ?", cfg.App.AdminEmail).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.App.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin = models.User{Email: cfg.App.AdminEmail, Password: string(hash), Name: "Administrator"}
		if err := conn.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info().Str("email", admin.Email).Msg("admin user created")
		return nil
	}
	return err
}
