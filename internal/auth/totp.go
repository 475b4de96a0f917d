package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"vtu/internal/domain"
	"vtu/pkg/errors"
)

// TOTPSetup carries the provisioning secret; the client renders the URL as a
// QR code. The factor is armed only after VerifyTOTP confirms a live code.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// SetupTOTP provisions a second factor. Admin accounts only.
func (s *Service) SetupTOTP(ctx context.Context, userID uuid.UUID) (*TOTPSetup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleAdmin {
		return nil, errors.Wrap(errors.ErrForbidden, "totp is only available for admin accounts")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "vtu",
		AccountName: user.Email,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate totp secret")
	}

	secret := key.Secret()
	user.TOTPSecret = &secret
	user.IsTOTPEnabled = false
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	return &TOTPSetup{Secret: secret, URL: key.URL()}, nil
}

// VerifyTOTP arms the factor after the user proves they hold the secret.
func (s *Service) VerifyTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return errors.Wrap(errors.ErrInvalidTOTP, "totp has not been set up")
	}
	if !validateTOTP(code, *user.TOTPSecret) {
		return errors.ErrInvalidTOTP
	}

	user.IsTOTPEnabled = true
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("TOTP enabled", map[string]interface{}{"user_id": userID})
	return nil
}

func validateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
