package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"graphmail/models"
	"graphmail/utils"
)

// ParameterStore keeps parameters in the application database. SecureString
// values are sealed with the configured cipher before they are written.
type ParameterStore struct {
	db     *gorm.DB
	cipher *utils.ParameterCipher
}

func NewParameterStore(db *gorm.DB, cipher *utils.ParameterCipher) *ParameterStore {
	return &ParameterStore{db: db, cipher: cipher}
}

func (s *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	var param models.Parameter
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&param).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}

	if param.Type != models.ParameterTypeSecureString {
		return param.Value, nil
	}
	value, err := s.cipher.Decrypt(param.Value)
	if err != nil {
		return "", fmt.Errorf("decrypt parameter %s: %w", name, err)
	}
	return value, nil
}

func (s *ParameterStore) Put(ctx context.Context, name, value string) error {
	return s.Set(ctx, name, value, true)
}

// Set writes a parameter, sealing it when secure is true. Existing values are replaced.
func (s *ParameterStore) Set(ctx context.Context, name, value string, secure bool) error {
	param := models.Parameter{
		Name:      name,
		Value:     value,
		Type:      models.ParameterTypeString,
		UpdatedAt: time.Now().UTC(),
	}
	if secure {
		sealed, err := s.cipher.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt parameter %s: %w", name, err)
		}
		param.Value = sealed
		param.Type = models.ParameterTypeSecureString
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&param).Error
	if err != nil {
		return fmt.Errorf("put parameter %s: %w", name, err)
	}
	return nil
}
