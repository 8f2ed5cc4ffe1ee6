package coupons

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// Repository persists coupons and doubles as a database-backed RuleSet.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Resolve loads the rule for code.
func (r *Repository) Resolve(ctx context.Context, code string) (Rule, error) {
	normalized := NormalizeCode(code)
	var row models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Rule{}, pkgerrors.New(pkgerrors.CodeCouponNotFound, fmt.Sprintf("coupon %s not found", normalized))
	}
	if err != nil {
		return Rule{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return ruleFromModel(row), nil
}

// List returns every coupon ordered by code.
func (r *Repository) List(ctx context.Context) ([]Rule, error) {
	var rows []models.Coupon
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, ruleFromModel(row))
	}
	return out, nil
}

// Upsert inserts rule or updates the row that already holds its code.
func (r *Repository) Upsert(ctx context.Context, rule Rule) (Rule, error) {
	row := modelFromRule(rule)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "value", "minimum_purchase", "starts_at", "expires_at", "active", "description", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return Rule{}, err
	}
	return r.Resolve(ctx, rule.Code)
}

// Seed inserts rules whose codes are not yet present, leaving edited rows alone.
func (r *Repository) Seed(ctx context.Context, rules []Rule) (int, error) {
	created := 0
	for _, rule := range rules {
		row := modelFromRule(rule)
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return created, res.Error
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}

func ruleFromModel(row models.Coupon) Rule {
	return Rule{
		Code:            row.Code,
		Kind:            row.Kind,
		Value:           row.Value,
		MinimumPurchase: row.MinimumPurchase,
		StartsAt:        row.StartsAt,
		ExpiresAt:       row.ExpiresAt,
		Active:          row.Active,
		Description:     row.Description,
	}
}

func modelFromRule(rule Rule) models.Coupon {
	return models.Coupon{
		Code:            NormalizeCode(rule.Code),
		Kind:            rule.Kind,
		Value:           rule.Value,
		MinimumPurchase: rule.MinimumPurchase,
		StartsAt:        rule.StartsAt,
		ExpiresAt:       rule.ExpiresAt,
		Active:          rule.Active,
		Description:     rule.Description,
	}
}
