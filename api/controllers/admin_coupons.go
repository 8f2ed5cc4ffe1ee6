package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

type upsertCouponRequest struct {
	Code            string     `json:"code" validate:"required,max=64"`
	Kind            string     `json:"kind" validate:"required,oneof=percentage fixed"`
	Value           string     `json:"value" validate:"required,decimal"`
	MinimumPurchase string     `json:"minimum_purchase" validate:"omitempty,decimal"`
	StartsAt        *time.Time `json:"starts_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Active          *bool      `json:"active"`
	Description     string     `json:"description" validate:"max=256"`
}

func (r upsertCouponRequest) toRule() (coupons.Rule, error) {
	kind, err := enums.ParseDiscountKind(r.Kind)
	if err != nil {
		return coupons.Rule{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind")
	}
	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return coupons.Rule{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid value")
	}
	minimum := decimal.Zero
	if r.MinimumPurchase != "" {
		if minimum, err = decimal.NewFromString(r.MinimumPurchase); err != nil {
			return coupons.Rule{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid minimum_purchase")
		}
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return coupons.Rule{
		Code:            validators.SanitizeString(r.Code, 64),
		Kind:            kind,
		Value:           value,
		MinimumPurchase: minimum,
		StartsAt:        r.StartsAt,
		ExpiresAt:       r.ExpiresAt,
		Active:          active,
		Description:     validators.SanitizeString(r.Description, 256),
	}, nil
}

func AdminCouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		rules, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rules)
	}
}

// AdminCouponUpsert creates or replaces a coupon by code.
func AdminCouponUpsert(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var payload upsertCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := payload.toRule()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		saved, err := svc.Upsert(r.Context(), rule)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"coupon_code": saved.Code, "kind": string(saved.Kind)})
			logg.Info(ctx, "coupon.upserted")
		}
		responses.WriteSuccess(w, saved)
	}
}
