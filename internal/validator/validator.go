// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"estatetoken/internal/models"
)

// Token symbols become display codes, so they share the display-code alphabet.
var tokenSymbolRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{1,31}$`)

var validChangeTypes = map[models.ChangeType]bool{
	models.ChangeTypeInvestment:      true,
	models.ChangeTypeReward:          true,
	models.ChangeTypePriceUpdate:     true,
	models.ChangeTypeMarketplaceBuy:  true,
	models.ChangeTypeMarketplaceSell: true,
	models.ChangeTypeSnapshot:        true,
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
		_ = v.RegisterValidation("decimal_positive", validateDecimalPositive)
		_ = v.RegisterValidation("decimal_nonnegative", validateDecimalNonNegative)
		_ = v.RegisterValidation("change_type", validateChangeType)
		_ = v.RegisterValidation("token_symbol", validateTokenSymbol)
	}
}

// decimalValue exposes decimals to the validator as their string form; a null
// decimal becomes nil so omitempty and required behave as for pointers.
func decimalValue(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		return d.String()
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		return d.Decimal.String()
	}
	return nil
}

func parseDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}

func validateDecimalPositive(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && d.IsPositive()
}

func validateDecimalNonNegative(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative()
}

func validateChangeType(fl validator.FieldLevel) bool {
	return validChangeTypes[models.ChangeType(fl.Field().String())]
}

func validateTokenSymbol(fl validator.FieldLevel) bool {
	return tokenSymbolRegex.MatchString(fl.Field().String())
}
