// Package scaling resizes a base recipe to a production quantity.
//
// Ingredient quantities and costs scale linearly with the factor
// target/yield. Prep and cook times scale with sqrt(factor), rounded up to the
// next whole minute: a double batch does not take twice as long to mix. The time
// rule is a heuristic, not a measurement.
//
// Always scale from the stored base recipe. Scaling an already scaled recipe is
// not supported.
package scaling

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidYield = errors.New("recipe yield and target quantity must be greater than zero")

type Ingredient struct {
	Name     string              `json:"name"`
	Quantity decimal.Decimal     `json:"quantity"`
	Unit     string              `json:"unit"`
	Cost     decimal.NullDecimal `json:"cost"`
}

type Recipe struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	YieldQuantity   decimal.Decimal     `json:"yield_quantity"`
	YieldUnit       string              `json:"yield_unit"`
	PrepTimeMinutes int                 `json:"prep_time_minutes"`
	CookTimeMinutes int                 `json:"cook_time_minutes"`
	CostPerUnit     decimal.NullDecimal `json:"cost_per_unit"`
	Instructions    string              `json:"instructions"`
	Ingredients     []Ingredient        `json:"ingredients"`
}

// ScaledRecipe is a Recipe resized to a requested yield. BaseYield keeps the
// canonical yield so callers can show what the factor was derived from.
type ScaledRecipe struct {
	Recipe
	Factor    decimal.Decimal `json:"scale_factor"`
	BaseYield decimal.Decimal `json:"base_yield_quantity"`
}

// Scale returns r resized to yield target. It fails with ErrInvalidYield when
// either the recipe yield or the target is not positive.
func Scale(r Recipe, target decimal.Decimal) (ScaledRecipe, error) {
	if !r.YieldQuantity.IsPositive() || !target.IsPositive() {
		return ScaledRecipe{}, ErrInvalidYield
	}

	f := target.Div(r.YieldQuantity)

	out := r
	out.YieldQuantity = target
	out.PrepTimeMinutes = scaleMinutes(r.PrepTimeMinutes, f)
	out.CookTimeMinutes = scaleMinutes(r.CookTimeMinutes, f)
	out.CostPerUnit = scaleNull(r.CostPerUnit, target, r.YieldQuantity)
	out.Name = fmt.Sprintf("%s (x%s)", r.Name, formatFactor(f))
	out.Description = annotate(r, target)

	out.Ingredients = make([]Ingredient, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		out.Ingredients[i] = Ingredient{
			Name:     ing.Name,
			Quantity: scaleValue(ing.Quantity, target, r.YieldQuantity),
			Unit:     ing.Unit,
			Cost:     scaleNull(ing.Cost, target, r.YieldQuantity),
		}
	}

	return ScaledRecipe{
		Recipe:    out,
		Factor:    f,
		BaseYield: r.YieldQuantity,
	}, nil
}

// scaleValue computes x*target/yield, multiplying before dividing so a factor
// like 1/3 is never rounded on its own.
func scaleValue(x, target, yield decimal.Decimal) decimal.Decimal {
	return x.Mul(target).Div(yield)
}

func scaleNull(d decimal.NullDecimal, target, yield decimal.Decimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(scaleValue(d.Decimal, target, yield))
}

// scaleMinutes applies ceil(t * sqrt(f)). The product is rounded to micro-minutes
// first so float noise on exact results (f=4 gives 2.0000000001) does not add a
// minute.
func scaleMinutes(t int, f decimal.Decimal) int {
	if t <= 0 {
		return t
	}
	v := float64(t) * math.Sqrt(f.InexactFloat64())
	v = math.Round(v*1e6) / 1e6
	return int(math.Ceil(v))
}

func formatFactor(f decimal.Decimal) string {
	return f.Round(2).String()
}

func annotate(r Recipe, target decimal.Decimal) string {
	note := fmt.Sprintf("Scaled for production: %s %s (base recipe yields %s %s).",
		target.String(), r.YieldUnit, r.YieldQuantity.String(), r.YieldUnit)
	if r.Description == "" {
		return note
	}
	return r.Description + "\n\n" + note
}
