package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/scaling"
	"github.com/shopspring/decimal"
)

// RecipeStore defines the DB methods needed to load a recipe.
// Satisfied by *database.Queries.
type RecipeStore interface {
	GetRecipe(ctx context.Context, arg database.GetRecipeParams) (database.Recipe, error)
	ListRecipeIngredients(ctx context.Context, recipeID uuid.UUID) ([]database.RecipeIngredient, error)
}

type RecipeService struct {
	queries RecipeStore
}

func NewRecipeService(queries RecipeStore) *RecipeService {
	return &RecipeService{queries: queries}
}

// Get loads the canonical base recipe with its ingredients.
func (s *RecipeService) Get(ctx context.Context, tenantID, id uuid.UUID) (scaling.Recipe, error) {
	row, err := s.queries.GetRecipe(ctx, database.GetRecipeParams{ID: id, TenantID: tenantID})
	if err != nil {
		return scaling.Recipe{}, notFound(err, "get recipe")
	}
	ingredients, err := s.queries.ListRecipeIngredients(ctx, id)
	if err != nil {
		return scaling.Recipe{}, fmt.Errorf("list recipe ingredients: %w", err)
	}

	r := scaling.Recipe{
		ID:              row.ID,
		Name:            row.Name,
		Description:     row.Description.String,
		YieldQuantity:   numericToDecimal(row.YieldQuantity),
		YieldUnit:       row.YieldUnit,
		PrepTimeMinutes: int(row.PrepTimeMinutes),
		CookTimeMinutes: int(row.CookTimeMinutes),
		CostPerUnit:     numericToNullDecimal(row.CostPerUnit),
		Instructions:    row.Instructions.String,
		Ingredients:     make([]scaling.Ingredient, 0, len(ingredients)),
	}
	for _, ing := range ingredients {
		r.Ingredients = append(r.Ingredients, scaling.Ingredient{
			Name:     ing.Name,
			Quantity: numericToDecimal(ing.Quantity),
			Unit:     ing.Unit,
			Cost:     numericToNullDecimal(ing.Cost),
		})
	}
	return r, nil
}

// Scaled returns the base recipe resized to quantity.
func (s *RecipeService) Scaled(ctx context.Context, tenantID, id uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error) {
	r, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return scaling.ScaledRecipe{}, err
	}
	return scaling.Scale(r, quantity)
}
