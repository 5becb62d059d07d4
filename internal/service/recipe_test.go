package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/scaling"
	"github.com/shopspring/decimal"
)

type mockRecipeStore struct {
	getRecipeFn       func(ctx context.Context, arg database.GetRecipeParams) (database.Recipe, error)
	listIngredientsFn func(ctx context.Context, recipeID uuid.UUID) ([]database.RecipeIngredient, error)
}

func (m *mockRecipeStore) GetRecipe(ctx context.Context, arg database.GetRecipeParams) (database.Recipe, error) {
	return m.getRecipeFn(ctx, arg)
}
func (m *mockRecipeStore) ListRecipeIngredients(ctx context.Context, recipeID uuid.UUID) ([]database.RecipeIngredient, error) {
	return m.listIngredientsFn(ctx, recipeID)
}

func croissantStore(recipeID uuid.UUID, yield string) *mockRecipeStore {
	return &mockRecipeStore{
		getRecipeFn: func(ctx context.Context, arg database.GetRecipeParams) (database.Recipe, error) {
			if arg.ID != recipeID {
				return database.Recipe{}, pgx.ErrNoRows
			}
			return database.Recipe{
				ID:              recipeID,
				Name:            "Croissant",
				Description:     pgtype.Text{String: "Laminated dough", Valid: true},
				YieldQuantity:   makeNumeric(yield),
				YieldUnit:       "pcs",
				PrepTimeMinutes: 30,
				CookTimeMinutes: 18,
				CostPerUnit:     makeNumeric("0.40"),
			}, nil
		},
		listIngredientsFn: func(ctx context.Context, id uuid.UUID) ([]database.RecipeIngredient, error) {
			return []database.RecipeIngredient{
				{Name: "Flour", Quantity: makeNumeric("1000"), Unit: "g", Cost: makeNumeric("1.20")},
				{Name: "Butter", Quantity: makeNumeric("500"), Unit: "g"},
			}, nil
		},
	}
}

func TestRecipeScaled_Double(t *testing.T) {
	recipeID := uuid.New()
	svc := NewRecipeService(croissantStore(recipeID, "24"))

	scaled, err := svc.Scaled(context.Background(), uuid.New(), recipeID, decimal.NewFromInt(48))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !scaled.Factor.Equal(decimal.NewFromInt(2)) {
		t.Errorf("factor = %s", scaled.Factor)
	}
	if !scaled.Ingredients[0].Quantity.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("flour = %s", scaled.Ingredients[0].Quantity)
	}
	if !scaled.Ingredients[0].Cost.Valid || !scaled.Ingredients[0].Cost.Decimal.Equal(decimal.RequireFromString("2.4")) {
		t.Errorf("flour cost = %+v", scaled.Ingredients[0].Cost)
	}
	if scaled.Ingredients[1].Cost.Valid {
		t.Error("butter cost should stay absent")
	}
	// 30 * 1.414 = 42.4 -> 43; 18 * 1.414 = 25.5 -> 26
	if scaled.PrepTimeMinutes != 43 || scaled.CookTimeMinutes != 26 {
		t.Errorf("times = %d/%d, want 43/26", scaled.PrepTimeMinutes, scaled.CookTimeMinutes)
	}
}

func TestRecipeScaled_NotFound(t *testing.T) {
	svc := NewRecipeService(croissantStore(uuid.New(), "24"))

	_, err := svc.Scaled(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(10))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestRecipeScaled_InvalidYield(t *testing.T) {
	recipeID := uuid.New()
	svc := NewRecipeService(croissantStore(recipeID, "0"))

	_, err := svc.Scaled(context.Background(), uuid.New(), recipeID, decimal.NewFromInt(10))
	if !errors.Is(err, scaling.ErrInvalidYield) {
		t.Fatalf("expected ErrInvalidYield, got: %v", err)
	}
}
