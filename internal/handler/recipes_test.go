package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/ovenly/api/internal/handler"
	"github.com/ovenly/api/internal/scaling"
	"github.com/ovenly/api/internal/service"
	"github.com/shopspring/decimal"
)

type mockRecipeService struct {
	getFn    func(ctx context.Context, tenantID, id uuid.UUID) (scaling.Recipe, error)
	scaledFn func(ctx context.Context, tenantID, id uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error)
}

func (m *mockRecipeService) Get(ctx context.Context, tenantID, id uuid.UUID) (scaling.Recipe, error) {
	return m.getFn(ctx, tenantID, id)
}

func (m *mockRecipeService) Scaled(ctx context.Context, tenantID, id uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error) {
	return m.scaledFn(ctx, tenantID, id, quantity)
}

func recipesPath(suffix string) string {
	return "/tenants/" + testTenantID.String() + "/recipes" + suffix
}

func baguetteRecipe(id uuid.UUID) scaling.Recipe {
	return scaling.Recipe{
		ID:              id,
		Name:            "Baguette",
		YieldQuantity:   decimal.NewFromInt(10),
		YieldUnit:       "pcs",
		PrepTimeMinutes: 40,
		CookTimeMinutes: 25,
		Ingredients: []scaling.Ingredient{
			{Name: "Flour", Quantity: decimal.NewFromInt(1000), Unit: "g"},
			{Name: "Salt", Quantity: decimal.NewFromInt(20), Unit: "g"},
		},
	}
}

func TestScaledRecipe_UsesRealScaler(t *testing.T) {
	id := uuid.New()
	svc := &mockRecipeService{
		scaledFn: func(ctx context.Context, tenantID, gotID uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error) {
			if tenantID != testTenantID || gotID != id {
				t.Errorf("scaled(%s, %s)", tenantID, gotID)
			}
			return scaling.Scale(baguetteRecipe(id), quantity)
		},
	}
	router := tenantRouter("/recipes", handler.NewRecipeHandler(svc, nil).RegisterRoutes)

	rr := doAuthRequest(t, router, "GET", recipesPath("/"+id.String()+"/scaled?quantity=25"), nil, tokenFor(t, alice))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["scale_factor"] != "2.5" || resp["yield_quantity"] != "25" || resp["base_yield_quantity"] != "10" {
		t.Errorf("response = %v", resp)
	}
	ingredients, _ := resp["ingredients"].([]interface{})
	if len(ingredients) != 2 {
		t.Fatalf("ingredients = %v", resp["ingredients"])
	}
	if flour := ingredients[0].(map[string]interface{}); flour["quantity"] != "2500" {
		t.Errorf("flour = %v", flour)
	}
}

func TestScaledRecipe_BadQuantity(t *testing.T) {
	router := tenantRouter("/recipes", handler.NewRecipeHandler(&mockRecipeService{}, nil).RegisterRoutes)
	for _, q := range []string{"", "?quantity=lots"} {
		rr := doAuthRequest(t, router, "GET", recipesPath("/"+uuid.New().String()+"/scaled"+q), nil, tokenFor(t, alice))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%q: got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestScaledRecipe_ZeroQuantity(t *testing.T) {
	id := uuid.New()
	svc := &mockRecipeService{
		scaledFn: func(ctx context.Context, tenantID, id uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error) {
			return scaling.Scale(baguetteRecipe(id), quantity)
		},
	}
	router := tenantRouter("/recipes", handler.NewRecipeHandler(svc, nil).RegisterRoutes)

	rr := doAuthRequest(t, router, "GET", recipesPath("/"+id.String()+"/scaled?quantity=0"), nil, tokenFor(t, alice))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetRecipe_NotFound(t *testing.T) {
	svc := &mockRecipeService{
		getFn: func(ctx context.Context, tenantID, id uuid.UUID) (scaling.Recipe, error) {
			return scaling.Recipe{}, service.ErrNotFound
		},
	}
	router := tenantRouter("/recipes", handler.NewRecipeHandler(svc, nil).RegisterRoutes)

	rr := doAuthRequest(t, router, "GET", recipesPath("/"+uuid.New().String()), nil, tokenFor(t, alice))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
