package database

import (
	"context"

	"github.com/google/uuid"
)

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, tenant_id, email, password_hash, full_name, role, is_active, created_at
FROM users
WHERE email = $1 AND is_active = true
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Email,
		&i.PasswordHash,
		&i.FullName,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getProduct = `-- name: GetProduct :one
SELECT id, tenant_id, name, prep_time_minutes, recipe_id, is_active, created_at
FROM products
WHERE id = $1 AND tenant_id = $2 AND is_active = true
`

type GetProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, arg.ID, arg.TenantID)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.PrepTimeMinutes,
		&i.RecipeID,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const listProducts = `-- name: ListProducts :many
SELECT id, tenant_id, name, prep_time_minutes, recipe_id, is_active, created_at
FROM products
WHERE tenant_id = $1 AND is_active = true
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.Name,
			&i.PrepTimeMinutes,
			&i.RecipeID,
			&i.IsActive,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRecipe = `-- name: GetRecipe :one
SELECT id, tenant_id, name, description, yield_quantity, yield_unit,
       prep_time_minutes, cook_time_minutes, cost_per_unit, instructions, created_at, updated_at
FROM recipes
WHERE id = $1 AND tenant_id = $2
`

type GetRecipeParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetRecipe(ctx context.Context, arg GetRecipeParams) (Recipe, error) {
	row := q.db.QueryRow(ctx, getRecipe, arg.ID, arg.TenantID)
	var i Recipe
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.Description,
		&i.YieldQuantity,
		&i.YieldUnit,
		&i.PrepTimeMinutes,
		&i.CookTimeMinutes,
		&i.CostPerUnit,
		&i.Instructions,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRecipeIngredients = `-- name: ListRecipeIngredients :many
SELECT id, recipe_id, name, quantity, unit, cost, sort_order
FROM recipe_ingredients
WHERE recipe_id = $1
ORDER BY sort_order, name
`

func (q *Queries) ListRecipeIngredients(ctx context.Context, recipeID uuid.UUID) ([]RecipeIngredient, error) {
	rows, err := q.db.Query(ctx, listRecipeIngredients, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RecipeIngredient{}
	for rows.Next() {
		var i RecipeIngredient
		if err := rows.Scan(
			&i.ID,
			&i.RecipeID,
			&i.Name,
			&i.Quantity,
			&i.Unit,
			&i.Cost,
			&i.SortOrder,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
