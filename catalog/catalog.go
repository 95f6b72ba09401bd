/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/tomoncle/nutrilog/database"
	"github.com/tomoncle/nutrilog/models"
	"github.com/tomoncle/nutrilog/repository"
	"github.com/tomoncle/nutrilog/schema"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// SeedVersion is the migration version of the catalog seed.
const SeedVersion = "002"

// ConflictKey is the column a seeded food is matched on.
const ConflictKey = "name"

var seedColumns = []string{"manufacturer", "serving_size", "unit", "calories", "protein", "carbs", "fat"}

// Item is one food of a catalog file.
type Item struct {
	Name         string   `yaml:"name"`
	Manufacturer string   `yaml:"manufacturer"`
	ServingSize  *float64 `yaml:"serving_size,omitempty"`
	Unit         string   `yaml:"unit"`
	Calories     *float64 `yaml:"calories,omitempty"`
	Protein      *float64 `yaml:"protein,omitempty"`
	Carbs        *float64 `yaml:"carbs,omitempty"`
	Fat          *float64 `yaml:"fat,omitempty"`
}

// Catalog is the content of a catalog file.
type Catalog struct {
	Foods []Item `yaml:"foods"`
}

func (i Item) input() *schema.FoodCreate {
	return &schema.FoodCreate{
		Name:         schema.Ptr(i.Name),
		Manufacturer: schema.Ptr(i.Manufacturer),
		ServingSize:  i.ServingSize,
		Unit:         schema.Ptr(i.Unit),
		Calories:     i.Calories,
		Protein:      i.Protein,
		Carbs:        i.Carbs,
		Fat:          i.Fat,
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Food converts the item into a model, applying the column defaults.
func (i Item) Food() *models.Food {
	return &models.Food{
		Name:         i.Name,
		Manufacturer: i.Manufacturer,
		ServingSize:  valueOr(i.ServingSize, 1),
		Unit:         i.Unit,
		Calories:     valueOr(i.Calories, 0),
		Protein:      valueOr(i.Protein, 0),
		Carbs:        valueOr(i.Carbs, 0),
		Fat:          valueOr(i.Fat, 0),
	}
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Foods))
	for n, item := range c.Foods {
		if err := schema.Validate(item.input()); err != nil {
			return nil, fmt.Errorf("catalog food #%d (%s): %w", n+1, item.Name, err)
		}
		if seen[item.Name] {
			return nil, fmt.Errorf("catalog food #%d: duplicate name %q", n+1, item.Name)
		}
		seen[item.Name] = true
	}
	return &c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Seed upserts every catalog food by name inside db, which may be a
// transaction. Existing foods keep their id and get the catalog values.
func Seed(ctx context.Context, db bun.IDB, c *Catalog) (int, error) {
	if c == nil || len(c.Foods) == 0 {
		return 0, nil
	}
	foods := make([]*models.Food, 0, len(c.Foods))
	for _, item := range c.Foods {
		foods = append(foods, item.Food())
	}
	repo := repository.NewRepository[models.Food](db)
	if err := repo.UpsertWithTx(ctx, db, seedColumns, []string{ConflictKey}, foods...); err != nil {
		return 0, err
	}
	database.GetLogger().Info("Seeded food catalog", "foods", len(foods))
	return len(foods), nil
}

// SeedFile loads path and seeds it.
func SeedFile(ctx context.Context, db bun.IDB, path string) (int, error) {
	c, err := Load(path)
	if err != nil {
		return 0, err
	}
	return Seed(ctx, db, c)
}

// SeedMigration returns the migration that seeds the catalog at path once.
func SeedMigration(path string) database.MigrationItem {
	return database.MigrationItem{
		Version:     SeedVersion,
		Name:        "seed_food_catalog",
		Description: fmt.Sprintf("Seed foods from %s", path),
		Up: func(ctx context.Context, db bun.IDB) error {
			_, err := SeedFile(ctx, db, path)
			return err
		},
	}
}
