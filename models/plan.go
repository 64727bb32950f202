package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Meal type keys, in display order.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealSnack     = "snack"
	MealDinner    = "dinner"
)

var MealTypes = []string{MealBreakfast, MealLunch, MealSnack, MealDinner}

// IsMealType reports whether s is one of the known meal type keys.
func IsMealType(s string) bool {
	for _, m := range MealTypes {
		if m == s {
			return true
		}
	}
	return false
}

var (
	Genders    = []string{"male", "female"}
	Activities = []string{"sedentary", "light", "moderate", "active"}
	Goals      = []string{"weight_loss", "maintenance", "muscle_gain"}
	Diets      = []string{"veg", "non-veg", "vegan"}
)

// UserProfile is the biometric and preference data sent on every
// generate and regenerate call.
type UserProfile struct {
	Age       float64  `json:"age"`
	Weight    float64  `json:"weight"`
	Height    float64  `json:"height"`
	Gender    string   `json:"gender"`
	Activity  string   `json:"activity"`
	Goal      string   `json:"goal"`
	Diet      string   `json:"diet"`
	Allergies []string `json:"allergies"`
	Dislikes  []string `json:"dislikes"`
}

// Validate checks enum membership and that biometrics are positive finite
// numbers.
func (p UserProfile) Validate() error {
	for _, v := range []float64{p.Age, p.Weight, p.Height} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("age, weight and height must be positive")
		}
	}
	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"gender", p.Gender, Genders},
		{"activity", p.Activity, Activities},
		{"goal", p.Goal, Goals},
		{"diet", p.Diet, Diets},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return fmt.Errorf("invalid %s %q", c.field, c.value)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Targets are the daily nutrition targets computed by the API.
type Targets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
}

// MealPlan is a generated weekly plan. WeekPlan holds the days exactly as
// the API produced them.
type MealPlan struct {
	Targets  Targets `json:"targets"`
	WeekPlan []Day   `json:"weekPlan"`
}

// Day is one entry of the week. A meal type missing from Meals has no meal.
type Day struct {
	Day   string           `json:"day"`
	Meals map[string]*Meal `json:"meals"`
}

// Meal is an ordered list of food items.
type Meal struct {
	Items         []FoodItem `json:"items"`
	TotalCalories float64    `json:"totalCalories"`
}

// MainItemID is the id of the first item, the one regenerate and feedback
// act on. Empty when the meal has no items.
func (m *Meal) MainItemID() string {
	if m == nil || len(m.Items) == 0 {
		return ""
	}
	return m.Items[0].ID
}

// FoodItem carries the known nutrition fields. Any other keys the API sends
// are kept in Extra and written back unchanged.
type FoodItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Calories float64 `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
	Image    string  `json:"image,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type foodItemAlias FoodItem

func (f *FoodItem) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var item FoodItem
	if raw, ok := all["id"]; ok {
		// ids are sometimes numeric
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			item.ID = s
		} else if string(raw) != "null" {
			item.ID = string(raw)
		}
	}
	fields := map[string]any{
		"name":     &item.Name,
		"calories": &item.Calories,
		"protein":  &item.Protein,
		"carbs":    &item.Carbs,
		"fat":      &item.Fat,
		"image":    &item.Image,
	}
	for k, v := range all {
		if k == "id" {
			continue
		}
		dst, known := fields[k]
		if !known {
			if item.Extra == nil {
				item.Extra = make(map[string]json.RawMessage)
			}
			item.Extra[k] = v
			continue
		}
		if string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("food item %s: %w", k, err)
		}
	}
	*f = item
	return nil
}

func (f FoodItem) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(foodItemAlias(f))
	if err != nil || len(f.Extra) == 0 {
		return base, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, taken := all[k]; !taken {
			all[k] = v
		}
	}
	return json.Marshal(all)
}
