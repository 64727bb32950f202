package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/raushankrgupta/meal-planner/config"
	"github.com/raushankrgupta/meal-planner/models"
)

// ProfileForm is the dashboard sidebar form as the user typed it.
// Allergies and dislikes are comma-separated free text.
type ProfileForm struct {
	Age       float64
	Weight    float64
	Height    float64
	Gender    string
	Activity  string
	Goal      string
	Diet      string
	Allergies string
	Dislikes  string
}

// DefaultForm seeds a new dashboard from configuration.
func DefaultForm() ProfileForm {
	d := config.DefaultProfile
	return ProfileForm{
		Age:      d.Age,
		Weight:   d.Weight,
		Height:   d.Height,
		Gender:   d.Gender,
		Activity: d.Activity,
		Goal:     d.Goal,
		Diet:     d.Diet,
	}
}

// FormFromValues reads the form fields from submitted values. Blank fields
// keep the value from base.
func FormFromValues(get func(string) string, base ProfileForm) (ProfileForm, error) {
	f := base
	nums := []struct {
		key string
		dst *float64
	}{
		{"age", &f.Age},
		{"weight", &f.Weight},
		{"height", &f.Height},
	}
	for _, n := range nums {
		raw := strings.TrimSpace(get(n.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return base, fmt.Errorf("%s must be a number", n.key)
		}
		*n.dst = v
	}
	strs := []struct {
		key string
		dst *string
	}{
		{"gender", &f.Gender},
		{"activity", &f.Activity},
		{"goal", &f.Goal},
		{"diet", &f.Diet},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(get(s.key)); v != "" {
			*s.dst = v
		}
	}
	// free text may legitimately be cleared
	f.Allergies = get("allergies")
	f.Dislikes = get("dislikes")
	return f, nil
}

// Profile normalizes the form into the payload sent to the API.
func (f ProfileForm) Profile() models.UserProfile {
	return models.UserProfile{
		Age:       f.Age,
		Weight:    f.Weight,
		Height:    f.Height,
		Gender:    f.Gender,
		Activity:  f.Activity,
		Goal:      f.Goal,
		Diet:      f.Diet,
		Allergies: ParseList(f.Allergies),
		Dislikes:  ParseList(f.Dislikes),
	}
}

// ParseList splits comma-separated text into trimmed, non-empty, unique
// entries in first-seen order. It never returns nil so the API always
// receives a JSON array.
func ParseList(text string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
