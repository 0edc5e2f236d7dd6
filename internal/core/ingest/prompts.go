package ingest

import (
	"fmt"
	"strings"

	"recipe-ingest/internal/core/recipe"
)

func structurePrompt(text string) string {
	return fmt.Sprintf(`Du bekommst den Rohtext eines Rezepts (OCR, Webseite oder Abschrift).
Bereinige ihn und gib ihn strukturiert als Klartext zurück:
- Titel in der ersten Zeile
- danach eine kurze Beschreibung, falls vorhanden
- Portionen, Vorbereitungs- und Kochzeit, falls erkennbar
- Abschnitt "Zutaten" mit einer Zutat pro Zeile (Menge, Einheit, Name, Hinweis)
- Abschnitt "Zubereitung" mit nummerierten Schritten
Behalte Zwischenüberschriften von Zutaten- oder Schrittgruppen bei.
Entferne Werbung, Navigation und Kommentare. Erfinde keine Angaben.

Rohtext:
%s`, text)
}

func extractPrompt(structured string, vocab recipe.Vocabulary) string {
	return fmt.Sprintf(`Wandle das folgende Rezept in JSON um.
Regeln:
- Zahlenfelder als Zahlen, Zeiten in Minuten, unbekannte Werte weglassen
- difficulty ist "easy", "medium" oder "hard"
- meal_type aus: %s
- gang aus: %s
- cuisine aus: %s
- Wenn das Rezept Zutatengruppen oder Schrittgruppen hat, verwende ingredient_groups bzw. instruction_groups statt der flachen Listen
- Zutatennamen ohne Mengenangaben, Zubereitungshinweise in notes

Rezept:
%s`, vocabList(vocab.MealTypes), vocabList(vocab.Courses), vocabList(vocab.Cuisines), structured)
}

func vocabList(values []string) string {
	if len(values) == 0 {
		return "(frei wählbar)"
	}
	return strings.Join(values, ", ")
}

var ingredientSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"ingredient_name": map[string]any{"type": "string"},
		"amount":          map[string]any{"type": "number"},
		"unit":            map[string]any{"type": "string"},
		"notes":           map[string]any{"type": "string"},
	},
	"required": []string{"ingredient_name"},
}

func recipeSchema(vocab recipe.Vocabulary) map[string]any {
	category := func(values []string) map[string]any {
		s := map[string]any{"type": "string"}
		if len(values) > 0 {
			s["enum"] = append(append([]string{}, values...), "")
		}
		return s
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"prep_time":   map[string]any{"type": "integer"},
			"cook_time":   map[string]any{"type": "integer"},
			"servings":    map[string]any{"type": "integer"},
			"difficulty":  map[string]any{"type": "string", "enum": []string{"easy", "medium", "hard"}},
			"meal_type":   category(vocab.MealTypes),
			"gang":        category(vocab.Courses),
			"cuisine":     category(vocab.Cuisines),
			"ingredients": map[string]any{"type": "array", "items": ingredientSchema},
			"ingredient_groups": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"group_name":  map[string]any{"type": "string"},
						"ingredients": map[string]any{"type": "array", "items": ingredientSchema},
					},
				},
			},
			"instructions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"instruction_groups": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"group_name":   map[string]any{"type": "string"},
						"instructions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"nutrition": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
			"tags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"title"},
	}
}
