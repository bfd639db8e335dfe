// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules

import "maps"

// InventoryItem is one carried item in a character's inventory.
type InventoryItem struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Quantity   int            `json:"quantity"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CharacterState is the mutable per-session record of a character: stat
// values, flags, free-form variables, inventory, and narrative-scoped
// achievements (distinct from platform achievements). Created once at
// session start and mutated only through ApplyDelta, never replaced.
type CharacterState struct {
	TemplateID   string          `json:"templateId"`
	Stats        map[string]any  `json:"stats"`
	Flags        map[string]bool `json:"flags"`
	Variables    map[string]any  `json:"variables"`
	Inventory    []InventoryItem `json:"inventory"`
	Achievements []string        `json:"achievements"`
}

// NewCharacterState produces the starting state for a new play-through:
// every stat seeded with its default value, everything else empty.
// Pure function, no I/O.
func NewCharacterState(templateID string, cfg *TemplateConfig) *CharacterState {
	state := &CharacterState{
		TemplateID:   templateID,
		Stats:        make(map[string]any),
		Flags:        make(map[string]bool),
		Variables:    make(map[string]any),
		Inventory:    []InventoryItem{},
		Achievements: []string{},
	}
	if cfg == nil {
		return state
	}
	for _, s := range cfg.Stats {
		state.Stats[s.ID] = s.DefaultValue
	}
	return state
}

// EvalContext builds the variable map handed to the expression evaluator:
// stats, then flags, then variables. Later maps win on name collisions so a
// narrative variable can shadow a stat deliberately.
func (s *CharacterState) EvalContext() map[string]any {
	ctx := make(map[string]any, len(s.Stats)+len(s.Flags)+len(s.Variables))
	maps.Copy(ctx, s.Stats)
	for k, v := range s.Flags {
		ctx[k] = v
	}
	maps.Copy(ctx, s.Variables)
	return ctx
}

// ApplyDelta shallow-merges a state delta into the character state. The
// recognized top-level keys mirror the CharacterState shape; anything else
// is treated as a variable assignment. When a ruleset is supplied, numeric
// stat writes are clamped to the stat's declared min/max bounds.
func (s *CharacterState) ApplyDelta(delta map[string]any, cfg *TemplateConfig) {
	if len(delta) == 0 {
		return
	}
	for key, value := range delta {
		switch key {
		case "stats":
			if stats, ok := value.(map[string]any); ok {
				s.mergeStats(stats, cfg)
			}
		case "flags":
			if flags, ok := value.(map[string]any); ok {
				for name, v := range flags {
					if b, ok := v.(bool); ok {
						s.Flags[name] = b
					}
				}
			}
		case "variables":
			if vars, ok := value.(map[string]any); ok {
				maps.Copy(s.Variables, vars)
			}
		case "inventory":
			if items, ok := value.([]any); ok {
				s.mergeInventory(items)
			}
		case "achievements":
			if achievements, ok := value.([]any); ok {
				for _, a := range achievements {
					if id, ok := a.(string); ok {
						s.addAchievement(id)
					}
				}
			}
		default:
			s.Variables[key] = value
		}
	}
}

func (s *CharacterState) mergeStats(stats map[string]any, cfg *TemplateConfig) {
	for id, v := range stats {
		if n, ok := toNumber(v); ok {
			s.Stats[id] = clampStat(id, n, cfg)
			continue
		}
		s.Stats[id] = v
	}
}

// clampStat bounds a numeric stat write to the ruleset's declared range.
func clampStat(id string, value float64, cfg *TemplateConfig) float64 {
	if cfg == nil {
		return value
	}
	for _, def := range cfg.Stats {
		if def.ID != id {
			continue
		}
		if def.MinValue != nil && value < *def.MinValue {
			value = *def.MinValue
		}
		if def.MaxValue != nil && value > *def.MaxValue {
			value = *def.MaxValue
		}
		return value
	}
	return value
}

// mergeInventory upserts item records by id, summing quantities. A resulting
// quantity of zero or less removes the item.
func (s *CharacterState) mergeInventory(items []any) {
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		name, _ := m["name"].(string)
		qty := 1
		if n, ok := toNumber(m["quantity"]); ok {
			qty = int(n)
		}
		props, _ := m["properties"].(map[string]any)

		idx := -1
		for i := range s.Inventory {
			if s.Inventory[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			if qty > 0 {
				s.Inventory = append(s.Inventory, InventoryItem{ID: id, Name: name, Quantity: qty, Properties: props})
			}
			continue
		}

		s.Inventory[idx].Quantity += qty
		if name != "" {
			s.Inventory[idx].Name = name
		}
		if props != nil {
			s.Inventory[idx].Properties = props
		}
		if s.Inventory[idx].Quantity <= 0 {
			s.Inventory = append(s.Inventory[:idx], s.Inventory[idx+1:]...)
		}
	}
}

func (s *CharacterState) addAchievement(id string) {
	for _, existing := range s.Achievements {
		if existing == id {
			return
		}
	}
	s.Achievements = append(s.Achievements, id)
}
