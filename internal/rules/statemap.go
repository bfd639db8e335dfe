// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package rules

import "maps"

// ToMap flattens the character state into the JSON-typed map shape persisted
// as session game state. The result uses only JSON scalar types so it
// round-trips through JSONB unchanged.
func (s *CharacterState) ToMap() map[string]any {
	flags := make(map[string]any, len(s.Flags))
	for k, v := range s.Flags {
		flags[k] = v
	}
	inventory := make([]any, len(s.Inventory))
	for i, item := range s.Inventory {
		entry := map[string]any{
			"id":       item.ID,
			"name":     item.Name,
			"quantity": float64(item.Quantity),
		}
		if item.Properties != nil {
			entry["properties"] = item.Properties
		}
		inventory[i] = entry
	}
	achievements := make([]any, len(s.Achievements))
	for i, a := range s.Achievements {
		achievements[i] = a
	}

	m := map[string]any{
		"stats":        maps.Clone(s.Stats),
		"flags":        flags,
		"variables":    maps.Clone(s.Variables),
		"inventory":    inventory,
		"achievements": achievements,
	}
	if s.TemplateID != "" {
		m["templateId"] = s.TemplateID
	}
	return m
}

// StateFromMap rebuilds a character state from a persisted game-state map.
// Tolerant of missing or mistyped sections; unrecognized entries are dropped
// rather than failing the load.
func StateFromMap(m map[string]any) *CharacterState {
	state := NewCharacterState("", nil)
	if m == nil {
		return state
	}
	if id, ok := m["templateId"].(string); ok {
		state.TemplateID = id
	}
	if stats, ok := m["stats"].(map[string]any); ok {
		maps.Copy(state.Stats, stats)
	}
	if flags, ok := m["flags"].(map[string]any); ok {
		for k, v := range flags {
			if b, ok := v.(bool); ok {
				state.Flags[k] = b
			}
		}
	}
	if vars, ok := m["variables"].(map[string]any); ok {
		maps.Copy(state.Variables, vars)
	}
	if items, ok := m["inventory"].([]any); ok {
		for _, raw := range items {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id, _ := entry["id"].(string)
			if id == "" {
				continue
			}
			item := InventoryItem{ID: id, Quantity: 1}
			item.Name, _ = entry["name"].(string)
			if n, ok := toNumber(entry["quantity"]); ok {
				item.Quantity = int(n)
			}
			item.Properties, _ = entry["properties"].(map[string]any)
			state.Inventory = append(state.Inventory, item)
		}
	}
	if achievements, ok := m["achievements"].([]any); ok {
		for _, a := range achievements {
			if id, ok := a.(string); ok {
				state.addAchievement(id)
			}
		}
	}
	return state
}
