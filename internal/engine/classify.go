package engine

import (
	"fmt"
	"strings"

	"github.com/reverie-ai/reverie/internal/store"
)

// proceduralMarkers suggest how-to knowledge: instructions, commands, steps.
var proceduralMarkers = []string{
	"how to", "step ", "steps", "first,", "then ", "finally",
	"install", "run ", "command", "configure", "procedure",
}

// semanticMarkers suggest stable facts and preferences about the user.
var semanticMarkers = []string{
	"prefers", "likes", "dislikes", "always", "never", "favorite",
	"name is", "works at", "lives in", "birthday", "allergic",
}

// ClassifyMemoryType assigns a memory type from content heuristics.
// Procedural markers win over semantic ones; anything else is episodic
// (a conversation event anchored in time).
func ClassifyMemoryType(content string) store.MemoryType {
	lower := strings.ToLower(content)

	for _, marker := range proceduralMarkers {
		if strings.Contains(lower, marker) {
			return store.TypeProcedural
		}
	}
	for _, marker := range semanticMarkers {
		if strings.Contains(lower, marker) {
			return store.TypeSemantic
		}
	}
	return store.TypeEpisodic
}

// ClassifyAndSetMemoryType classifies a stored memory's content and persists
// the resulting type. Returns the assigned type.
func (e *Engine) ClassifyAndSetMemoryType(id string) (store.MemoryType, error) {
	m, err := e.DB.GetMemory(id)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("classify: memory %s not found", id)
	}

	t := ClassifyMemoryType(m.Content)
	if t == m.MemoryType {
		return t, nil
	}
	if err := e.DB.SetMemoryType(id, t); err != nil {
		return "", err
	}
	return t, nil
}
