package graph

import (
	"encoding/json"
	"fmt"
)

// deepCopy clones state by round-tripping through JSON.
//
// Slow but correct for any state type the store can persist, and it keeps
// the copy semantics identical to checkpoint save/load: if a state survives
// deepCopy it survives a resume.
func deepCopy[S any](state S) (S, error) {
	var out S
	data, err := json.Marshal(state)
	if err != nil {
		return out, fmt.Errorf("deep copy marshal: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("deep copy unmarshal: %w", err)
	}
	return out, nil
}
