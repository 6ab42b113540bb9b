package repositories

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeInventoryLines validates a mutation's lines, merges duplicate
// product codes and returns them sorted by product code so overlapping
// mutations always visit stock records in the same order.
func NormalizeInventoryLines(op string, lines []InventoryLine) ([]InventoryLine, error) {
	if len(lines) == 0 {
		err := NewInventoryError(InventoryErrorInvalidState, "no inventory lines supplied", nil)
		err.Op = op
		return nil, err
	}
	merged := make(map[string]int, len(lines))
	for _, line := range lines {
		code := strings.TrimSpace(line.ProductCode)
		if code == "" || line.Quantity <= 0 {
			err := NewInventoryError(InventoryErrorInvalidState,
				fmt.Sprintf("invalid inventory line for product %q", line.ProductCode), nil)
			err.Op = op
			return nil, err
		}
		merged[code] += line.Quantity
	}
	out := make([]InventoryLine, 0, len(merged))
	for code, qty := range merged {
		out = append(out, InventoryLine{ProductCode: code, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out, nil
}
