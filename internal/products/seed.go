package products

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
)

var demoNames = []string{"Keyboard", "Mouse", "Monitor", "Headset", "Webcam", "Dock", "Cable", "Stand"}

// DemoFields returns n distinct inputs for populating a development catalog.
// Codes are DEMO-<prefix>-0001 onwards so repeated runs can pick a new prefix.
func DemoFields(n int, prefix string, rnd *rand.Rand) []Fields {
	out := make([]Fields, 0, n)
	for i := 1; i <= n; i++ {
		name := demoNames[rnd.IntN(len(demoNames))]
		out = append(out, Fields{
			FieldCode:        fmt.Sprintf("DEMO-%s-%04d", prefix, i),
			FieldName:        name + " " + strconv.Itoa(i),
			FieldQuantity:    strconv.Itoa(MinQuantity + rnd.IntN(MaxQuantity)),
			FieldPrice:       fmt.Sprintf("%d.%02d", rnd.IntN(1000), rnd.IntN(100)),
			FieldDescription: "Demo " + name,
		})
	}
	return out
}

// Seed stores every input through the service, stopping at the first rejection.
func Seed(ctx context.Context, svc *Service, inputs []Fields) ([]Product, error) {
	created := make([]Product, 0, len(inputs))
	for _, fields := range inputs {
		p, err := svc.Create(ctx, fields)
		if err != nil {
			return created, fmt.Errorf("products: seed %v: %w", fields[FieldCode], err)
		}
		created = append(created, p)
	}
	return created, nil
}
