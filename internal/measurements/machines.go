package measurements

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

func foldLabel(label string) string {
	return cases.Fold().String(strings.Join(strings.Fields(label), " "))
}

func resolveMachine(ctx context.Context, list func(context.Context) ([]Machine, error), label string) (string, bool, error) {
	want := foldLabel(label)
	if want == "" {
		return "", false, nil
	}
	machines, err := list(ctx)
	if err != nil {
		return "", false, err
	}
	for _, machine := range machines {
		if foldLabel(machine.Name) == want {
			return machine.Name, true, nil
		}
	}
	return "", false, nil
}
