package persona

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed prompts/system.txt
var defaultSystemPrompt string

//go:embed prompts/restrictions.txt
var defaultRestrictions string

//go:embed prompts/everrank-system.txt
var everRankSystemPrompt string

//go:embed prompts/everrank-restrictions.txt
var everRankRestrictions string

// Texts holds the four persona blocks the relay composes prompts from.
type Texts struct {
	SystemPrompt         string
	Restrictions         string
	EverRankSystemPrompt string
	EverRankRestrictions string
}

// ParamsGetter is satisfied by *paramstore.Client.
type ParamsGetter interface {
	GetParameters(ctx context.Context, names []string) (map[string]string, error)
}

// Embedded returns the persona texts compiled into the binary.
func Embedded() Texts {
	return Texts{
		SystemPrompt:         strings.TrimSpace(defaultSystemPrompt),
		Restrictions:         strings.TrimSpace(defaultRestrictions),
		EverRankSystemPrompt: strings.TrimSpace(everRankSystemPrompt),
		EverRankRestrictions: strings.TrimSpace(everRankRestrictions),
	}
}

// Load returns the embedded texts with any SSM parameters under
// <prefix>/prompts/ laid over them. Parameters that do not exist keep the
// embedded value. On error the embedded texts are returned alongside it.
func Load(ctx context.Context, getter ParamsGetter, prefix string) (Texts, error) {
	texts := Embedded()
	if getter == nil {
		return texts, errors.New("persona: params getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return texts, errors.New("persona: parameter prefix must not be empty")
	}

	slots := []struct {
		name string
		dst  *string
	}{
		{prefix + "/prompts/system", &texts.SystemPrompt},
		{prefix + "/prompts/restrictions", &texts.Restrictions},
		{prefix + "/prompts/everrank-system", &texts.EverRankSystemPrompt},
		{prefix + "/prompts/everrank-restrictions", &texts.EverRankRestrictions},
	}
	names := make([]string, 0, len(slots))
	for _, slot := range slots {
		names = append(names, slot.name)
	}

	found, err := getter.GetParameters(ctx, names)
	if err != nil {
		return Embedded(), fmt.Errorf("persona: load overrides: %w", err)
	}
	for _, slot := range slots {
		if v := strings.TrimSpace(found[slot.name]); v != "" {
			*slot.dst = v
		}
	}
	return texts, nil
}
