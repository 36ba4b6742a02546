package prompts

import (
	"fmt"
	"strings"
	"sync"
)

var (
	registryOnce sync.Once
	registry     map[PromptName]Template
)

func loadRegistry() {
	registryOnce.Do(func() {
		registry = map[PromptName]Template{}
		for _, s := range specs() {
			t, err := MakeTemplate(s)
			if err != nil {
				panic(err)
			}
			registry[t.Name] = t
		}
	})
}

// Build renders the named prompt for in.
func Build(name PromptName, in Input) (Prompt, error) {
	loadRegistry()
	t, ok := registry[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	return Prompt{
		Name:       string(t.Name),
		Version:    t.Version,
		SchemaName: strings.TrimSpace(t.SchemaName),
		Schema:     t.Schema(),
		System:     t.System(in),
		User:       t.User(in),
	}, nil
}

// Names lists the registered prompts.
func Names() []PromptName {
	loadRegistry()
	out := make([]PromptName, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}
