package llm

// Catalog is the list of models offered for selection.
type Catalog []ModelRef

// DefaultCatalog lists the models offered when none are configured.
func DefaultCatalog() Catalog {
	return Catalog{
		{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5"},
		{Provider: ProviderAnthropic, Model: "claude-haiku-4-5"},
		{Provider: ProviderOpenAI, Model: "gpt-4o"},
		{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
		{Provider: ProviderEcho, Model: "offline"},
	}
}

// ParseCatalog parses a list of "provider:model" strings.
func ParseCatalog(refs []string) (Catalog, error) {
	out := make(Catalog, 0, len(refs))
	for _, s := range refs {
		ref, err := ParseModelRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// Contains reports whether ref is listed.
func (c Catalog) Contains(ref ModelRef) bool {
	for _, m := range c {
		if m == ref {
			return true
		}
	}
	return false
}

// Strings renders every entry as "provider:model".
func (c Catalog) Strings() []string {
	out := make([]string, len(c))
	for i, m := range c {
		out[i] = m.String()
	}
	return out
}
