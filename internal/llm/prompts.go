package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

const extractPrompt = `You are a knowledge extraction system for a bank's product and staff catalogue.
Extract every fact from the text below that fills one of the allowed slots.

Allowed slots (entity_kind: attributes):
%s

For each fact return:
- entity_key: a stable identifier for the entity, lower case words joined by underscores (e.g. "sparbrief_5000_6")
- entity_kind: one of the entity kinds above
- attribute: one of the attributes allowed for that kind
- value: the value as a short string, numbers without units
- evidence: the exact snippet of the text that proves the value

Enumerated attributes only accept these values:
%s

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"entity_key":"sparbrief_5000_6","entity_kind":"product","attribute":"interest_rate","value":"2.0","evidence":"Zinssatz 2,0 %% p.a."}]

If nothing can be extracted, respond with an empty array: []

Text:
---
%s
---`

const groundPrompt = `Verify if the following fact can be inferred from the provided text snippet.
The fact must be explicitly mentioned or directly logically derivable.

Fact to verify:
"%s"

Snippet:
"%s"

Respond ONLY with a JSON object: {"is_grounded": true} or {"is_grounded": false}`

func formatSlots(slots map[domain.EntityKind][]string) string {
	kinds := make([]string, 0, len(slots))
	for k := range slots {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var sb strings.Builder
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", k, strings.Join(slots[domain.EntityKind(k)], ", ")))
	}
	return sb.String()
}

func formatEnums() string {
	kinds := make([]string, 0, len(domain.AttributeEnums))
	for k := range domain.AttributeEnums {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var sb strings.Builder
	for _, k := range kinds {
		attrs := domain.AttributeEnums[domain.EntityKind(k)]
		names := make([]string, 0, len(attrs))
		for a := range attrs {
			names = append(names, a)
		}
		sort.Strings(names)
		for _, a := range names {
			sb.WriteString(fmt.Sprintf("- %s.%s: %s\n", k, a, strings.Join(attrs[a], ", ")))
		}
	}
	return sb.String()
}

func buildExtractPrompt(req domain.ExtractRequest) string {
	return fmt.Sprintf(extractPrompt, formatSlots(req.Slots), formatEnums(), req.Text)
}

func buildGroundPrompt(fact, evidence string) string {
	return fmt.Sprintf(groundPrompt, fact, evidence)
}
