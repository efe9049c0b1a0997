package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Entity extraction prompts the text-completion service for a small JSON
// structure and merges the result into the graph under the chunk's tenant
// key. Extraction is best-effort: the chunk node is already stored before
// this runs, and a failed or malformed extraction leaves it untouched.

const extractPromptTemplate = `Extract the named entities and the relationships between them from the text below.
Respond with JSON only, no prose, in this exact shape:
{"entities":[{"name":"...","type":"..."}],"relations":[{"source":"...","target":"...","type":"..."}]}

Text:
%s`

// maxExtractChars truncates extraction input so one chunk cannot blow the
// completion context window.
const maxExtractChars = 6000

type extractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type extractedRelation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type extraction struct {
	Entities  []extractedEntity   `json:"entities"`
	Relations []extractedRelation `json:"relations"`
}

func (g *GraphIndex) extract(ctx context.Context, doc Document) error {
	text := clipRunes(doc.Text, maxExtractChars)
	raw, err := g.generate(ctx, fmt.Sprintf(extractPromptTemplate, text))
	if err != nil {
		return fmt.Errorf("completion call: %w", err)
	}
	ext, err := parseExtraction(raw)
	if err != nil {
		return err
	}
	if len(ext.Entities) == 0 {
		return nil
	}
	return g.storeExtraction(ctx, doc, ext)
}

// clipRunes cuts s to at most max bytes without splitting a UTF-8 rune; the
// cut backs up to the nearest rune boundary.
func clipRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseExtraction tolerates code fences and leading prose around the JSON body.
func parseExtraction(raw string) (extraction, error) {
	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 {
		s = s[:end+1]
	}
	var ext extraction
	if err := json.Unmarshal([]byte(s), &ext); err != nil {
		return extraction{}, fmt.Errorf("malformed extraction output: %w", err)
	}
	return ext, nil
}

func (g *GraphIndex) storeExtraction(ctx context.Context, doc Document, ext extraction) error {
	sess, err := g.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	entities := make([]map[string]any, 0, len(ext.Entities))
	for _, e := range ext.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		entities = append(entities, map[string]any{"name": e.Name, "type": e.Type})
	}
	relations := make([]map[string]any, 0, len(ext.Relations))
	for _, r := range ext.Relations {
		if strings.TrimSpace(r.Source) == "" || strings.TrimSpace(r.Target) == "" {
			continue
		}
		relations = append(relations, map[string]any{"source": r.Source, "target": r.Target, "type": r.Type})
	}

	params := map[string]any{
		"project_id":   doc.Tenant.ProjectID,
		"tenant_scope": doc.Tenant.Scope,
		"content_hash": doc.ContentHash,
		"entities":     entities,
		"relations":    relations,
	}

	// Entity nodes carry the same tenant properties as chunks so tenant
	// sweeps and counts cover them without special cases.
	_, err = sess.Run(ctx,
		"MATCH (c:Chunk {content_hash: $content_hash}) "+
			"UNWIND $entities AS ent "+
			"MERGE (e:Entity {name: ent.name, project_id: $project_id, tenant_scope: $tenant_scope}) "+
			"SET e.type = ent.type "+
			"MERGE (e)-[:MENTIONED_IN]->(c)",
		params)
	if err != nil {
		return fmt.Errorf("store entities: %w: %v", ErrUnavailable, err)
	}

	if len(relations) == 0 {
		return nil
	}
	_, err = sess.Run(ctx,
		"UNWIND $relations AS rel "+
			"MATCH (a:Entity {name: rel.source, project_id: $project_id, tenant_scope: $tenant_scope}) "+
			"MATCH (b:Entity {name: rel.target, project_id: $project_id, tenant_scope: $tenant_scope}) "+
			"MERGE (a)-[r:RELATES_TO]->(b) SET r.type = rel.type",
		params)
	if err != nil {
		return fmt.Errorf("store relations: %w: %v", ErrUnavailable, err)
	}
	return nil
}
