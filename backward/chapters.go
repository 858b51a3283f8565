package backward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentstep/llms"
)

const unclassifiedChapterName = "Unclassified"

const aggregateSystemPrompt = `You are a curriculum organizer. You receive a set of
background/question/answer triples, each labeled with an index of the form
<list>-<item>. Group them into chapters by subject matter. Every index must
appear in exactly one chapter. Give each chapter a short descriptive name
and one sentence of reasoning for the grouping.`

const attachSystemPrompt = `You are a curriculum organizer maintaining an existing
chapter hierarchy. For each new chapter, pick the existing chapter it best
belongs under, or none if it starts a new topic.`

type chapterEnvelope struct {
	ChapterName string            `json:"chapter_name"`
	Reason      string            `json:"reason"`
	QAs         []json.RawMessage `json:"qas"`
}

type attachEnvelope struct {
	ChapterName string `json:"chapter_name"`
	ParentID    string `json:"parent_id"`
}

// chapter is the aggregation stage's intermediate shape: a named grouping of
// BQA items, not yet placed into a ChapterStructure.
type chapter struct {
	Name   string
	Reason string
	Items  []BQAItem
}

// aggregateChapters groups every BQAItem across all lists into chapters with
// a single LLM call over the whole corpus. Indices the model drops are
// collected into an Unclassified chapter; indices it repeats stay with their
// first chapter, so the union over chapters always equals the input set.
func (p *run) aggregateChapters(ctx context.Context, lists []BQAList) ([]chapter, error) {
	byIndex := map[string]BQAItem{}
	ordered := []string{}
	for li, list := range lists {
		for ii, item := range list.Items {
			idx := ItemIndex(li+1, ii+1)
			byIndex[idx] = item
			ordered = append(ordered, idx)
		}
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	messages := []llms.Message{
		{Role: "system", Content: aggregateSystemPrompt},
		{Role: "user", Content: renderAggregatePrompt(lists)},
	}
	var envelopes []chapterEnvelope
	schema := &llms.Schema{Name: "chapter_grouping", Target: &envelopes, Normalize: true}
	usage, err := p.llm.StructuredOutput(ctx, messages, schema, llms.Options{Temperature: 0})
	if err != nil {
		return nil, err
	}
	p.addCall(usage)

	assigned := map[string]bool{}
	var chapters []chapter
	for _, env := range envelopes {
		if env.ChapterName == "" {
			continue
		}
		ch := chapter{Name: env.ChapterName, Reason: env.Reason}
		for _, rawIdx := range env.QAs {
			idx, ok := decodeIndex(rawIdx)
			if !ok {
				continue
			}
			item, known := byIndex[idx]
			if !known {
				p.logger.Warn("chapter references unknown index", "chapter", env.ChapterName, "index", idx)
				continue
			}
			if assigned[idx] {
				p.logger.Warn("index assigned to more than one chapter, keeping first", "chapter", env.ChapterName, "index", idx)
				continue
			}
			assigned[idx] = true
			ch.Items = append(ch.Items, item)
		}
		if len(ch.Items) > 0 {
			chapters = append(chapters, ch)
		}
	}

	var dropped []BQAItem
	for _, idx := range ordered {
		if !assigned[idx] {
			dropped = append(dropped, byIndex[idx])
		}
	}
	if len(dropped) > 0 {
		p.logger.Warn("aggregation dropped items, assigning to Unclassified", "count", len(dropped))
		p.appendLog(fmt.Sprintf("aggregation dropped %d item(s), assigned to %s", len(dropped), unclassifiedChapterName))
		chapters = append(chapters, chapter{
			Name:   unclassifiedChapterName,
			Reason: "items the aggregation response did not reference",
			Items:  dropped,
		})
	}
	return chapters, nil
}

// decodeIndex accepts the index field as either a JSON string ("1-2") or, as
// some models emit for single-list corpora, a bare number (2 → "1-2").
func decodeIndex(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n >= 1 {
		return ItemIndex(1, n), true
	}
	return "", false
}

func renderAggregatePrompt(lists []BQAList) string {
	var b strings.Builder
	b.WriteString("Triples:\n")
	for li, list := range lists {
		for ii, item := range list.Items {
			fmt.Fprintf(&b, "%s.", ItemIndex(li+1, ii+1))
			if item.Background != "" {
				fmt.Fprintf(&b, " Background: %s", item.Background)
			}
			fmt.Fprintf(&b, " Q: %s A: %s\n", item.Question, item.Answer)
		}
	}
	b.WriteString("\nRespond with a JSON object of the shape " +
		`{"chapters": [{"chapter_name": "...", "reason": "...", "qas": ["1-1", "1-2"]}]}.`)
	return b.String()
}

// placeChapters turns the flat chapter list into nodes of a ChapterStructure.
// With no existing structure every chapter becomes a root. With one, a
// second LLM call matches each chapter to its best-fitting existing node
// among those within maxLevel; a chapter whose parent already sits at
// maxLevel is attached to that parent's deepest allowed ancestor, so the
// structure never grows past the requested depth.
func (p *run) placeChapters(ctx context.Context, structure *ChapterStructure, chapters []chapter, maxLevel int) ([]*ChapterNode, error) {
	nodes := make([]*ChapterNode, 0, len(chapters))
	for _, ch := range chapters {
		node := &ChapterNode{
			ID:     uuid.NewString(),
			Title:  ch.Name,
			Reason: ch.Reason,
		}
		for _, item := range ch.Items {
			node.RelatedCQAIDs = append(node.RelatedCQAIDs, item.CQAID)
		}
		nodes = append(nodes, node)
	}

	if structure.IsEmpty() {
		for _, node := range nodes {
			structure.AddRoot(node)
		}
		return nodes, nil
	}

	parents, err := p.matchParents(ctx, structure, chapters, maxLevel)
	if err != nil {
		return nil, err
	}
	for i, node := range nodes {
		parentID := parents[chapters[i].Name]
		if parentID == "" {
			structure.AddRoot(node)
			continue
		}
		// A child of a node already at maxLevel would exceed the depth
		// budget; climb to the deepest ancestor that keeps us within it.
		if maxLevel > 0 {
			for structure.Depth(parentID) >= maxLevel {
				idx := structure.parentIndex()
				grand, ok := idx[parentID]
				if !ok {
					parentID = ""
					break
				}
				parentID = grand
			}
		}
		if parentID == "" {
			structure.AddRoot(node)
		} else {
			structure.AddChild(parentID, node)
		}
	}
	return nodes, nil
}

// matchParents asks the LLM, once for the whole batch, which existing node
// each new chapter belongs under. Unmatched or unparseable entries fall back
// to roots.
func (p *run) matchParents(ctx context.Context, structure *ChapterStructure, chapters []chapter, maxLevel int) (map[string]string, error) {
	candidateIDs := structure.NodesAtMaxDepth(maxLevel)

	var b strings.Builder
	b.WriteString("Existing chapters:\n")
	for _, id := range candidateIDs {
		fmt.Fprintf(&b, "- id=%s path=%s\n", id, structure.Path(id))
	}
	b.WriteString("\nNew chapters:\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, "- %s (%s)\n", ch.Name, ch.Reason)
	}
	b.WriteString("\nRespond with a JSON array in the shape " +
		`[{"chapter_name": "...", "parent_id": "<existing id or empty string>"}].`)

	messages := []llms.Message{
		{Role: "system", Content: attachSystemPrompt},
		{Role: "user", Content: b.String()},
	}
	var envelopes []attachEnvelope
	schema := &llms.Schema{Name: "chapter_attachment", Target: &envelopes, Normalize: true}
	usage, err := p.llm.StructuredOutput(ctx, messages, schema, llms.Options{Temperature: 0})
	var schemaErr *llms.SchemaViolationError
	if errors.As(err, &schemaErr) {
		p.addCall(usage)
		p.logger.Warn("chapter attachment response violated schema, attaching new chapters as roots")
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	p.addCall(usage)

	known := map[string]bool{}
	for _, id := range candidateIDs {
		known[id] = true
	}
	parents := map[string]string{}
	for _, env := range envelopes {
		if known[env.ParentID] {
			parents[env.ChapterName] = env.ParentID
		}
	}
	return parents, nil
}
