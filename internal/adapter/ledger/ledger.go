package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"rlm/internal/domain"
	"rlm/internal/port"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rlm/ledger"))

// Ledger merges per-chunk results into one deduplicated view. All state
// is owned by the Ledger value; Ingest calls serialize on its mutex.
type Ledger struct {
	norm port.Normalizer

	mu       sync.Mutex
	claims   map[string][]*claimGroup // by normalized text
	reported map[string]*domain.Contradiction
	missing  map[string]domain.Missing
}

func New(norm port.Normalizer) *Ledger {
	return &Ledger{
		norm:     norm,
		claims:   make(map[string][]*claimGroup),
		reported: make(map[string]*domain.Contradiction),
		missing:  make(map[string]domain.Missing),
	}
}

// claimGroup is one deduplicated claim under construction.
type claimGroup struct {
	text       string
	norm       string
	evidence   map[evidenceKey]domain.Evidence
	confidence domain.Confidence
}

type evidenceKey struct {
	source   string
	location string
}

func (g *claimGroup) keys() []evidenceKey {
	keys := make([]evidenceKey, 0, len(g.evidence))
	for k := range g.evidence {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Ingest validates result and folds it into the ledger. An invalid record
// is rejected with ErrInvalidResult before anything is changed.
func (l *Ledger) Ingest(result domain.ChunkResult) error {
	if err := l.validate(result); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range result.Answers {
		l.addAnswer(a)
	}
	for _, c := range result.Contradictions {
		l.addReported(c)
	}
	for _, m := range result.Missing {
		l.addMissing(result.ChunkID, m)
	}
	return nil
}

func (l *Ledger) validate(result domain.ChunkResult) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: chunk %q: %s", domain.ErrInvalidResult, result.ChunkID, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(result.ChunkID) == "" {
		return invalid("missing chunk_id")
	}
	for i, a := range result.Answers {
		if l.norm.Normalize(a.Claim) == "" {
			return invalid("answer %d has no claim text", i)
		}
		if a.Confidence != "" && !a.Confidence.Valid() {
			return invalid("answer %d has unknown confidence %q", i, a.Confidence)
		}
		for j, e := range a.Evidence {
			if strings.TrimSpace(e.Source) == "" {
				return invalid("answer %d evidence %d has no source", i, j)
			}
		}
	}
	for i, c := range result.Contradictions {
		if l.norm.Normalize(c.ClaimA) == "" || l.norm.Normalize(c.ClaimB) == "" {
			return invalid("contradiction %d needs two claims", i)
		}
	}
	for i, m := range result.Missing {
		if strings.TrimSpace(m.Question) == "" {
			return invalid("missing item %d has no question", i)
		}
	}
	return nil
}

// addAnswer merges a into every group it matches. A match needs the same
// normalized text and overlapping evidence; answers without evidence
// match groups without evidence. Matched groups fold into one, so the
// result does not depend on ingestion order.
func (l *Ledger) addAnswer(a domain.Answer) {
	norm := l.norm.Normalize(a.Claim)
	confidence := a.Confidence
	if confidence == "" {
		confidence = domain.ConfidenceLow
	}

	merged := &claimGroup{
		text:       strings.TrimSpace(a.Claim),
		norm:       norm,
		evidence:   make(map[evidenceKey]domain.Evidence),
		confidence: confidence,
	}
	for _, e := range a.Evidence {
		addEvidence(merged.evidence, e)
	}

	var rest []*claimGroup
	for _, g := range l.claims[norm] {
		if !groupsMatch(g, merged) {
			rest = append(rest, g)
			continue
		}
		if g.text < merged.text {
			merged.text = g.text
		}
		if g.confidence.Rank() > merged.confidence.Rank() {
			merged.confidence = g.confidence
		}
		for _, e := range g.evidence {
			addEvidence(merged.evidence, e)
		}
	}
	l.claims[norm] = append(rest, merged)
}

func groupsMatch(a, b *claimGroup) bool {
	if len(a.evidence) == 0 || len(b.evidence) == 0 {
		return len(a.evidence) == 0 && len(b.evidence) == 0
	}
	return evidenceOverlaps(a.evidence, b.evidence)
}

func evidenceOverlaps(a, b map[evidenceKey]domain.Evidence) bool {
	for ka := range a {
		for kb := range b {
			if ka.source == kb.source && locationsOverlap(ka.location, kb.location) {
				return true
			}
		}
	}
	return false
}

// addEvidence keeps one entry per (source, location). When quotes differ
// the shorter non-empty one wins, then the lexically smaller.
func addEvidence(set map[evidenceKey]domain.Evidence, e domain.Evidence) {
	e.Source = strings.TrimSpace(e.Source)
	e.Location = strings.TrimSpace(e.Location)
	key := evidenceKey{e.Source, e.Location}

	prev, ok := set[key]
	if !ok || preferQuote(e.Quote, prev.Quote) {
		set[key] = e
	}
}

func preferQuote(candidate, current string) bool {
	switch {
	case current == "":
		return candidate != ""
	case candidate == "":
		return false
	case len(candidate) != len(current):
		return len(candidate) < len(current)
	default:
		return candidate < current
	}
}

func (l *Ledger) addReported(c domain.Contradiction) {
	a, b := strings.TrimSpace(c.ClaimA), strings.TrimSpace(c.ClaimB)
	na, nb := l.norm.Normalize(a), l.norm.Normalize(b)
	if nb < na {
		a, b = b, a
	}
	key := pairKey(na, nb)

	existing, ok := l.reported[key]
	if !ok {
		existing = &domain.Contradiction{ClaimA: a, ClaimB: b, Origin: domain.OriginReported}
		l.reported[key] = existing
	}
	if a < existing.ClaimA {
		existing.ClaimA = a
	}
	if b < existing.ClaimB {
		existing.ClaimB = b
	}

	set := make(map[evidenceKey]domain.Evidence)
	for _, e := range existing.Evidence {
		addEvidence(set, e)
	}
	for _, e := range c.Evidence {
		addEvidence(set, e)
	}
	existing.Evidence = sortedEvidence(set)
}

func (l *Ledger) addMissing(chunkID string, m domain.Missing) {
	if m.ChunkID == "" {
		m.ChunkID = chunkID
	}
	m.Question = strings.TrimSpace(m.Question)
	m.SuggestedSearch = strings.TrimSpace(m.SuggestedSearch)
	key := l.norm.Normalize(m.Question) + "\x00" + l.norm.Normalize(m.SuggestedSearch)

	if prev, ok := l.missing[key]; ok && !missingLess(m, prev) {
		return
	}
	l.missing[key] = m
}

func missingLess(a, b domain.Missing) bool {
	if a.ChunkID != b.ChunkID {
		return a.ChunkID < b.ChunkID
	}
	if a.Question != b.Question {
		return a.Question < b.Question
	}
	return a.SuggestedSearch < b.SuggestedSearch
}

// Finalize returns the deduplicated claims, contradictions and missing
// items in a deterministic order. The ledger stays usable afterwards.
func (l *Ledger) Finalize() domain.LedgerReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	groups := l.sortedGroups()

	report := domain.LedgerReport{
		Claims:         make([]domain.Claim, 0, len(groups)),
		Contradictions: []domain.Contradiction{},
		Missing:        make([]domain.Missing, 0, len(l.missing)),
	}
	for _, g := range groups {
		report.Claims = append(report.Claims, domain.Claim{
			ID:         groupID(g),
			Text:       g.text,
			Evidence:   sortedEvidence(g.evidence),
			Confidence: g.confidence,
		})
	}

	for key, c := range l.reported {
		out := *c
		out.ID = uuid.NewSHA1(idNamespace, []byte("contradiction\x00"+key)).String()
		report.Contradictions = append(report.Contradictions, out)
	}
	report.Contradictions = append(report.Contradictions, l.detect(groups)...)
	sort.Slice(report.Contradictions, func(i, j int) bool {
		a, b := report.Contradictions[i], report.Contradictions[j]
		if a.Origin != b.Origin {
			return a.Origin > b.Origin // reported first
		}
		if a.ClaimA != b.ClaimA {
			return a.ClaimA < b.ClaimA
		}
		if a.ClaimB != b.ClaimB {
			return a.ClaimB < b.ClaimB
		}
		return a.ID < b.ID
	})

	for _, m := range l.missing {
		report.Missing = append(report.Missing, m)
	}
	sort.Slice(report.Missing, func(i, j int) bool {
		return missingLess(report.Missing[i], report.Missing[j])
	})

	return report
}

// detect pairs claims that say the same thing with opposite polarity about
// overlapping evidence. Pairs already reported are skipped.
func (l *Ledger) detect(groups []*claimGroup) []domain.Contradiction {
	type polarized struct {
		group   *claimGroup
		negated bool
	}
	byStem := make(map[string][]polarized)
	var stems []string
	for _, g := range groups {
		if len(g.evidence) == 0 {
			continue
		}
		stem, negated := l.norm.Polarity(g.text)
		if _, ok := byStem[stem]; !ok {
			stems = append(stems, stem)
		}
		byStem[stem] = append(byStem[stem], polarized{g, negated})
	}

	var found []domain.Contradiction
	for _, stem := range stems {
		members := byStem[stem]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if a.negated == b.negated || !evidenceOverlaps(a.group.evidence, b.group.evidence) {
					continue
				}
				if a.negated {
					a, b = b, a
				}
				key := pairKey(a.group.norm, b.group.norm)
				if _, ok := l.reported[key]; ok {
					continue
				}

				set := make(map[evidenceKey]domain.Evidence)
				for _, e := range a.group.evidence {
					addEvidence(set, e)
				}
				for _, e := range b.group.evidence {
					addEvidence(set, e)
				}
				found = append(found, domain.Contradiction{
					ID:       uuid.NewSHA1(idNamespace, []byte("detected\x00"+groupID(a.group)+"\x00"+groupID(b.group))).String(),
					ClaimA:   a.group.text,
					ClaimB:   b.group.text,
					Evidence: sortedEvidence(set),
					Origin:   domain.OriginDetected,
				})
			}
		}
	}
	return found
}

func (l *Ledger) sortedGroups() []*claimGroup {
	var groups []*claimGroup
	for _, gs := range l.claims {
		groups = append(groups, gs...)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].norm != groups[j].norm {
			return groups[i].norm < groups[j].norm
		}
		return groupID(groups[i]) < groupID(groups[j])
	})
	return groups
}

// groupID is a UUIDv5 over the normalized text and the sorted evidence
// keys, so the same claim always gets the same id.
func groupID(g *claimGroup) string {
	var b strings.Builder
	b.WriteString(g.norm)
	for _, k := range g.keys() {
		b.WriteString("\x00")
		b.WriteString(k.source)
		b.WriteString("\x01")
		b.WriteString(k.location)
	}
	return uuid.NewSHA1(idNamespace, []byte(b.String())).String()
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func sortedEvidence(set map[evidenceKey]domain.Evidence) []domain.Evidence {
	keys := make([]evidenceKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sortKeys(keys)

	out := make([]domain.Evidence, 0, len(keys))
	for _, k := range keys {
		out = append(out, set[k])
	}
	return out
}

// sortKeys orders evidence by source, then line ranges numerically, then
// any other locations as strings.
func sortKeys(keys []evidenceKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.source != b.source {
			return a.source < b.source
		}
		ra, okA := parseRange(a.location)
		rb, okB := parseRange(b.location)
		switch {
		case okA != okB:
			return okA
		case okA && ra != rb:
			if ra.start != rb.start {
				return ra.start < rb.start
			}
			return ra.end < rb.end
		default:
			return a.location < b.location
		}
	})
}
