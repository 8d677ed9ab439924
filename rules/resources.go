package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

//go:embed resources.yaml
var defaultResources []byte

// Resources is the read-only bundle shared by every evaluation function
// built in one run. It is never modified after construction.
type Resources struct {
	ReferenceDate        ReferenceDateProvider
	Doid                 *DoidModel
	Icd                  *IcdModel
	MedicationCategories *Vocabulary
	Genes                *Vocabulary
	Drugs                *Vocabulary
	Expressions          *ExpressionCompiler
}

// Inputs returns a resolver validating against r
func (r *Resources) Inputs() FunctionInputResolver {
	return NewFunctionInputResolver(r)
}

// ReferenceDateProvider supplies the date evaluations are made against.
// Live dates come from the clock; otherwise the date was fixed, usually to
// the date of the most recent clinical data.
type ReferenceDateProvider struct {
	date time.Time
	live bool
}

// LiveReferenceDate uses now, truncated to the day
func LiveReferenceDate(now time.Time) ReferenceDateProvider {
	y, m, d := now.Date()
	return ReferenceDateProvider{date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), live: true}
}

// FixedReferenceDate uses date
func FixedReferenceDate(date time.Time) ReferenceDateProvider {
	return ReferenceDateProvider{date: date}
}

// Date returns the reference date
func (p ReferenceDateProvider) Date() time.Time { return p.date }

// IsLive reports whether the date was taken from the clock
func (p ReferenceDateProvider) IsLive() bool { return p.live }

// ParseReferenceDate returns a fixed provider for a value in DateLayout,
// or a live provider based on now when value is empty
func ParseReferenceDate(value string, now time.Time) (ReferenceDateProvider, error) {
	if value == "" {
		return LiveReferenceDate(now), nil
	}
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return ReferenceDateProvider{}, fmt.Errorf("invalid reference date %q: %w", value, err)
	}
	return FixedReferenceDate(date), nil
}

// DoidTerm is one node of the disease ontology
type DoidTerm struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Parents []string `yaml:"parents,omitempty"`
}

// DoidModel answers ancestry questions over disease ontology terms
type DoidModel struct {
	terms map[string]DoidTerm
}

// NewDoidModel indexes terms by id
func NewDoidModel(terms []DoidTerm) *DoidModel {
	m := &DoidModel{terms: make(map[string]DoidTerm, len(terms))}
	for _, t := range terms {
		m.terms[t.ID] = t
	}
	return m
}

// Exists reports whether doid is a known term
func (m *DoidModel) Exists(doid string) bool {
	_, ok := m.terms[doid]
	return ok
}

// Name returns the term name of doid, or doid itself if unknown
func (m *DoidModel) Name(doid string) string {
	if t, ok := m.terms[doid]; ok {
		return t.Name
	}
	return doid
}

// ExpandedWithAllParents returns doid and every ancestor of it
func (m *DoidModel) ExpandedWithAllParents(doid string) map[string]bool {
	seen := map[string]bool{}
	queue := []string{doid}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		queue = append(queue, m.terms[current].Parents...)
	}
	return seen
}

// IsDescendantOf reports whether doid equals ancestor or lies below it
func (m *DoidModel) IsDescendantOf(doid, ancestor string) bool {
	return m.ExpandedWithAllParents(doid)[ancestor]
}

// IcdNode is one ICD code with its title
type IcdNode struct {
	Code  string `yaml:"code"`
	Title string `yaml:"title"`
}

// IcdModel resolves ICD titles used in trial configuration
type IcdModel struct {
	byTitle map[string]IcdNode
}

// NewIcdModel indexes nodes by lower-cased title
func NewIcdModel(nodes []IcdNode) *IcdModel {
	m := &IcdModel{byTitle: make(map[string]IcdNode, len(nodes))}
	for _, n := range nodes {
		m.byTitle[strings.ToLower(n.Title)] = n
	}
	return m
}

// ResolveTitle finds the node with the given title, ignoring case
func (m *IcdModel) ResolveTitle(title string) (IcdNode, bool) {
	n, ok := m.byTitle[strings.ToLower(strings.TrimSpace(title))]
	return n, ok
}

// IsCodeOrChild reports whether code equals parent or is one of its
// subcodes. ICD subcodes extend their parent code.
func IsCodeOrChild(code, parent string) bool {
	return strings.HasPrefix(strings.ToUpper(code), strings.ToUpper(parent))
}

// Vocabulary is a closed, case-insensitive set of names
type Vocabulary struct {
	canonical map[string]string
}

// NewVocabulary creates a vocabulary over values
func NewVocabulary(values ...string) *Vocabulary {
	v := &Vocabulary{canonical: make(map[string]string, len(values))}
	for _, value := range values {
		v.canonical[strings.ToLower(value)] = value
	}
	return v
}

// Resolve returns the canonical spelling of value
func (v *Vocabulary) Resolve(value string) (string, bool) {
	c, ok := v.canonical[strings.ToLower(strings.TrimSpace(value))]
	return c, ok
}

// Values returns the canonical values in sorted order
func (v *Vocabulary) Values() []string {
	out := make([]string, 0, len(v.canonical))
	for _, c := range v.canonical {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// resourceFile is the YAML layout of a resource bundle
type resourceFile struct {
	Doid                 []DoidTerm `yaml:"doid"`
	Icd                  []IcdNode  `yaml:"icd"`
	MedicationCategories []string   `yaml:"medicationCategories"`
	Genes                []string   `yaml:"genes"`
	Drugs                []string   `yaml:"drugs"`
}

// ParseResources builds resources from a YAML bundle
func ParseResources(data []byte, referenceDate ReferenceDateProvider) (*Resources, error) {
	var file resourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}
	compiler, err := NewExpressionCompiler()
	if err != nil {
		return nil, err
	}
	return &Resources{
		ReferenceDate:        referenceDate,
		Doid:                 NewDoidModel(file.Doid),
		Icd:                  NewIcdModel(file.Icd),
		MedicationCategories: NewVocabulary(file.MedicationCategories...),
		Genes:                NewVocabulary(file.Genes...),
		Drugs:                NewVocabulary(file.Drugs...),
		Expressions:          compiler,
	}, nil
}

// LoadResources reads a resource bundle from path. An empty path selects
// the bundle built into the binary.
func LoadResources(path string, referenceDate ReferenceDateProvider) (*Resources, error) {
	if path == "" {
		return DefaultResources(referenceDate)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}
	return ParseResources(data, referenceDate)
}

// DefaultResources returns the bundle built into the binary
func DefaultResources(referenceDate ReferenceDateProvider) (*Resources, error) {
	return ParseResources(defaultResources, referenceDate)
}
