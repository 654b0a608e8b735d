package masterdata

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
	"github.com/pcr-hr/hr-portal/internal/platform/cache"
)

// lookupPerPage is the page size used while paging through lookup sources.
const lookupPerPage = 200

// LookupOption is one choice of a select input.
type LookupOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionSet is a list of options plus the id to label map derived from it.
type OptionSet struct {
	Options []LookupOption    `json:"options"`
	Labels  map[string]string `json:"labels"`
}

func newOptionSet(options []LookupOption) OptionSet {
	labels := make(map[string]string, len(options))
	for _, opt := range options {
		labels[opt.Value] = opt.Label
	}
	if options == nil {
		options = []LookupOption{}
	}
	return OptionSet{Options: options, Labels: labels}
}

// Label returns the label of id, or id when unknown.
func (s OptionSet) Label(id string) string {
	if label, ok := s.Labels[id]; ok {
		return label
	}
	return id
}

// Lookups groups the reference options used by employee and service forms.
type Lookups struct {
	Departments   OptionSet `json:"departments"`
	Positions     OptionSet `json:"positions"`
	StudyPrograms OptionSet `json:"study_programs"`
}

// LookupService loads and caches lookup options.
type LookupService struct {
	cache *cache.Versioned
}

// NewLookupService constructs a LookupService. A nil cache loads every time.
func NewLookupService(c *cache.Versioned) *LookupService {
	return &LookupService{cache: c}
}

// Load returns options for records matching status ("active" or "all").
func (s *LookupService) Load(ctx context.Context, res backend.Resources, status string) (Lookups, error) {
	if status != query.StatusAll {
		status = query.StatusActive
	}
	key, err := s.cache.BuildKey(ctx, "lookups", status)
	if err != nil {
		return Lookups{}, err
	}
	var out Lookups
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return loadLookups(ctx, res, status)
	})
	return out, err
}

// Invalidate drops cached options after a referenced entity changes.
func (s *LookupService) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Affects reports whether mutations of entity change lookup options.
func (s *LookupService) Affects(entity string) bool {
	switch entity {
	case "departments", "positions", "study-programs":
		return true
	}
	return false
}

func loadLookups(ctx context.Context, res backend.Resources, status string) (Lookups, error) {
	st := query.State{Page: 1, PerPage: lookupPerPage, Status: status, JoinOperator: query.JoinAnd}
	var (
		out Lookups
		g   errgroup.Group
	)
	g.Go(func() error {
		rows, err := fetchAll[backend.Department, backend.DepartmentPayload](ctx, ResourceSource[backend.Department, backend.DepartmentPayload]{Resource: res.Departments}, st, func(d backend.Department) string { return d.ID })
		if err != nil {
			return fmt.Errorf("departments: %w", err)
		}
		options := make([]LookupOption, 0, len(rows))
		for _, d := range rows {
			options = append(options, LookupOption{Value: d.ID, Label: fmt.Sprintf("%s (%s)", d.Name, d.Alias)})
		}
		out.Departments = newOptionSet(options)
		return nil
	})
	g.Go(func() error {
		rows, err := fetchAll[backend.Position, backend.PositionPayload](ctx, ResourceSource[backend.Position, backend.PositionPayload]{Resource: res.Positions}, st, func(p backend.Position) string { return p.ID })
		if err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		options := make([]LookupOption, 0, len(rows))
		for _, p := range rows {
			options = append(options, LookupOption{Value: p.ID, Label: fmt.Sprintf("%s (%s)", p.NamaPosisi, p.AliasPosisi)})
		}
		out.Positions = newOptionSet(options)
		return nil
	})
	g.Go(func() error {
		rows, err := fetchAll[backend.StudyProgram, backend.StudyProgramPayload](ctx, ResourceSource[backend.StudyProgram, backend.StudyProgramPayload]{Resource: res.StudyPrograms}, st, func(p backend.StudyProgram) string { return p.ID })
		if err != nil {
			return fmt.Errorf("study programs: %w", err)
		}
		options := make([]LookupOption, 0, len(rows))
		for _, p := range rows {
			options = append(options, LookupOption{Value: p.ID, Label: fmt.Sprintf("%s (%s)", p.NamaProdi, p.KodeProdi)})
		}
		out.StudyPrograms = newOptionSet(options)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	return out, nil
}
