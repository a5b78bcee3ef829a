// member_resolver derives the distinct values ("members") a dimension takes across a result set.
package member_resolver

import (
	"context"

	"dimfilter/models"
)

// Resolver resolves the members of one dimension of a data source. Callers must treat it as
// asynchronous: today's scan completes immediately, but a remote lookup may suspend.
type Resolver interface {
	Resolve(ctx context.Context, source *models.DataSource, dimensionKey string) ([]models.Member, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context, *models.DataSource, string) ([]models.Member, error)

func (fn ResolverFunc) Resolve(
	ctx context.Context,
	source *models.DataSource,
	dimensionKey string,
) ([]models.Member, error) {
	return fn(ctx, source, dimensionKey)
}

// Scan resolves members by scanning the already-loaded records of the source.
type Scan struct {
	returnType models.ReturnType
}

// NewScan returns a scanning resolver identifying members by the passed cell sub-field.
func NewScan(returnType models.ReturnType) *Scan {
	return &Scan{returnType: returnType}
}

// Resolve returns the distinct non-empty values of dimensionKey in order of first occurrence.
// A nil source or absent data yields models.ErrDataUnavailable and no members.
func (s *Scan) Resolve(
	_ context.Context,
	source *models.DataSource,
	dimensionKey string,
) ([]models.Member, error) {
	if source == nil {
		return nil, models.ErrDataUnavailable
	}
	column, err := source.Column(dimensionKey)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(column))
	for _, cell := range column {
		values = append(values, cell.Identity(s.returnType))
	}
	return Distinct(values), nil
}

// Distinct projects values into members, skipping empty values and keeping only the first
// occurrence of each. Output order is input order, not sorted.
func Distinct(values []string) []models.Member {
	seen := make(map[string]struct{}, len(values))
	members := []models.Member{}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		members = append(members, models.Member{ID: v, Label: v})
	}
	return members
}
