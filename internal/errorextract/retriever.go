package errorextract

import (
	"context"
	"fmt"
)

// Retrieve is the SingleShotRetriever (C3): consult the resume cache,
// else drive the ChunkReassembler, normalise, and write the cache before
// returning. The bool result reports whether the value came from the
// cache (spec §4.3 threadData.resumed), used for the RowExpander info
// line and by callers tracking cache effectiveness.
func (s *Session) Retrieve(ctx context.Context, expression, field string) (*string, bool, error) {
	cached, hit, err := s.Resume.Get(ctx, expression)
	if err != nil {
		return nil, false, fmt.Errorf("errorextract: resume get: %w", err)
	}
	if hit {
		v := cached
		if inner, ok := s.Extractor.ExtractFrom(cached); ok {
			v = inner
		}
		display := &v
		if s.Config.SafeCharEncode {
			encoded := s.displayEncode(v)
			display = &encoded
		}
		return display, true, nil
	}

	final, err := s.assembleScalar(ctx, expression, field)
	if err != nil {
		return nil, false, err
	}

	if final != nil {
		if err := s.Resume.Put(ctx, expression, *final); err != nil {
			return nil, false, fmt.Errorf("errorextract: resume put: %w", err)
		}
	}

	display := final
	if s.Config.SafeCharEncode && final != nil {
		encoded := s.displayEncode(*final)
		display = &encoded
	}
	return display, false, nil
}
