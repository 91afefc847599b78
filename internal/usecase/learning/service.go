// Package learning turns external signals (scene descriptions, nearby
// points of interest, direct user requests) into vocabulary admissions.
package learning

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

// stopWords are pronouns and generic fillers a noun extractor tends to
// return on conversational text.
var stopWords = map[string]struct{}{
	"i": {}, "you": {}, "it": {}, "he": {}, "she": {}, "we": {},
	"they": {}, "this": {}, "that": {}, "thing": {}, "something": {},
	"stuff": {}, "someone": {}, "anything": {},
}

// Service feeds the vocabulary store from the three learning sources.
type Service struct {
	store     Store
	extractor NounExtractor
	recorder  Recorder
	log       *zap.Logger
}

// New creates a learning service. extractor and recorder may be nil:
// description learning then degrades to an empty result, and admission
// decisions go unjournaled.
func New(store Store, extractor NounExtractor, recorder Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, extractor: extractor, recorder: recorder, log: log}
}

// FromDescription admits object nouns found in a scene description and
// returns the names actually admitted. Extractor failure degrades to an
// empty result, never an error.
func (s *Service) FromDescription(ctx context.Context, text string) []string {
	if s.extractor == nil {
		s.log.Debug("noun extractor not configured, skipping description")
		return nil
	}

	nouns, err := s.extractor.Extract(ctx, text)
	if err != nil {
		s.log.Warn("noun extraction failed, skipping description", zap.Error(err))
		return nil
	}

	var admitted []string
	for _, noun := range nouns {
		name := domain.NormalizeClassName(noun)
		if name == "" {
			continue
		}
		if _, stop := stopWords[name]; stop {
			s.record(ctx, domain.SourceGemini, name, false, "stopword")
			continue
		}
		if len(name) <= 2 {
			s.record(ctx, domain.SourceGemini, name, false, "short")
			continue
		}

		if s.store.Add(name, domain.SourceGemini, nil) {
			admitted = append(admitted, name)
			s.record(ctx, domain.SourceGemini, name, true, "")
		} else {
			s.record(ctx, domain.SourceGemini, name, false, "not admitted")
		}
	}

	if len(admitted) > 0 {
		s.log.Info("description yielded vocabulary", zap.Strings("admitted", admitted))
	}
	return admitted
}

// FromPointsOfInterest admits the canonical objects mapped from nearby
// venue names and returns the names actually admitted.
func (s *Service) FromPointsOfInterest(ctx context.Context, poiNames []string) []string {
	var admitted []string
	for _, poi := range poiNames {
		lower := strings.ToLower(strings.TrimSpace(poi))
		if lower == "" {
			continue
		}

		meta := map[string]string{"poi": poi}
		for _, name := range candidatesForPOI(lower) {
			if s.store.Add(name, domain.SourceMaps, meta) {
				admitted = append(admitted, name)
				s.record(ctx, domain.SourceMaps, name, true, "")
			} else {
				s.record(ctx, domain.SourceMaps, name, false, "not admitted")
			}
		}
	}

	if len(admitted) > 0 {
		s.log.Info("points of interest yielded vocabulary", zap.Strings("admitted", admitted))
	}
	return admitted
}

// FromUserMemory admits one user-supplied object name directly.
func (s *Service) FromUserMemory(ctx context.Context, objectName string, metadata map[string]string) bool {
	name := domain.NormalizeClassName(objectName)
	if name == "" {
		return false
	}

	added := s.store.Add(name, domain.SourceMemory, metadata)
	if added {
		s.record(ctx, domain.SourceMemory, name, true, "")
		s.log.Info("user memory yielded vocabulary", zap.String("name", name))
	} else {
		s.record(ctx, domain.SourceMemory, name, false, "not admitted")
	}
	return added
}

// record journals one decision. Journal failures are logged and
// swallowed: учёт не должен ломать обучение.
func (s *Service) record(ctx context.Context, source domain.VocabSource, class string, accepted bool, reason string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordLearn(ctx, source, class, accepted, reason); err != nil {
		s.log.Warn("learn journal write failed", zap.Error(err))
	}
}
