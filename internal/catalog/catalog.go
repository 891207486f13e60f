// internal/catalog/catalog.go
//
// Destination catalog service.
// Responsibilities:
//   - Create, read and partially update destinations.
//   - Serve a uniformly random destination, and a destination of the day.
//   - Bulk import with per-row outcomes inside one transaction.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/internal/apperr"
	"github.com/robalobadob/globetrotter/internal/daily"
	"github.com/robalobadob/globetrotter/internal/ids"
	"github.com/robalobadob/globetrotter/internal/metrics"
	"github.com/robalobadob/globetrotter/internal/model"
	"github.com/robalobadob/globetrotter/internal/store"
	"github.com/robalobadob/globetrotter/internal/validate"
)

// Input describes a new destination.
type Input struct {
	City     string   `json:"city" validate:"required,max=120"`
	Country  string   `json:"country" validate:"required,max=120"`
	Clues    []string `json:"clues" validate:"omitempty,dive,required"`
	FunFacts []string `json:"funFact" validate:"omitempty,dive,required"`
	Trivia   []string `json:"trivia" validate:"omitempty,dive,required"`
	ImageURL *string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

func (in *Input) normalize() {
	in.City = strings.TrimSpace(in.City)
	in.Country = strings.TrimSpace(in.Country)
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	City     *string  `json:"city,omitempty" validate:"omitnil,max=120"`
	Country  *string  `json:"country,omitempty" validate:"omitnil,max=120"`
	Clues    []string `json:"clues,omitempty" validate:"omitempty,dive,required"`
	FunFacts []string `json:"funFact,omitempty" validate:"omitempty,dive,required"`
	Trivia   []string `json:"trivia,omitempty" validate:"omitempty,dive,required"`
	ImageURL *string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// BulkResult reports a bulk import.
type BulkResult struct {
	Created int    `json:"created"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// Service manages the destination catalog.
type Service struct {
	store     store.Store
	now       func() time.Time
	intn      func(n int) int
	dailySalt string
	metrics   *metrics.Metrics
}

func NewService(st store.Store, m *metrics.Metrics) *Service {
	return &Service{store: st, now: time.Now, intn: rand.IntN, dailySalt: "globetrotter", metrics: m}
}

// WithDailySalt changes the salt behind the destination of the day.
func (s *Service) WithDailySalt(salt string) *Service {
	if salt != "" {
		s.dailySalt = salt
	}
	return s
}

func (s *Service) build(in Input) *model.Destination {
	return &model.Destination{
		ID:        ids.New(),
		City:      in.City,
		Country:   in.Country,
		Clues:     nonNil(in.Clues),
		FunFacts:  nonNil(in.FunFacts),
		Trivia:    nonNil(in.Trivia),
		ImageURL:  in.ImageURL,
		CreatedAt: s.now().UTC(),
	}
}

// Create validates and stores a destination.
func (s *Service) Create(ctx context.Context, in Input) (*model.Destination, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	d := s.build(in)
	if err := s.store.Destinations().Create(ctx, d); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to create destination", err)
	}
	log.Info().Str("destination", d.ID).Str("city", d.City).Msg("destination created")
	return d, nil
}

// Get returns one destination.
func (s *Service) Get(ctx context.Context, id string) (*model.Destination, error) {
	if id == "" {
		return nil, apperr.New(apperr.InvalidArgument, "id is required")
	}
	d, err := s.store.Destinations().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "Destination not found", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load destination", err)
	}
	return d, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*model.Destination, error) {
	for _, f := range []**string{&p.City, &p.Country} {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		if v == "" {
			return nil, apperr.New(apperr.InvalidArgument, "city and country cannot be empty")
		}
		*f = &v
	}
	if err := validate.Struct(p); err != nil {
		return nil, err
	}

	var out *model.Destination
	err := s.store.InTx(ctx, func(tx store.Store) error {
		d, err := tx.Destinations().Get(ctx, id)
		if err != nil {
			return err
		}
		if p.City != nil {
			d.City = *p.City
		}
		if p.Country != nil {
			d.Country = *p.Country
		}
		if p.Clues != nil {
			d.Clues = p.Clues
		}
		if p.FunFacts != nil {
			d.FunFacts = p.FunFacts
		}
		if p.Trivia != nil {
			d.Trivia = p.Trivia
		}
		if p.ImageURL != nil {
			d.ImageURL = p.ImageURL
		}
		out = d
		return tx.Destinations().Update(ctx, d)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "Destination not found", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to update destination", err)
	}
	return out, nil
}

// Random returns a uniformly sampled destination.
func (s *Service) Random(ctx context.Context) (*model.Destination, error) {
	d, err := s.store.Destinations().Sample(ctx, s.intn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NoContent, "No destinations available")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load destination", err)
	}
	return d, nil
}

// Daily returns the destination of the day for the UTC date of now. The pick
// is stable for a day as long as the catalog does not change.
func (s *Service) Daily(ctx context.Context) (*model.Destination, string, error) {
	now := s.now()
	d, err := s.store.Destinations().Sample(ctx, func(n int) int {
		return daily.Index(now, s.dailySalt, n)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", apperr.New(apperr.NoContent, "No destinations available")
	}
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Internal, "Failed to load destination", err)
	}
	return d, daily.DateKey(now), nil
}

// BulkCreate imports many destinations. Rows that fail validation or
// insertion are counted as failed and skipped; the rest commit together.
func (s *Service) BulkCreate(ctx context.Context, inputs []Input) (*BulkResult, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "No valid destinations provided")
	}

	var res BulkResult
	err := s.store.InTx(ctx, func(tx store.Store) error {
		res = BulkResult{}
		for i, in := range inputs {
			in.normalize()
			if err := validate.Struct(in); err != nil {
				log.Debug().Int("row", i).Err(err).Msg("bulk import: invalid row")
				res.Failed++
				continue
			}
			if err := tx.Destinations().Create(ctx, s.build(in)); err != nil {
				log.Warn().Int("row", i).Err(err).Msg("bulk import: insert failed")
				res.Failed++
				continue
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to import destinations", err)
	}
	res.Message = fmt.Sprintf("Successfully created %d destinations. Failed: %d", res.Created, res.Failed)
	s.metrics.BulkImported(res.Created, res.Failed)
	log.Info().Int("created", res.Created).Int("failed", res.Failed).Msg("destinations imported")
	return &res, nil
}

func nonNil(l []string) model.StringList {
	if l == nil {
		return model.StringList{}
	}
	return l
}
